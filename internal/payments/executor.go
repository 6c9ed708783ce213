// Package payments defines the outbound payment port used to move released
// escrow funds to recipients. The engine only needs an acknowledgement;
// settlement rails live behind this interface.
package payments

import (
	"context"

	"github.com/shopspring/decimal"

	id "conveyr/pkg/domain"
)

// Instruction describes one fund transfer out of an escrow account.
// ReleaseID keys the transfer; providers deduplicate on it, so re-driving an
// instruction after an ambiguous failure is safe.
type Instruction struct {
	EscrowID  id.EscrowID
	ReleaseID id.ReleaseID
	Amount    decimal.Decimal
	Recipient string
}

// Executor executes payment instructions against a settlement provider.
type Executor interface {
	Execute(ctx context.Context, instruction Instruction) error
}
