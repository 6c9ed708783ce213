// Package store persists escrow account aggregates.
//
// Implementations are interface-driven so the service layer can run against
// the in-memory store in tests and Postgres in production without rewiring.
package store

import (
	"context"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
)

// Store is the persistence port for escrow accounts. The aggregate is the
// unit of storage: conditions, milestones, and release requests are never
// written independently.
type Store interface {
	// Create persists a new account. Returns sentinel.ErrConflict when the id
	// already exists.
	Create(ctx context.Context, account *models.EscrowAccount) error

	// FindByID returns a snapshot of the account. Mutating the returned value
	// has no effect on stored state; all writes go through Execute.
	FindByID(ctx context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error)

	// FindByTransaction returns snapshots of every account opened for the
	// transaction, in creation order.
	FindByTransaction(ctx context.Context, transactionID id.TransactionID) ([]*models.EscrowAccount, error)

	// FindByParticipant returns snapshots of every account the participant
	// appears on.
	FindByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*models.EscrowAccount, error)

	// Execute atomically applies validate-then-mutate to one account while
	// holding the account lock (mutex in memory, SELECT FOR UPDATE in
	// Postgres). Two concurrent Execute calls for the same account serialize;
	// the second observes the first's mutation. If either callback returns an
	// error nothing is persisted. On success the aggregate version is bumped
	// and the fund-conservation invariant re-checked before commit.
	Execute(ctx context.Context, escrowID id.EscrowID,
		validate func(*models.EscrowAccount) error,
		mutate func(*models.EscrowAccount) error,
	) (*models.EscrowAccount, error)
}
