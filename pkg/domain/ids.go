// Package domain provides typed identifiers for escrow entities.
//
// IDs are distinct types over uuid.UUID so the compiler rejects passing a
// participant ID where a milestone ID is expected. Parse functions enforce the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "conveyr/pkg/domain-errors"
)

type (
	EscrowID      uuid.UUID
	TransactionID uuid.UUID
	PropertyID    uuid.UUID
	ParticipantID uuid.UUID
	ConditionID   uuid.UUID
	MilestoneID   uuid.UUID
	ReleaseID     uuid.UUID
	DepositID     uuid.UUID
)

func (id EscrowID) String() string      { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id PropertyID) String() string    { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id ConditionID) String() string   { return uuid.UUID(id).String() }
func (id MilestoneID) String() string   { return uuid.UUID(id).String() }
func (id ReleaseID) String() string     { return uuid.UUID(id).String() }
func (id DepositID) String() string     { return uuid.UUID(id).String() }

func (id EscrowID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ConditionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MilestoneID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReleaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id EscrowID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PropertyID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ParticipantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ConditionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id MilestoneID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ReleaseID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id DepositID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *EscrowID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *TransactionID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *PropertyID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ParticipantID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ConditionID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }
func (id *MilestoneID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ReleaseID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *DepositID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid id: "+string(b))
	}
	*dst = u
	return nil
}

// parseUUID enforces the shared ID invariant: parseable and non-nil.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

func ParseEscrowID(raw string) (EscrowID, error) {
	u, err := parseUUID(raw)
	return EscrowID(u), err
}

func ParseTransactionID(raw string) (TransactionID, error) {
	u, err := parseUUID(raw)
	return TransactionID(u), err
}

func ParsePropertyID(raw string) (PropertyID, error) {
	u, err := parseUUID(raw)
	return PropertyID(u), err
}

func ParseParticipantID(raw string) (ParticipantID, error) {
	u, err := parseUUID(raw)
	return ParticipantID(u), err
}

func ParseConditionID(raw string) (ConditionID, error) {
	u, err := parseUUID(raw)
	return ConditionID(u), err
}

func ParseMilestoneID(raw string) (MilestoneID, error) {
	u, err := parseUUID(raw)
	return MilestoneID(u), err
}

func ParseReleaseID(raw string) (ReleaseID, error) {
	u, err := parseUUID(raw)
	return ReleaseID(u), err
}
