package models

import (
	"strings"

	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// ParticipantType identifies the capacity in which a party acts on an escrow
// account. A person acting in multiple transactions gets a distinct
// Participant record per account.
type ParticipantType string

const (
	ParticipantBuyer     ParticipantType = "buyer"
	ParticipantSeller    ParticipantType = "seller"
	ParticipantDeveloper ParticipantType = "developer"
	ParticipantAgent     ParticipantType = "agent"
	ParticipantSolicitor ParticipantType = "solicitor"
	ParticipantLender    ParticipantType = "lender"
	ParticipantPlatform  ParticipantType = "platform"
)

var participantTypes = map[ParticipantType]struct{}{
	ParticipantBuyer:     {},
	ParticipantSeller:    {},
	ParticipantDeveloper: {},
	ParticipantAgent:     {},
	ParticipantSolicitor: {},
	ParticipantLender:    {},
	ParticipantPlatform:  {},
}

// ParseParticipantType validates and returns a ParticipantType.
func ParseParticipantType(raw string) (ParticipantType, error) {
	t := ParticipantType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := participantTypes[t]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown participant type: "+raw)
	}
	return t, nil
}

// ParticipantRole distinguishes the primary acting party from supporting ones.
type ParticipantRole string

const (
	RolePrimary   ParticipantRole = "primary"
	RoleSecondary ParticipantRole = "secondary"
)

// Permission is a capability granted to a participant on one account.
type Permission string

const (
	PermissionRequestRelease  Permission = "REQUEST_RELEASE"
	PermissionApproveRelease  Permission = "APPROVE_RELEASE"
	PermissionVerifyCondition Permission = "VERIFY_CONDITION"
)

var permissions = map[Permission]struct{}{
	PermissionRequestRelease:  {},
	PermissionApproveRelease:  {},
	PermissionVerifyCondition: {},
}

// ParsePermission validates and returns a Permission.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := permissions[p]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown permission: "+raw)
	}
	return p, nil
}

// Participant is a party on an escrow account, owned exclusively by it.
type Participant struct {
	ID                id.ParticipantID `json:"id"`
	Type              ParticipantType  `json:"type"`
	Name              string           `json:"name"`
	Contact           string           `json:"contact"`
	Role              ParticipantRole  `json:"role"`
	Permissions       []Permission     `json:"permissions"`
	SignatureRequired bool             `json:"signature_required"`
}

// HasPermission reports whether this participant holds the capability.
// This is the single permission check used by every operation; handlers and
// services must not re-derive permissions from the participant type.
func (p *Participant) HasPermission(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// ParticipantSpec is caller input for a participant at account creation.
type ParticipantSpec struct {
	ID                id.ParticipantID
	Type              ParticipantType
	Name              string
	Contact           string
	Role              ParticipantRole
	Permissions       []Permission
	SignatureRequired bool
}

// NewParticipant validates a spec into a Participant.
func NewParticipant(spec ParticipantSpec) (Participant, error) {
	if spec.ID.IsNil() {
		return Participant{}, dErrors.New(dErrors.CodeInvariantViolation, "participant id is required")
	}
	if _, ok := participantTypes[spec.Type]; !ok {
		return Participant{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown participant type: "+string(spec.Type))
	}
	if strings.TrimSpace(spec.Name) == "" {
		return Participant{}, dErrors.New(dErrors.CodeInvariantViolation, "participant name is required")
	}
	role := spec.Role
	if role == "" {
		role = RolePrimary
	}
	if role != RolePrimary && role != RoleSecondary {
		return Participant{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown participant role: "+string(spec.Role))
	}
	for _, perm := range spec.Permissions {
		if _, ok := permissions[perm]; !ok {
			return Participant{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown permission: "+string(perm))
		}
	}
	return Participant{
		ID:                spec.ID,
		Type:              spec.Type,
		Name:              strings.TrimSpace(spec.Name),
		Contact:           strings.TrimSpace(spec.Contact),
		Role:              role,
		Permissions:       append([]Permission(nil), spec.Permissions...),
		SignatureRequired: spec.SignatureRequired,
	}, nil
}
