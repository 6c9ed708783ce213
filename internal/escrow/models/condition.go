package models

import (
	"strings"
	"time"

	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// ConditionType labels what kind of verification gates a release. Free-form
// types are allowed beyond the well-known ones; the enumeration exists for
// routing and reporting, not validation.
type ConditionType string

const (
	ConditionDocumentUpload    ConditionType = "DOCUMENT_UPLOAD"
	ConditionTitleVerification ConditionType = "TITLE_VERIFICATION"
	ConditionLegalApproval     ConditionType = "LEGAL_APPROVAL"
)

// ConditionPriority orders outstanding conditions for dashboards.
type ConditionPriority string

const (
	PriorityLow      ConditionPriority = "low"
	PriorityMedium   ConditionPriority = "medium"
	PriorityHigh     ConditionPriority = "high"
	PriorityCritical ConditionPriority = "critical"
)

var conditionPriorities = map[ConditionPriority]struct{}{
	PriorityLow:      {},
	PriorityMedium:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// ConditionStatus is pending or met. Verification is monotonic: met never
// reverts. Corrections require creating a new condition.
type ConditionStatus string

const (
	ConditionPending ConditionStatus = "pending"
	ConditionMet     ConditionStatus = "met"
)

// Condition is a discrete verification requirement gating fund release.
type Condition struct {
	ID          id.ConditionID    `json:"id"`
	Type        ConditionType     `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    ConditionPriority `json:"priority"`
	RequiredBy  []ParticipantType `json:"required_by"`
	Status      ConditionStatus   `json:"status"`
	VerifiedBy  *id.ParticipantID `json:"verified_by,omitempty"`
	VerifiedAt  *time.Time        `json:"verified_at,omitempty"`
	// Evidence holds opaque document references; upload and retrieval live
	// in the document store collaborator.
	Evidence []string `json:"evidence,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// ConditionSpec is caller input for a condition.
type ConditionSpec struct {
	ID          id.ConditionID
	Type        ConditionType
	Title       string
	Description string
	Priority    ConditionPriority
	RequiredBy  []ParticipantType
}

// NewCondition validates a spec into a pending Condition.
func NewCondition(spec ConditionSpec) (Condition, error) {
	if spec.ID.IsNil() {
		return Condition{}, dErrors.New(dErrors.CodeInvariantViolation, "condition id is required")
	}
	if strings.TrimSpace(spec.Title) == "" {
		return Condition{}, dErrors.New(dErrors.CodeInvariantViolation, "condition title is required")
	}
	if len(spec.RequiredBy) == 0 {
		return Condition{}, dErrors.New(dErrors.CodeInvariantViolation, "condition required_by must not be empty")
	}
	for _, t := range spec.RequiredBy {
		if _, ok := participantTypes[t]; !ok {
			return Condition{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown participant type in required_by: "+string(t))
		}
	}
	priority := spec.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if _, ok := conditionPriorities[priority]; !ok {
		return Condition{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown condition priority: "+string(spec.Priority))
	}
	condType := spec.Type
	if condType == "" {
		condType = ConditionDocumentUpload
	}
	return Condition{
		ID:          spec.ID,
		Type:        condType,
		Title:       strings.TrimSpace(spec.Title),
		Description: strings.TrimSpace(spec.Description),
		Priority:    priority,
		RequiredBy:  append([]ParticipantType(nil), spec.RequiredBy...),
		Status:      ConditionPending,
	}, nil
}

// RequiresType reports whether the condition names the given participant type
// among the parties it must be verified for.
func (c *Condition) RequiresType(t ParticipantType) bool {
	for _, required := range c.RequiredBy {
		if required == t {
			return true
		}
	}
	return false
}

// CanVerify checks the monotonicity invariant. Re-verifying a met condition is
// an explicit error, not a silent no-op, so retrying clients can tell "already
// done" apart from "done just now".
func (c *Condition) CanVerify() error {
	if c.Status == ConditionMet {
		return dErrors.New(dErrors.CodeConditionAlreadyMet, "condition already met: "+c.ID.String())
	}
	return nil
}

// ApplyVerification marks the condition met. Call CanVerify first.
func (c *Condition) ApplyVerification(by id.ParticipantID, at time.Time, evidence []string, notes string) {
	c.Status = ConditionMet
	verifier := by
	c.VerifiedBy = &verifier
	verifiedAt := at
	c.VerifiedAt = &verifiedAt
	c.Evidence = append(c.Evidence, evidence...)
	if notes != "" {
		c.Notes = notes
	}
}
