package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// MilestoneStatus transitions pending -> releasable -> released, forward only.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneReleasable MilestoneStatus = "releasable"
	MilestoneReleased   MilestoneStatus = "released"
)

// Milestone is an ordered, amount- or percentage-denominated release step.
// Exactly one of ReleaseAmount and ReleasePercentage is set.
type Milestone struct {
	ID                id.MilestoneID     `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Order             int                `json:"order"`
	DueDate           *time.Time         `json:"due_date,omitempty"`
	ReleaseAmount     *decimal.Decimal   `json:"release_amount,omitempty"`
	ReleasePercentage *decimal.Decimal   `json:"release_percentage,omitempty"`
	Conditions        []id.ConditionID   `json:"conditions,omitempty"`
	Dependencies      []id.MilestoneID   `json:"dependencies,omitempty"`
	Participants      []id.ParticipantID `json:"participants,omitempty"`
	Status            MilestoneStatus    `json:"status"`
	ReleasedAmount    decimal.Decimal    `json:"released_amount"`
	ReleasedAt        *time.Time         `json:"released_at,omitempty"`
}

// MilestoneSpec is caller input for a milestone.
type MilestoneSpec struct {
	ID                id.MilestoneID
	Title             string
	Description       string
	Order             int
	DueDate           *time.Time
	ReleaseAmount     *decimal.Decimal
	ReleasePercentage *decimal.Decimal
	Conditions        []id.ConditionID
	Dependencies      []id.MilestoneID
	Participants      []id.ParticipantID
}

// NewMilestone validates a spec into a pending Milestone. Cross-milestone
// constraints (ordering, dependency graph, percentage sums) are validated at
// the account level where the full set is known.
func NewMilestone(spec MilestoneSpec) (Milestone, error) {
	if spec.ID.IsNil() {
		return Milestone{}, dErrors.New(dErrors.CodeInvariantViolation, "milestone id is required")
	}
	if strings.TrimSpace(spec.Title) == "" {
		return Milestone{}, dErrors.New(dErrors.CodeInvariantViolation, "milestone title is required")
	}
	if (spec.ReleaseAmount == nil) == (spec.ReleasePercentage == nil) {
		return Milestone{}, dErrors.New(dErrors.CodeInvariantViolation,
			"milestone must set exactly one of release_amount and release_percentage")
	}
	if spec.ReleaseAmount != nil && !spec.ReleaseAmount.IsPositive() {
		return Milestone{}, dErrors.New(dErrors.CodeInvariantViolation, "milestone release_amount must be positive")
	}
	if spec.ReleasePercentage != nil {
		pct := *spec.ReleasePercentage
		if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return Milestone{}, dErrors.New(dErrors.CodeInvariantViolation,
				"milestone release_percentage must be in (0, 100]")
		}
	}
	return Milestone{
		ID:                spec.ID,
		Title:             strings.TrimSpace(spec.Title),
		Description:       strings.TrimSpace(spec.Description),
		Order:             spec.Order,
		DueDate:           spec.DueDate,
		ReleaseAmount:     spec.ReleaseAmount,
		ReleasePercentage: spec.ReleasePercentage,
		Conditions:        append([]id.ConditionID(nil), spec.Conditions...),
		Dependencies:      append([]id.MilestoneID(nil), spec.Dependencies...),
		Participants:      append([]id.ParticipantID(nil), spec.Participants...),
		Status:            MilestonePending,
	}, nil
}

// HasParticipant reports whether the participant has a stake in the milestone.
func (m *Milestone) HasParticipant(pid id.ParticipantID) bool {
	for _, p := range m.Participants {
		if p == pid {
			return true
		}
	}
	return false
}

// CanRelease enforces the forward-only status order: only a releasable
// milestone can be released. Marking a pending milestone released directly is
// an invalid state transition.
func (m *Milestone) CanRelease() error {
	switch m.Status {
	case MilestoneReleasable:
		return nil
	case MilestoneReleased:
		return dErrors.New(dErrors.CodeInvalidState, "milestone already released: "+m.ID.String())
	default:
		return dErrors.New(dErrors.CodeMilestoneNotReady, "milestone not releasable: "+m.ID.String())
	}
}

// ApplyRelease marks the milestone released. Call CanRelease first.
func (m *Milestone) ApplyRelease(amount decimal.Decimal, at time.Time) {
	m.Status = MilestoneReleased
	m.ReleasedAmount = amount
	releasedAt := at
	m.ReleasedAt = &releasedAt
}

// validateMilestoneGraph enforces the dependency invariant for one account's
// milestones: orders unique and strictly increasing as listed, conditions
// reference known condition ids, and dependencies reference milestones with a
// strictly smaller order. Backward-only references make cycles impossible, so
// a single forward sweep in EvaluateMilestoneReadiness is sufficient.
func validateMilestoneGraph(milestones []Milestone, conditions []Condition) error {
	knownConditions := make(map[id.ConditionID]struct{}, len(conditions))
	for _, c := range conditions {
		knownConditions[c.ID] = struct{}{}
	}

	orderByID := make(map[id.MilestoneID]int, len(milestones))
	lastOrder := 0
	for i, m := range milestones {
		if i > 0 && m.Order <= lastOrder {
			return dErrors.New(dErrors.CodeInvalidMilestoneGraph,
				"milestone orders must be unique and strictly increasing")
		}
		lastOrder = m.Order
		if _, dup := orderByID[m.ID]; dup {
			return dErrors.New(dErrors.CodeInvalidMilestoneGraph, "duplicate milestone id: "+m.ID.String())
		}
		orderByID[m.ID] = m.Order
	}

	for _, m := range milestones {
		for _, cid := range m.Conditions {
			if _, ok := knownConditions[cid]; !ok {
				return dErrors.New(dErrors.CodeInvalidMilestoneGraph,
					"milestone "+m.ID.String()+" references unknown condition "+cid.String())
			}
		}
		for _, dep := range m.Dependencies {
			depOrder, ok := orderByID[dep]
			if !ok {
				return dErrors.New(dErrors.CodeInvalidMilestoneGraph,
					"milestone "+m.ID.String()+" depends on unknown milestone "+dep.String())
			}
			if depOrder >= m.Order {
				return dErrors.New(dErrors.CodeInvalidMilestoneGraph,
					"milestone "+m.ID.String()+" must only depend on earlier milestones")
			}
		}
	}
	return nil
}
