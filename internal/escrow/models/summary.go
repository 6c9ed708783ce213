package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "conveyr/pkg/domain"
)

// MilestoneProgress is the per-milestone slice of a summary.
type MilestoneProgress struct {
	ID             id.MilestoneID  `json:"id"`
	Title          string          `json:"title"`
	Order          int             `json:"order"`
	Status         MilestoneStatus `json:"status"`
	ReleasedAmount decimal.Decimal `json:"released_amount"`
}

// PendingRelease is the per-request slice of a summary.
type PendingRelease struct {
	ID            id.ReleaseID    `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        ReleaseStatus   `json:"status"`
	ApprovalCount int             `json:"approval_count"`
}

// Summary is a read-only projection of an account for dashboards. Building it
// never mutates the account.
type Summary struct {
	EscrowID      id.EscrowID      `json:"escrow_id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	PropertyID    id.PropertyID    `json:"property_id"`
	Status        AccountStatus    `json:"status"`

	FundedTotal   decimal.Decimal `json:"funded_total"`
	TotalHeld     decimal.Decimal `json:"total_held"`
	TotalReleased decimal.Decimal `json:"total_released"`

	// PercentComplete is released milestones over total milestones. A
	// released 10% milestone on a four-milestone account counts as 25.
	PercentComplete decimal.Decimal `json:"percent_complete"`

	// FundsReleasedPercent is released funds over the funded total, rounded
	// to the cent scale. Zero when nothing has been funded.
	FundsReleasedPercent decimal.Decimal `json:"funds_released_percent"`

	OutstandingConditions []id.ConditionID    `json:"outstanding_conditions"`
	Milestones            []MilestoneProgress `json:"milestones"`
	PendingReleases       []PendingRelease    `json:"pending_releases"`

	GeneratedAt time.Time `json:"generated_at"`
	Version     int       `json:"version"`
}

// BuildSummary projects the account into a Summary.
func BuildSummary(a *EscrowAccount, now time.Time) Summary {
	s := Summary{
		EscrowID:      a.ID,
		TransactionID: a.TransactionID,
		PropertyID:    a.PropertyID,
		Status:        a.Status,
		FundedTotal:   a.FundedTotal,
		TotalHeld:     a.TotalHeld,
		TotalReleased: a.TotalReleased,
		GeneratedAt:   now,
		Version:       a.Version,
	}

	released := 0
	for _, m := range a.Milestones {
		if m.Status == MilestoneReleased {
			released++
		}
	}
	s.PercentComplete = decimal.Zero
	if len(a.Milestones) > 0 {
		s.PercentComplete = decimal.NewFromInt(int64(released)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(len(a.Milestones)))).
			Round(2)
	}

	s.FundsReleasedPercent = decimal.Zero
	if a.FundedTotal.IsPositive() {
		s.FundsReleasedPercent = a.TotalReleased.
			Mul(decimal.NewFromInt(100)).
			Div(a.FundedTotal).
			Round(2)
	}

	for _, c := range a.Conditions {
		if c.Status == ConditionPending {
			s.OutstandingConditions = append(s.OutstandingConditions, c.ID)
		}
	}
	for _, m := range a.Milestones {
		s.Milestones = append(s.Milestones, MilestoneProgress{
			ID:             m.ID,
			Title:          m.Title,
			Order:          m.Order,
			Status:         m.Status,
			ReleasedAmount: m.ReleasedAmount,
		})
	}
	for _, r := range a.ReleaseRequests {
		if r.Status == ReleasePending || r.Status == ReleaseApproved {
			s.PendingReleases = append(s.PendingReleases, PendingRelease{
				ID:            r.ID,
				Amount:        r.Amount,
				Status:        r.Status,
				ApprovalCount: len(r.Approvals),
			})
		}
	}
	return s
}
