package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/money"
)

// AccountStatus is the escrow account lifecycle state.
//
// Transitions: DRAFT -> ACTIVE -> COMPLETED, with ACTIVE -> CANCELLED possible
// before completion. COMPLETED and CANCELLED are terminal. Accounts open
// directly in ACTIVE; DRAFT exists for imported accounts staged before
// participants confirm.
type AccountStatus string

const (
	AccountDraft     AccountStatus = "DRAFT"
	AccountActive    AccountStatus = "ACTIVE"
	AccountCompleted AccountStatus = "COMPLETED"
	AccountCancelled AccountStatus = "CANCELLED"
)

// CanTransitionTo encodes the status machine above.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case AccountDraft:
		return next == AccountActive
	case AccountActive:
		return next == AccountCompleted || next == AccountCancelled
	default:
		return false
	}
}

// Deposit records funds entering the account.
type Deposit struct {
	ID        id.DepositID    `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	Reference string          `json:"reference,omitempty"`
	At        time.Time       `json:"at"`
}

// EscrowAccount is the aggregate root. Conditions, milestones, and release
// requests are reached and mutated only through it so the cross-entity
// invariants hold:
//
//   - TotalHeld + TotalReleased never exceeds the sum of all deposits
//   - a milestone becomes releasable only when its conditions are met and its
//     dependency milestones are released
//   - release requests are append-only history
type EscrowAccount struct {
	ID            id.EscrowID      `json:"id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	PropertyID    id.PropertyID    `json:"property_id"`
	Status        AccountStatus    `json:"status"`

	FundedTotal   decimal.Decimal `json:"funded_total"`
	TotalHeld     decimal.Decimal `json:"total_held"`
	TotalReleased decimal.Decimal `json:"total_released"`

	Participants    []Participant     `json:"participants"`
	Conditions      []Condition       `json:"conditions"`
	Milestones      []Milestone       `json:"milestones"`
	ReleaseRequests []ReleaseRequest  `json:"release_requests"`
	Deposits        []Deposit         `json:"deposits"`
	Metadata        map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token bumped by the store on
	// every mutation.
	Version int `json:"version"`
}

// NewEscrowAccount validates and assembles an account. Accounts go live
// immediately: status is ACTIVE on creation. A positive fundedAmount (the
// property price or an explicit funded figure) is recorded as the opening
// deposit so the held total covers milestone releases from the start.
func NewEscrowAccount(
	escrowID id.EscrowID,
	transactionID id.TransactionID,
	propertyID id.PropertyID,
	fundedAmount decimal.Decimal,
	participantSpecs []ParticipantSpec,
	conditionSpecs []ConditionSpec,
	milestoneSpecs []MilestoneSpec,
	metadata map[string]string,
	now time.Time,
) (*EscrowAccount, error) {
	if escrowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "escrow id is required")
	}
	if transactionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction id is required")
	}
	if propertyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "property id is required")
	}
	if fundedAmount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "funded amount must not be negative")
	}
	if len(participantSpecs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "at least one participant is required")
	}

	participants := make([]Participant, 0, len(participantSpecs))
	seen := make(map[id.ParticipantID]struct{}, len(participantSpecs))
	canRequest, canApprove := false, false
	for _, spec := range participantSpecs {
		p, err := NewParticipant(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "duplicate participant id: "+p.ID.String())
		}
		seen[p.ID] = struct{}{}
		canRequest = canRequest || p.HasPermission(PermissionRequestRelease)
		canApprove = canApprove || p.HasPermission(PermissionApproveRelease)
		participants = append(participants, p)
	}
	if !canRequest {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"at least one participant must hold REQUEST_RELEASE")
	}
	if !canApprove {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"at least one participant must hold APPROVE_RELEASE")
	}

	conditions := make([]Condition, 0, len(conditionSpecs))
	seenConditions := make(map[id.ConditionID]struct{}, len(conditionSpecs))
	for _, spec := range conditionSpecs {
		c, err := NewCondition(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := seenConditions[c.ID]; dup {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "duplicate condition id: "+c.ID.String())
		}
		seenConditions[c.ID] = struct{}{}
		conditions = append(conditions, c)
	}

	milestones := make([]Milestone, 0, len(milestoneSpecs))
	pctSum := decimal.Zero
	amountSum := decimal.Zero
	for _, spec := range milestoneSpecs {
		m, err := NewMilestone(spec)
		if err != nil {
			return nil, err
		}
		if m.ReleasePercentage != nil {
			pctSum = pctSum.Add(*m.ReleasePercentage)
		}
		if m.ReleaseAmount != nil {
			amountSum = amountSum.Add(*m.ReleaseAmount)
		}
		for _, pid := range m.Participants {
			if _, ok := seen[pid]; !ok {
				return nil, dErrors.New(dErrors.CodeInvariantViolation,
					"milestone "+m.ID.String()+" references unknown participant "+pid.String())
			}
		}
		milestones = append(milestones, m)
	}
	if pctSum.GreaterThan(decimal.NewFromInt(100)) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"milestone release percentages must not sum above 100")
	}
	if fundedAmount.IsPositive() && amountSum.GreaterThan(fundedAmount) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"milestone release amounts must not sum above the funded total")
	}
	if err := validateMilestoneGraph(milestones, conditions); err != nil {
		return nil, err
	}

	account := &EscrowAccount{
		ID:            escrowID,
		TransactionID: transactionID,
		PropertyID:    propertyID,
		Status:        AccountActive,
		FundedTotal:   decimal.Zero,
		TotalHeld:     decimal.Zero,
		TotalReleased: decimal.Zero,
		Participants:  participants,
		Conditions:    conditions,
		Milestones:    milestones,
		Metadata:      cloneMetadata(metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if fundedAmount.IsPositive() {
		account.ApplyDeposit(Deposit{
			ID:     id.DepositID(uuid.New()),
			Amount: money.RoundToCent(fundedAmount),
			Source: "opening_funding",
			At:     now,
		})
	}
	account.EvaluateMilestoneReadiness()
	return account, nil
}

// Participant returns the participant with the given id, or nil.
func (a *EscrowAccount) Participant(pid id.ParticipantID) *Participant {
	for i := range a.Participants {
		if a.Participants[i].ID == pid {
			return &a.Participants[i]
		}
	}
	return nil
}

// Condition returns the condition with the given id, or nil.
func (a *EscrowAccount) Condition(cid id.ConditionID) *Condition {
	for i := range a.Conditions {
		if a.Conditions[i].ID == cid {
			return &a.Conditions[i]
		}
	}
	return nil
}

// Milestone returns the milestone with the given id, or nil.
func (a *EscrowAccount) Milestone(mid id.MilestoneID) *Milestone {
	for i := range a.Milestones {
		if a.Milestones[i].ID == mid {
			return &a.Milestones[i]
		}
	}
	return nil
}

// Release returns the release request with the given id, or nil.
func (a *EscrowAccount) Release(rid id.ReleaseID) *ReleaseRequest {
	for i := range a.ReleaseRequests {
		if a.ReleaseRequests[i].ID == rid {
			return &a.ReleaseRequests[i]
		}
	}
	return nil
}

// IsActive reports whether the account accepts mutating operations.
func (a *EscrowAccount) IsActive() bool {
	return a.Status == AccountActive
}

// EvaluateMilestoneReadiness flips pending milestones to releasable when all
// their conditions are met and all dependency milestones are released. The
// sweep runs forward in order; since dependencies only reference earlier
// milestones, one pass settles the whole ledger. Returns the ids that became
// releasable.
func (a *EscrowAccount) EvaluateMilestoneReadiness() []id.MilestoneID {
	met := make(map[id.ConditionID]bool, len(a.Conditions))
	for _, c := range a.Conditions {
		met[c.ID] = c.Status == ConditionMet
	}

	var flipped []id.MilestoneID
	for i := range a.Milestones {
		m := &a.Milestones[i]
		if m.Status != MilestonePending {
			continue
		}
		ready := true
		for _, cid := range m.Conditions {
			if !met[cid] {
				ready = false
				break
			}
		}
		if ready {
			for _, dep := range m.Dependencies {
				depMilestone := a.Milestone(dep)
				if depMilestone == nil || depMilestone.Status != MilestoneReleased {
					ready = false
					break
				}
			}
		}
		if ready {
			m.Status = MilestoneReleasable
			flipped = append(flipped, m.ID)
		}
	}
	return flipped
}

// ComputeReleaseAmount resolves a milestone's release amount: fixed amounts
// pass through, percentages resolve against the funded total rounded half-up
// to the cent. Deterministic for unchanged inputs.
func (a *EscrowAccount) ComputeReleaseAmount(m *Milestone) decimal.Decimal {
	if m.ReleaseAmount != nil {
		return money.RoundToCent(*m.ReleaseAmount)
	}
	if m.ReleasePercentage != nil {
		return money.PercentOf(a.FundedTotal, *m.ReleasePercentage)
	}
	return decimal.Zero
}

// AddCondition appends a new pending condition to the registry.
func (a *EscrowAccount) AddCondition(c Condition) error {
	if a.Condition(c.ID) != nil {
		return dErrors.New(dErrors.CodeConflict, "condition already exists: "+c.ID.String())
	}
	a.Conditions = append(a.Conditions, c)
	return nil
}

// ApplyDeposit records incoming funds, growing both the funded total and the
// held balance.
func (a *EscrowAccount) ApplyDeposit(d Deposit) {
	a.Deposits = append(a.Deposits, d)
	a.FundedTotal = a.FundedTotal.Add(d.Amount)
	a.TotalHeld = a.TotalHeld.Add(d.Amount)
}

// AppendRelease adds a release request to the append-only history.
func (a *EscrowAccount) AppendRelease(r ReleaseRequest) {
	a.ReleaseRequests = append(a.ReleaseRequests, r)
}

// ApplyReleaseExecution settles an approved request after the payment leg
// succeeded: the request becomes released, the bound milestone (if any) is
// marked released, totals move by exactly the request amount, and dependent
// milestones are re-evaluated. Completion is reached when the final milestone
// has released.
func (a *EscrowAccount) ApplyReleaseExecution(r *ReleaseRequest, now time.Time) error {
	if r.Status != ReleaseApproved {
		return dErrors.New(dErrors.CodeInvalidState,
			"release request is "+string(r.Status)+", not approved: "+r.ID.String())
	}
	if r.Amount.GreaterThan(a.TotalHeld) {
		return dErrors.New(dErrors.CodeInsufficientFunds,
			"release amount exceeds held funds for "+r.ID.String())
	}
	if r.MilestoneID != nil {
		m := a.Milestone(*r.MilestoneID)
		if m == nil {
			return dErrors.New(dErrors.CodeNotFound, "milestone not found: "+r.MilestoneID.String())
		}
		if err := m.CanRelease(); err != nil {
			return err
		}
		m.ApplyRelease(r.Amount, now)
	}

	r.ApplyExecution(now)
	a.TotalReleased = a.TotalReleased.Add(r.Amount)
	a.TotalHeld = a.TotalHeld.Sub(r.Amount)
	a.EvaluateMilestoneReadiness()
	a.maybeComplete(now)
	return nil
}

// maybeComplete transitions ACTIVE -> COMPLETED once the final milestone
// (highest order) has released.
func (a *EscrowAccount) maybeComplete(now time.Time) {
	if a.Status != AccountActive || len(a.Milestones) == 0 {
		return
	}
	final := a.Milestones[len(a.Milestones)-1]
	if final.Status == MilestoneReleased {
		a.Status = AccountCompleted
		a.UpdatedAt = now
	}
}

// ExpireStaleReleases moves overdue pending requests to expired. Called on
// every mutating touch so stuck requests never hold partial approvals
// indefinitely. Returns the ids that expired.
func (a *EscrowAccount) ExpireStaleReleases(now time.Time) []id.ReleaseID {
	var expired []id.ReleaseID
	for i := range a.ReleaseRequests {
		r := &a.ReleaseRequests[i]
		if r.IsExpired(now) {
			r.ApplyExpiry()
			expired = append(expired, r.ID)
		}
	}
	return expired
}

// CanCancel checks the ACTIVE -> CANCELLED transition.
func (a *EscrowAccount) CanCancel() error {
	if !a.Status.CanTransitionTo(AccountCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"account is "+string(a.Status)+" and cannot be cancelled")
	}
	return nil
}

// ApplyCancellation transitions the account to CANCELLED. Held funds remain on
// the books for the refund process outside this engine.
func (a *EscrowAccount) ApplyCancellation(now time.Time) {
	a.Status = AccountCancelled
	a.UpdatedAt = now
}

// CheckFundConservation verifies the core ledger invariant. Stores call it
// before persisting a mutation; a violation means a bug, not bad input.
func (a *EscrowAccount) CheckFundConservation() error {
	if a.TotalHeld.IsNegative() || a.TotalReleased.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "negative fund totals on "+a.ID.String())
	}
	if a.TotalHeld.Add(a.TotalReleased).GreaterThan(a.FundedTotal) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"held plus released exceeds funded total on "+a.ID.String())
	}
	return nil
}

// Clone deep-copies the aggregate so in-memory stores can hand out snapshots
// without aliasing internal state.
func (a *EscrowAccount) Clone() *EscrowAccount {
	clone := *a
	clone.Participants = make([]Participant, len(a.Participants))
	for i, p := range a.Participants {
		p.Permissions = append([]Permission(nil), p.Permissions...)
		clone.Participants[i] = p
	}
	clone.Conditions = make([]Condition, len(a.Conditions))
	for i, c := range a.Conditions {
		c.RequiredBy = append([]ParticipantType(nil), c.RequiredBy...)
		c.Evidence = append([]string(nil), c.Evidence...)
		clone.Conditions[i] = c
	}
	clone.Milestones = make([]Milestone, len(a.Milestones))
	for i, m := range a.Milestones {
		m.Conditions = append([]id.ConditionID(nil), m.Conditions...)
		m.Dependencies = append([]id.MilestoneID(nil), m.Dependencies...)
		m.Participants = append([]id.ParticipantID(nil), m.Participants...)
		clone.Milestones[i] = m
	}
	clone.ReleaseRequests = make([]ReleaseRequest, len(a.ReleaseRequests))
	for i, r := range a.ReleaseRequests {
		r.Approvals = append([]Approval(nil), r.Approvals...)
		clone.ReleaseRequests[i] = r
	}
	clone.Deposits = append([]Deposit(nil), a.Deposits...)
	clone.Metadata = cloneMetadata(a.Metadata)
	return &clone
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
