package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// ReleaseStatus advances forward only: pending -> approved -> released, with
// terminal rejected and expired branches from pending. Nothing leaves
// released, rejected, or expired.
type ReleaseStatus string

const (
	ReleasePending  ReleaseStatus = "pending"
	ReleaseApproved ReleaseStatus = "approved"
	ReleaseReleased ReleaseStatus = "released"
	ReleaseRejected ReleaseStatus = "rejected"
	ReleaseExpired  ReleaseStatus = "expired"
)

// Approval records one participant's sign-off on a release request.
type Approval struct {
	ApprovedBy     id.ParticipantID `json:"approved_by"`
	RoleAtApproval ParticipantType  `json:"role_at_approval"`
	Notes          string           `json:"notes,omitempty"`
	Signature      string           `json:"signature,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// ReleaseRequest is a proposed movement of held funds to a recipient, subject
// to approval. Requests are append-only history on the account: never deleted,
// status only advances.
type ReleaseRequest struct {
	ID          id.ReleaseID     `json:"id"`
	MilestoneID *id.MilestoneID  `json:"milestone_id,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Recipient   string           `json:"recipient"`
	Reason      string           `json:"reason"`
	RequestedBy id.ParticipantID `json:"requested_by"`
	Status      ReleaseStatus    `json:"status"`
	Approvals   []Approval       `json:"approvals,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	// ExpiresAt, when set, moves a still-pending request to the terminal
	// expired status on the next touch. Partial approvals are discarded with
	// it; a fresh request restarts the quorum.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	RejectedBy   *id.ParticipantID `json:"rejected_by,omitempty"`
	RejectReason string            `json:"reject_reason,omitempty"`
	RejectedAt   *time.Time        `json:"rejected_at,omitempty"`

	// ExecutionFailure records the last payment execution error while the
	// request sits in approved awaiting a retry. Cleared on success.
	ExecutionFailure string `json:"execution_failure,omitempty"`
}

// NewReleaseRequest validates inputs into a pending request. Fund and
// milestone-readiness checks happen at the account level.
func NewReleaseRequest(releaseID id.ReleaseID, milestoneID *id.MilestoneID, amount decimal.Decimal, recipient, reason string, requestedBy id.ParticipantID, now time.Time, expiresAt *time.Time) (ReleaseRequest, error) {
	if releaseID.IsNil() {
		return ReleaseRequest{}, dErrors.New(dErrors.CodeInvariantViolation, "release id is required")
	}
	if !amount.IsPositive() {
		return ReleaseRequest{}, dErrors.New(dErrors.CodeValidation, "release amount must be positive")
	}
	if strings.TrimSpace(recipient) == "" {
		return ReleaseRequest{}, dErrors.New(dErrors.CodeValidation, "release recipient is required")
	}
	return ReleaseRequest{
		ID:          releaseID,
		MilestoneID: milestoneID,
		Amount:      amount,
		Recipient:   strings.TrimSpace(recipient),
		Reason:      strings.TrimSpace(reason),
		RequestedBy: requestedBy,
		Status:      ReleasePending,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}, nil
}

// HasApprovalFrom reports whether the participant already approved.
func (r *ReleaseRequest) HasApprovalFrom(pid id.ParticipantID) bool {
	for _, a := range r.Approvals {
		if a.ApprovedBy == pid {
			return true
		}
	}
	return false
}

// IsSettled reports whether the request reached a terminal status.
func (r *ReleaseRequest) IsSettled() bool {
	switch r.Status {
	case ReleaseReleased, ReleaseRejected, ReleaseExpired:
		return true
	}
	return false
}

// IsExpired reports whether a pending request's deadline has passed.
// Approved requests never expire: approvals were complete in time, only the
// payment leg remains.
func (r *ReleaseRequest) IsExpired(now time.Time) bool {
	return r.Status == ReleasePending && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// ApplyExpiry moves a pending request to the terminal expired status.
func (r *ReleaseRequest) ApplyExpiry() {
	r.Status = ReleaseExpired
}

// CanApprove checks that the request accepts an approval from pid.
func (r *ReleaseRequest) CanApprove(pid id.ParticipantID, now time.Time) error {
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeRequestExpired, "release request expired: "+r.ID.String())
	}
	if r.Status != ReleasePending {
		return dErrors.New(dErrors.CodeInvalidState,
			"release request is "+string(r.Status)+", not pending: "+r.ID.String())
	}
	if r.HasApprovalFrom(pid) {
		return dErrors.New(dErrors.CodeDuplicateApproval,
			"participant already approved release "+r.ID.String())
	}
	return nil
}

// ApplyApproval appends an approval. Call CanApprove first.
func (r *ReleaseRequest) ApplyApproval(a Approval) {
	r.Approvals = append(r.Approvals, a)
}

// ApplyQuorum transitions pending -> approved once the named quorum is
// complete.
func (r *ReleaseRequest) ApplyQuorum(now time.Time) {
	r.Status = ReleaseApproved
	approvedAt := now
	r.ApprovedAt = &approvedAt
	r.ExecutionFailure = ""
}

// CanReject checks that the request is still pending.
func (r *ReleaseRequest) CanReject(now time.Time) error {
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeRequestExpired, "release request expired: "+r.ID.String())
	}
	if r.Status != ReleasePending {
		return dErrors.New(dErrors.CodeInvalidState,
			"release request is "+string(r.Status)+", not pending: "+r.ID.String())
	}
	return nil
}

// ApplyRejection moves a pending request to the terminal rejected status.
func (r *ReleaseRequest) ApplyRejection(by id.ParticipantID, reason string, now time.Time) {
	r.Status = ReleaseRejected
	rejectedBy := by
	r.RejectedBy = &rejectedBy
	r.RejectReason = strings.TrimSpace(reason)
	rejectedAt := now
	r.RejectedAt = &rejectedAt
}

// RecordExecutionFailure keeps the request approved with the failure noted so
// execution can be retried without re-collecting approvals.
func (r *ReleaseRequest) RecordExecutionFailure(reason string) {
	r.ExecutionFailure = reason
}

// ApplyExecution moves an approved request to released after the payment leg
// succeeded.
func (r *ReleaseRequest) ApplyExecution(now time.Time) {
	r.Status = ReleaseReleased
	executedAt := now
	r.ExecutedAt = &executedAt
	r.ExecutionFailure = ""
}
