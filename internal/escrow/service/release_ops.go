package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"conveyr/internal/escrow/models"
	"conveyr/internal/payments"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/money"
	"conveyr/pkg/platform/audit"
	"conveyr/pkg/requestcontext"
)

// RequestReleaseParams is caller input for proposing a fund release.
// Milestone-bound requests derive their amount from the milestone; ad hoc
// requests must state one.
type RequestReleaseParams struct {
	MilestoneID *id.MilestoneID
	Amount      *decimal.Decimal
	Recipient   string
	Reason      string
	RequestedBy id.ParticipantID
}

// RequestRelease opens a pending release request. Funds do not move; the
// request enters the approval workflow.
func (s *Service) RequestRelease(ctx context.Context, escrowID id.EscrowID, params RequestReleaseParams) (*models.ReleaseRequest, error) {
	ctx, span := s.startSpan(ctx, "escrow.request_release")
	defer span.End()

	now := requestcontext.Now(ctx)
	releaseID := id.ReleaseID(uuid.New())
	var expiresAt *time.Time
	if s.releaseTTL > 0 {
		deadline := now.Add(s.releaseTTL)
		expiresAt = &deadline
	}

	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept release requests")
			}
			if _, err := requireActor(a, params.RequestedBy, models.PermissionRequestRelease); err != nil {
				return err
			}
			return nil
		},
		func(a *models.EscrowAccount) error {
			amount, err := resolveReleaseAmount(a, params)
			if err != nil {
				return err
			}
			if amount.GreaterThan(a.TotalHeld) {
				return dErrors.New(dErrors.CodeInsufficientFunds,
					"release amount exceeds held funds")
			}
			request, err := models.NewReleaseRequest(
				releaseID, params.MilestoneID, amount,
				params.Recipient, params.Reason, params.RequestedBy,
				now, expiresAt,
			)
			if err != nil {
				return err
			}
			a.AppendRelease(request)
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	request := account.Release(releaseID)
	span.SetAttributes(attribute.String("release.id", releaseID.String()))
	if s.metrics != nil {
		s.metrics.ReleasesRequested.Inc()
	}
	s.logAudit(ctx, escrowID, string(audit.EventReleaseRequested), audit.Event{
		ReleaseID: releaseID.String(),
		Amount:    request.Amount.StringFixed(2),
		Recipient: request.Recipient,
		Reason:    request.Reason,
	})
	return request, nil
}

// resolveReleaseAmount derives the request amount: milestone-bound requests
// take the milestone's computed amount and require the milestone releasable;
// ad hoc requests take the stated amount.
func resolveReleaseAmount(a *models.EscrowAccount, params RequestReleaseParams) (decimal.Decimal, error) {
	if params.MilestoneID != nil {
		m := a.Milestone(*params.MilestoneID)
		if m == nil {
			return decimal.Zero, dErrors.New(dErrors.CodeNotFound, "milestone not found")
		}
		if err := m.CanRelease(); err != nil {
			return decimal.Zero, err
		}
		return a.ComputeReleaseAmount(m), nil
	}
	if params.Amount == nil || !params.Amount.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation,
			"ad hoc release requests must state a positive amount")
	}
	return money.RoundToCent(*params.Amount), nil
}

// ApproveParams is caller input for one approval.
type ApproveParams struct {
	ApprovedBy id.ParticipantID
	Notes      string
	Signature  string
}

// ApproveRelease records one participant's approval. Any participant holding
// APPROVE_RELEASE may approve; approvals from outside the named quorum are
// recorded but do not advance it. When the quorum's members have all approved
// the request flips to approved inside the store lock, and payment execution
// runs afterwards, outside it. A payment failure leaves the request approved
// with the failure recorded for retry.
func (s *Service) ApproveRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, params ApproveParams) (*models.ReleaseRequest, error) {
	ctx, span := s.startSpan(ctx, "escrow.approve_release")
	defer span.End()

	now := requestcontext.Now(ctx)
	quorumComplete := false
	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept approvals")
			}
			approver, err := requireActor(a, params.ApprovedBy, models.PermissionApproveRelease)
			if err != nil {
				return err
			}
			request := a.Release(releaseID)
			if request == nil {
				return dErrors.New(dErrors.CodeNotFound, "release request not found")
			}
			return request.CanApprove(approver.ID, now)
		},
		func(a *models.EscrowAccount) error {
			approver := a.Participant(params.ApprovedBy)
			request := a.Release(releaseID)
			request.ApplyApproval(models.Approval{
				ApprovedBy:     approver.ID,
				RoleAtApproval: approver.Type,
				Notes:          params.Notes,
				Signature:      params.Signature,
				Timestamp:      now,
			})
			if models.IsApprovalComplete(request, s.policy(a, request)) {
				request.ApplyQuorum(now)
				quorumComplete = true
			}
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	s.logAudit(ctx, escrowID, string(audit.EventReleaseApproved), audit.Event{
		ReleaseID: releaseID.String(),
	})

	if !quorumComplete {
		return account.Release(releaseID), nil
	}

	span.SetAttributes(attribute.Bool("release.quorum_complete", true))
	return s.executeApproved(ctx, escrowID, releaseID)
}

// RejectParams is caller input for a rejection.
type RejectParams struct {
	RejectedBy id.ParticipantID
	Reason     string
}

// RejectRelease terminally rejects a pending request. Funds stay held.
func (s *Service) RejectRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, params RejectParams) (*models.ReleaseRequest, error) {
	ctx, span := s.startSpan(ctx, "escrow.reject_release")
	defer span.End()

	now := requestcontext.Now(ctx)
	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept rejections")
			}
			if _, err := requireActor(a, params.RejectedBy, models.PermissionApproveRelease); err != nil {
				return err
			}
			request := a.Release(releaseID)
			if request == nil {
				return dErrors.New(dErrors.CodeNotFound, "release request not found")
			}
			return request.CanReject(now)
		},
		func(a *models.EscrowAccount) error {
			a.Release(releaseID).ApplyRejection(params.RejectedBy, params.Reason, now)
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReleasesRejected.Inc()
	}
	s.logAudit(ctx, escrowID, string(audit.EventReleaseRejected), audit.Event{
		ReleaseID: releaseID.String(),
		Reason:    params.Reason,
	})
	return account.Release(releaseID), nil
}

// RetryRelease re-drives payment execution for an approved request whose
// previous payment leg failed. Approvals are not re-collected.
func (s *Service) RetryRelease(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID, requestedBy id.ParticipantID) (*models.ReleaseRequest, error) {
	ctx, span := s.startSpan(ctx, "escrow.retry_release")
	defer span.End()

	account, err := s.load(ctx, escrowID)
	if err != nil {
		spanError(span, err)
		return nil, err
	}
	if _, err := requireActor(account, requestedBy, models.PermissionRequestRelease); err != nil {
		spanError(span, err)
		return nil, err
	}
	request := account.Release(releaseID)
	if request == nil {
		err := dErrors.New(dErrors.CodeNotFound, "release request not found")
		spanError(span, err)
		return nil, err
	}
	if request.Status != models.ReleaseApproved {
		err := dErrors.New(dErrors.CodeInvalidState,
			"release request is "+string(request.Status)+", not approved")
		spanError(span, err)
		return nil, err
	}

	return s.executeApproved(ctx, escrowID, releaseID)
}

// executeApproved runs the payment leg for an approved request and settles
// the outcome. The payment call happens outside the store lock; the
// settlement (or the failure record) is a second locked mutation. Providers
// deduplicate on the release id, so a concurrent retry cannot double-pay.
func (s *Service) executeApproved(ctx context.Context, escrowID id.EscrowID, releaseID id.ReleaseID) (*models.ReleaseRequest, error) {
	account, err := s.load(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	request := account.Release(releaseID)
	if request == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "release request not found")
	}
	if request.Status != models.ReleaseApproved {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			"release request is "+string(request.Status)+", not approved")
	}

	start := time.Now()
	payErr := s.payments.Execute(ctx, payments.Instruction{
		EscrowID:  escrowID,
		ReleaseID: releaseID,
		Amount:    request.Amount,
		Recipient: request.Recipient,
	})
	if s.metrics != nil {
		s.metrics.ReleaseDuration.Observe(time.Since(start).Seconds())
	}

	if payErr != nil {
		account, recordErr := s.execute(ctx, escrowID, nil,
			func(a *models.EscrowAccount) error {
				r := a.Release(releaseID)
				if r == nil {
					return dErrors.New(dErrors.CodeNotFound, "release request not found")
				}
				r.RecordExecutionFailure(payErr.Error())
				return nil
			},
		)
		if recordErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to record payment failure",
				"escrow_id", escrowID,
				"release_id", releaseID,
				"error", recordErr,
			)
		}
		if s.metrics != nil {
			s.metrics.ReleaseFailures.Inc()
		}
		s.logAudit(ctx, escrowID, string(audit.EventReleaseFailed), audit.Event{
			ReleaseID: releaseID.String(),
			Reason:    payErr.Error(),
		})
		var failed *models.ReleaseRequest
		if account != nil {
			failed = account.Release(releaseID)
		}
		return failed, dErrors.Wrap(payErr, dErrors.CodePaymentFailed, "payment execution failed")
	}

	now := requestcontext.Now(ctx)
	account, err = s.execute(ctx, escrowID, nil,
		func(a *models.EscrowAccount) error {
			r := a.Release(releaseID)
			if r == nil {
				return dErrors.New(dErrors.CodeNotFound, "release request not found")
			}
			return a.ApplyReleaseExecution(r, now)
		},
	)
	if err != nil {
		return nil, translateExecuteErr(err)
	}

	if s.metrics != nil {
		s.metrics.ReleasesExecuted.Inc()
	}
	settled := account.Release(releaseID)
	s.logAudit(ctx, escrowID, string(audit.EventReleaseExecuted), audit.Event{
		ReleaseID: releaseID.String(),
		Amount:    settled.Amount.StringFixed(2),
		Recipient: settled.Recipient,
	})
	if account.Status == models.AccountCompleted {
		if s.metrics != nil {
			s.metrics.EscrowsCompleted.Inc()
		}
		s.logAudit(ctx, escrowID, string(audit.EventEscrowCompleted), audit.Event{})
	}
	return settled, nil
}

