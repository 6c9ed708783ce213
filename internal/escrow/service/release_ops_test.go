package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/requestcontext"
)

// requestM1 verifies the title condition and opens a release request bound to
// the contract exchange milestone.
func (s *ServiceSuite) requestM1(escrowID id.EscrowID) *models.ReleaseRequest {
	s.verifyCondition(escrowID, s.condTitle)
	request, err := s.service.RequestRelease(context.Background(), escrowID, RequestReleaseParams{
		MilestoneID: &s.m1,
		Recipient:   "vendor-account",
		Reason:      "contract exchange",
		RequestedBy: s.buyer,
	})
	s.Require().NoError(err)
	return request
}

// =============================================================================
// Request
// =============================================================================

func (s *ServiceSuite) TestRequestRelease() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("milestone-bound request derives its amount from the milestone", func() {
		request := s.requestM1(account.ID)
		s.Equal(models.ReleasePending, request.Status)
		s.Equal("150000.00", request.Amount.StringFixed(2))
		s.Require().NotNil(request.MilestoneID)
		s.Equal(s.m1, *request.MilestoneID)
		s.Nil(request.ExpiresAt)
	})

	s.Run("ad hoc request takes the stated amount", func() {
		amount := decimal.NewFromInt(2500)
		request, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			Amount:      &amount,
			Recipient:   "surveyor-account",
			Reason:      "survey fee",
			RequestedBy: s.buyer,
		})
		s.Require().NoError(err)
		s.Nil(request.MilestoneID)
		s.True(request.Amount.Equal(amount))
	})

	s.Run("ad hoc request without an amount is rejected", func() {
		_, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			Recipient:   "someone",
			RequestedBy: s.buyer,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("amount above held funds is rejected", func() {
		amount := decimal.NewFromInt(600000)
		_, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			Amount:      &amount,
			Recipient:   "someone",
			RequestedBy: s.buyer,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("milestone with unmet conditions is not releasable", func() {
		_, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			MilestoneID: &s.m2,
			Recipient:   "vendor-account",
			RequestedBy: s.buyer,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMilestoneNotReady))
	})

	s.Run("requester without REQUEST_RELEASE is forbidden", func() {
		_, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			MilestoneID: &s.m1,
			Recipient:   "vendor-account",
			RequestedBy: s.solicitor,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Approval and Execution
// =============================================================================

func (s *ServiceSuite) TestApproveRelease_QuorumAndExecution() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	s.Run("first approval leaves the request pending", func() {
		updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{
			ApprovedBy: s.buyer,
			Notes:      "exchange confirmed",
		})
		s.Require().NoError(err)
		s.Equal(models.ReleasePending, updated.Status)
		s.Len(updated.Approvals, 1)
		s.Empty(s.payments.Executed())
	})

	s.Run("completing the named quorum executes the payment", func() {
		updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{
			ApprovedBy: s.lender,
			Signature:  "sig-lender",
		})
		s.Require().NoError(err)
		s.Equal(models.ReleaseReleased, updated.Status)
		s.NotNil(updated.ApprovedAt)
		s.NotNil(updated.ExecutedAt)
		s.Equal(1, s.payments.ExecutedFor(request.ID))

		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(models.MilestoneReleased, current.Milestone(s.m1).Status)
		s.Equal("350000.00", current.TotalHeld.StringFixed(2))
		s.Equal("150000.00", current.TotalReleased.StringFixed(2))
	})

	s.Run("dependent milestone becomes releasable once its conditions are met", func() {
		updated := s.verifyCondition(account.ID, s.condLegal)
		s.Equal(models.MilestoneReleasable, updated.Milestone(s.m2).Status)
	})

	s.Run("releasing the final milestone completes the account", func() {
		final, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			MilestoneID: &s.m2,
			Recipient:   "vendor-account",
			Reason:      "completion",
			RequestedBy: s.buyer,
		})
		s.Require().NoError(err)
		_, err = s.service.ApproveRelease(ctx, account.ID, final.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().NoError(err)
		_, err = s.service.ApproveRelease(ctx, account.ID, final.ID, ApproveParams{ApprovedBy: s.lender})
		s.Require().NoError(err)

		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(models.AccountCompleted, current.Status)
		s.True(current.TotalHeld.IsZero())
		s.Equal("500000.00", current.TotalReleased.StringFixed(2))
	})
}

func (s *ServiceSuite) TestApproveRelease_QuorumIsMembershipNotCount() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	s.Run("approval outside the named quorum is recorded but does not count", func() {
		// The agent holds APPROVE_RELEASE but is not signature-required, so
		// its approval lands on the record without substituting for the
		// buyer's or the lender's.
		updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{
			ApprovedBy: s.agent,
		})
		s.Require().NoError(err)
		s.Equal(models.ReleasePending, updated.Status)
		s.Len(updated.Approvals, 1)
		s.Empty(s.payments.Executed())
	})

	s.Run("two approvals matching the quorum size do not complete it", func() {
		updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().NoError(err)
		s.Equal(models.ReleasePending, updated.Status)
		s.Len(updated.Approvals, 2)
		s.Empty(s.payments.Executed())
	})

	s.Run("duplicate approval from the same participant is rejected", func() {
		_, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateApproval))
		s.Empty(s.payments.Executed())
	})

	s.Run("approver without APPROVE_RELEASE is forbidden", func() {
		_, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.solicitor})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown release returns not found", func() {
		_, err := s.service.ApproveRelease(ctx, account.ID, id.ReleaseID(uuid.New()), ApproveParams{ApprovedBy: s.buyer})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("last quorum member completes it regardless of extra approvals", func() {
		updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
		s.Require().NoError(err)
		s.Equal(models.ReleaseReleased, updated.Status)
		s.Len(updated.Approvals, 3)
		s.Equal(1, s.payments.ExecutedFor(request.ID))
	})
}

func (s *ServiceSuite) TestApproveRelease_CustomPolicy() {
	ctx := context.Background()
	svc := New(s.store, s.payments, WithApprovalPolicy(
		func(_ *models.EscrowAccount, _ *models.ReleaseRequest) []id.ParticipantID {
			return []id.ParticipantID{s.lender}
		},
	))
	account := s.createAccount()
	request := s.requestM1(account.ID)

	s.Run("buyer approval is recorded but cannot satisfy the lender-only quorum", func() {
		updated, err := svc.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().NoError(err)
		s.Equal(models.ReleasePending, updated.Status)
		s.Len(updated.Approvals, 1)
		s.Empty(s.payments.Executed())
	})

	s.Run("lender alone completes the quorum", func() {
		updated, err := svc.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
		s.Require().NoError(err)
		s.Equal(models.ReleaseReleased, updated.Status)
		s.Equal(1, s.payments.ExecutedFor(request.ID))
	})
}

func (s *ServiceSuite) TestPercentageAmountFixedAtRequestTime() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)
	s.Equal("150000.00", request.Amount.StringFixed(2))

	// A top-up between request and execution does not reprice the request;
	// approvers sign the figure that was quoted when it was opened.
	_, err := s.service.Deposit(ctx, account.ID, DepositParams{
		Amount: decimal.NewFromInt(100000),
		Source: "lender_drawdown",
	})
	s.Require().NoError(err)

	_, err = s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
	s.Require().NoError(err)
	updated, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
	s.Require().NoError(err)
	s.Equal(models.ReleaseReleased, updated.Status)

	executed := s.payments.Executed()
	s.Require().Len(executed, 1)
	s.Equal("150000.00", executed[0].Amount.StringFixed(2))
}

func (s *ServiceSuite) TestApproveRelease_ConcurrentFinalApproval() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	_, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
	s.Require().NoError(err)

	// Two racing final approvals from the lender: the store lock serializes
	// them, so exactly one flips the quorum and runs the payment.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	s.Equal(1, successes)
	s.Equal(1, s.payments.ExecutedFor(request.ID))

	current, err := s.service.GetEscrowAccount(ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(models.ReleaseReleased, current.Release(request.ID).Status)
}

// =============================================================================
// Rejection
// =============================================================================

func (s *ServiceSuite) TestRejectRelease() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	s.Run("rejection is terminal and funds stay held", func() {
		updated, err := s.service.RejectRelease(ctx, account.ID, request.ID, RejectParams{
			RejectedBy: s.lender,
			Reason:     "valuation shortfall",
		})
		s.Require().NoError(err)
		s.Equal(models.ReleaseRejected, updated.Status)
		s.Equal("valuation shortfall", updated.RejectReason)

		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal("500000.00", current.TotalHeld.StringFixed(2))
	})

	s.Run("approving a rejected request fails", func() {
		_, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("a fresh request for the same milestone starts a new quorum", func() {
		fresh, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			MilestoneID: &s.m1,
			Recipient:   "vendor-account",
			RequestedBy: s.buyer,
		})
		s.Require().NoError(err)
		s.Equal(models.ReleasePending, fresh.Status)
		s.Empty(fresh.Approvals)
	})
}

// =============================================================================
// Payment Failure and Retry
// =============================================================================

func (s *ServiceSuite) TestPaymentFailureLeavesRequestApproved() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	_, err := s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
	s.Require().NoError(err)

	s.payments.FailWith(request.ID, assert.AnError)
	_, err = s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentFailed))

	s.Run("request stays approved with the failure recorded", func() {
		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		r := current.Release(request.ID)
		s.Equal(models.ReleaseApproved, r.Status)
		s.NotEmpty(r.ExecutionFailure)
		s.Equal("500000.00", current.TotalHeld.StringFixed(2))
		s.Equal(models.MilestoneReleasable, current.Milestone(s.m1).Status)
	})

	s.Run("retry re-drives the payment without new approvals", func() {
		s.payments.FailWith(request.ID, nil)
		updated, err := s.service.RetryRelease(ctx, account.ID, request.ID, s.buyer)
		s.Require().NoError(err)
		s.Equal(models.ReleaseReleased, updated.Status)
		s.Empty(updated.ExecutionFailure)
		s.Equal(1, s.payments.ExecutedFor(request.ID))

		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal("350000.00", current.TotalHeld.StringFixed(2))
	})
}

func (s *ServiceSuite) TestRetryRelease_Validation() {
	ctx := context.Background()
	account := s.createAccount()
	request := s.requestM1(account.ID)

	s.Run("pending request cannot be retried", func() {
		_, err := s.service.RetryRelease(ctx, account.ID, request.ID, s.buyer)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown release returns not found", func() {
		_, err := s.service.RetryRelease(ctx, account.ID, id.ReleaseID(uuid.New()), s.buyer)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("retry requires REQUEST_RELEASE", func() {
		_, err := s.service.RetryRelease(ctx, account.ID, request.ID, s.solicitor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Expiry
// =============================================================================

func (s *ServiceSuite) TestReleaseRequestExpiry() {
	svc := New(s.store, s.payments, WithReleaseRequestTTL(time.Hour))
	account := s.createAccount()
	s.verifyCondition(account.ID, s.condTitle)

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx0 := requestcontext.WithTime(context.Background(), t0)
	request, err := svc.RequestRelease(ctx0, account.ID, RequestReleaseParams{
		MilestoneID: &s.m1,
		Recipient:   "vendor-account",
		RequestedBy: s.buyer,
	})
	s.Require().NoError(err)
	s.Require().NotNil(request.ExpiresAt)
	s.True(request.ExpiresAt.Equal(t0.Add(time.Hour)))

	_, err = svc.ApproveRelease(ctx0, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
	s.Require().NoError(err)

	s.Run("any mutating touch past the deadline settles the request", func() {
		later := requestcontext.WithTime(context.Background(), t0.Add(2*time.Hour))
		_, err := svc.Deposit(later, account.ID, DepositParams{
			Amount: decimal.NewFromInt(100),
			Source: "topup",
		})
		s.Require().NoError(err)

		current, err := svc.GetEscrowAccount(later, account.ID)
		s.Require().NoError(err)
		s.Equal(models.ReleaseExpired, current.Release(request.ID).Status)
	})

	s.Run("partial approvals die with the request", func() {
		later := requestcontext.WithTime(context.Background(), t0.Add(3*time.Hour))
		_, err := svc.ApproveRelease(later, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Empty(s.payments.Executed())
	})

	s.Run("a fresh request restarts the quorum with a new deadline", func() {
		later := requestcontext.WithTime(context.Background(), t0.Add(3*time.Hour))
		fresh, err := svc.RequestRelease(later, account.ID, RequestReleaseParams{
			MilestoneID: &s.m1,
			Recipient:   "vendor-account",
			RequestedBy: s.buyer,
		})
		s.Require().NoError(err)
		s.Require().NotNil(fresh.ExpiresAt)
		s.True(fresh.ExpiresAt.Equal(t0.Add(4 * time.Hour)))
		s.Empty(fresh.Approvals)
	})
}
