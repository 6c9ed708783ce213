package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"conveyr/internal/escrow/models"
	"conveyr/internal/escrow/store"
	"conveyr/internal/payments"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// =============================================================================
// Escrow Service Test Suite
// =============================================================================
// The suite runs against the in-memory store and the fake payment executor so
// every test exercises the real domain transitions, not mocked ones. The
// fixture models a typical purchase: two signature-required approvers (buyer
// and lender), a solicitor who verifies conditions, and an agent who can
// approve but is not part of the required quorum.

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemory
	payments *payments.Fake
	service  *Service

	buyer     id.ParticipantID
	lender    id.ParticipantID
	solicitor id.ParticipantID
	agent     id.ParticipantID

	condTitle id.ConditionID
	condLegal id.ConditionID
	m1        id.MilestoneID
	m2        id.MilestoneID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.payments = payments.NewFake()
	s.service = New(s.store, s.payments)

	s.buyer = id.ParticipantID(uuid.New())
	s.lender = id.ParticipantID(uuid.New())
	s.solicitor = id.ParticipantID(uuid.New())
	s.agent = id.ParticipantID(uuid.New())

	s.condTitle = id.ConditionID(uuid.New())
	s.condLegal = id.ConditionID(uuid.New())
	s.m1 = id.MilestoneID(uuid.New())
	s.m2 = id.MilestoneID(uuid.New())
}

// accountParams builds the standard fixture: 500000 funded, 30% on contract
// exchange gated by a title check, 70% on completion gated by legal approval
// and dependent on the exchange milestone.
func (s *ServiceSuite) accountParams() CreateAccountParams {
	pct30 := decimal.NewFromInt(30)
	pct70 := decimal.NewFromInt(70)
	return CreateAccountParams{
		TransactionID: id.TransactionID(uuid.New()),
		PropertyID:    id.PropertyID(uuid.New()),
		PropertyPrice: decimal.NewFromInt(500000),
		Participants: []models.ParticipantSpec{
			{
				ID: s.buyer, Type: models.ParticipantBuyer, Name: "Ada Buyer",
				Permissions:       []models.Permission{models.PermissionRequestRelease, models.PermissionApproveRelease},
				SignatureRequired: true,
			},
			{
				ID: s.lender, Type: models.ParticipantLender, Name: "First Bank",
				Permissions:       []models.Permission{models.PermissionApproveRelease, models.PermissionVerifyCondition},
				SignatureRequired: true,
			},
			{
				ID: s.solicitor, Type: models.ParticipantSolicitor, Name: "Reed & Co",
				Permissions: []models.Permission{models.PermissionVerifyCondition},
			},
			{
				ID: s.agent, Type: models.ParticipantAgent, Name: "Key Estates",
				Permissions: []models.Permission{models.PermissionApproveRelease},
			},
		},
		Conditions: []models.ConditionSpec{
			{
				ID: s.condTitle, Type: models.ConditionTitleVerification, Title: "Title search clean",
				RequiredBy: []models.ParticipantType{models.ParticipantSolicitor},
			},
			{
				ID: s.condLegal, Type: models.ConditionLegalApproval, Title: "Contracts approved",
				RequiredBy: []models.ParticipantType{models.ParticipantLender, models.ParticipantSolicitor},
			},
		},
		Milestones: []models.MilestoneSpec{
			{
				ID: s.m1, Title: "Contract exchange", Order: 1,
				ReleasePercentage: &pct30,
				Conditions:        []id.ConditionID{s.condTitle},
			},
			{
				ID: s.m2, Title: "Completion", Order: 2,
				ReleasePercentage: &pct70,
				Conditions:        []id.ConditionID{s.condLegal},
				Dependencies:      []id.MilestoneID{s.m1},
			},
		},
	}
}

func (s *ServiceSuite) createAccount() *models.EscrowAccount {
	account, err := s.service.CreateEscrowAccount(context.Background(), s.accountParams())
	s.Require().NoError(err)
	return account
}

func (s *ServiceSuite) verifyCondition(escrowID id.EscrowID, conditionID id.ConditionID) *models.EscrowAccount {
	account, err := s.service.MarkConditionMet(context.Background(), escrowID, conditionID, VerifyConditionParams{
		VerifiedBy: s.solicitor,
	})
	s.Require().NoError(err)
	return account
}

// =============================================================================
// Account Creation
// =============================================================================

func (s *ServiceSuite) TestCreateEscrowAccount() {
	ctx := context.Background()

	s.Run("opens an active fully funded account", func() {
		account := s.createAccount()

		s.Equal(models.AccountActive, account.Status)
		s.True(account.FundedTotal.Equal(decimal.NewFromInt(500000)))
		s.True(account.TotalHeld.Equal(decimal.NewFromInt(500000)))
		s.True(account.TotalReleased.IsZero())
		s.Len(account.Deposits, 1)
		s.Equal("opening_funding", account.Deposits[0].Source)
	})

	s.Run("milestones start pending while conditions are unmet", func() {
		account := s.createAccount()
		s.Equal(models.MilestonePending, account.Milestone(s.m1).Status)
		s.Equal(models.MilestonePending, account.Milestone(s.m2).Status)
	})

	s.Run("missing participants returns validation error", func() {
		params := s.accountParams()
		params.Participants = nil
		_, err := s.service.CreateEscrowAccount(ctx, params)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("no approver among participants returns validation error", func() {
		params := s.accountParams()
		params.Participants = params.Participants[2:3] // solicitor only
		_, err := s.service.CreateEscrowAccount(ctx, params)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("forward milestone dependency is rejected", func() {
		params := s.accountParams()
		params.Milestones[0].Dependencies = []id.MilestoneID{s.m2}
		_, err := s.service.CreateEscrowAccount(ctx, params)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMilestoneGraph))
	})

	s.Run("milestone percentages above 100 are rejected", func() {
		params := s.accountParams()
		pct := decimal.NewFromInt(80)
		params.Milestones[0].ReleasePercentage = &pct
		params.Milestones[1].ReleasePercentage = &pct
		_, err := s.service.CreateEscrowAccount(ctx, params)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown escrow id returns not found", func() {
		_, err := s.service.GetEscrowAccount(ctx, id.EscrowID(uuid.New()))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListOperations() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("accounts are listed by transaction", func() {
		accounts, err := s.service.GetTransactionEscrows(ctx, account.TransactionID)
		s.Require().NoError(err)
		s.Require().Len(accounts, 1)
		s.Equal(account.ID, accounts[0].ID)
	})

	s.Run("accounts are listed by participant", func() {
		accounts, err := s.service.GetParticipantEscrows(ctx, s.buyer)
		s.Require().NoError(err)
		s.Require().Len(accounts, 1)
		s.Equal(account.ID, accounts[0].ID)
	})

	s.Run("unknown participant lists nothing", func() {
		accounts, err := s.service.GetParticipantEscrows(ctx, id.ParticipantID(uuid.New()))
		s.Require().NoError(err)
		s.Empty(accounts)
	})
}

// =============================================================================
// Deposits
// =============================================================================

func (s *ServiceSuite) TestDeposit() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("grows funded and held totals", func() {
		updated, err := s.service.Deposit(ctx, account.ID, DepositParams{
			Amount:    decimal.NewFromInt(25000),
			Source:    "lender_drawdown",
			Reference: "drawdown-1",
		})
		s.Require().NoError(err)
		s.True(updated.FundedTotal.Equal(decimal.NewFromInt(525000)))
		s.True(updated.TotalHeld.Equal(decimal.NewFromInt(525000)))
		s.Len(updated.Deposits, 2)
	})

	s.Run("sub-cent amounts are rounded", func() {
		updated, err := s.service.Deposit(ctx, account.ID, DepositParams{
			Amount: decimal.RequireFromString("10.005"),
			Source: "topup",
		})
		s.Require().NoError(err)
		last := updated.Deposits[len(updated.Deposits)-1]
		s.Equal("10.01", last.Amount.StringFixed(2))
	})

	s.Run("non-positive amount returns validation error", func() {
		_, err := s.service.Deposit(ctx, account.ID, DepositParams{Amount: decimal.Zero})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Cancellation
// =============================================================================

func (s *ServiceSuite) TestCancelEscrowAccount() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("active account cancels and keeps funds on the books", func() {
		cancelled, err := s.service.CancelEscrowAccount(ctx, account.ID, "sale fell through")
		s.Require().NoError(err)
		s.Equal(models.AccountCancelled, cancelled.Status)
		s.True(cancelled.TotalHeld.Equal(decimal.NewFromInt(500000)))
	})

	s.Run("cancelled account rejects deposits", func() {
		_, err := s.service.Deposit(ctx, account.ID, DepositParams{Amount: decimal.NewFromInt(1)})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("cancelling twice fails", func() {
		_, err := s.service.CancelEscrowAccount(ctx, account.ID, "again")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

// =============================================================================
// Summary
// =============================================================================

func (s *ServiceSuite) TestGetEscrowSummary() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("projects conditions, milestones and totals", func() {
		summary, err := s.service.GetEscrowSummary(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(account.ID, summary.EscrowID)
		s.Len(summary.OutstandingConditions, 2)
		s.Len(summary.Milestones, 2)
		s.True(summary.PercentComplete.IsZero())
		s.True(summary.FundsReleasedPercent.IsZero())
	})

	s.Run("percent complete tracks released milestones", func() {
		s.verifyCondition(account.ID, s.condTitle)
		request, err := s.service.RequestRelease(ctx, account.ID, RequestReleaseParams{
			MilestoneID: &s.m1,
			Recipient:   "vendor-account",
			Reason:      "contract exchange",
			RequestedBy: s.buyer,
		})
		s.Require().NoError(err)
		_, err = s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.buyer})
		s.Require().NoError(err)
		_, err = s.service.ApproveRelease(ctx, account.ID, request.ID, ApproveParams{ApprovedBy: s.lender})
		s.Require().NoError(err)

		summary, err := s.service.GetEscrowSummary(ctx, account.ID)
		s.Require().NoError(err)
		// One of two milestones released; the released milestone carries
		// 30% of the funds.
		s.Equal("50", summary.PercentComplete.String())
		s.Equal("30", summary.FundsReleasedPercent.String())
		s.Len(summary.OutstandingConditions, 1)
		s.Empty(summary.PendingReleases)
	})
}
