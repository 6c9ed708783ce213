package service

import (
	"context"

	"github.com/google/uuid"

	"conveyr/internal/documents"
	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
)

// =============================================================================
// Condition Registry
// =============================================================================

func (s *ServiceSuite) TestAddCondition() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("registers a new pending condition", func() {
		conditionID := id.ConditionID(uuid.New())
		updated, err := s.service.AddCondition(ctx, account.ID, models.ConditionSpec{
			ID:         conditionID,
			Title:      "Survey report filed",
			RequiredBy: []models.ParticipantType{models.ParticipantSolicitor},
		})
		s.Require().NoError(err)
		s.Require().NotNil(updated.Condition(conditionID))
		s.Equal(models.ConditionPending, updated.Condition(conditionID).Status)
	})

	s.Run("duplicate condition id returns conflict", func() {
		_, err := s.service.AddCondition(ctx, account.ID, models.ConditionSpec{
			ID:         s.condTitle,
			Title:      "Title search clean",
			RequiredBy: []models.ParticipantType{models.ParticipantSolicitor},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing title returns validation error", func() {
		_, err := s.service.AddCondition(ctx, account.ID, models.ConditionSpec{
			ID:         id.ConditionID(uuid.New()),
			RequiredBy: []models.ParticipantType{models.ParticipantSolicitor},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestMarkConditionMet() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("verification is recorded and readies the gated milestone", func() {
		updated, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: s.solicitor,
			Notes:      "registry extract attached",
		})
		s.Require().NoError(err)

		condition := updated.Condition(s.condTitle)
		s.Equal(models.ConditionMet, condition.Status)
		s.Require().NotNil(condition.VerifiedBy)
		s.Equal(s.solicitor, *condition.VerifiedBy)
		s.NotNil(condition.VerifiedAt)

		s.Equal(models.MilestoneReleasable, updated.Milestone(s.m1).Status)
	})

	s.Run("dependent milestone stays pending until the earlier one releases", func() {
		updated := s.verifyCondition(account.ID, s.condLegal)
		s.Equal(models.MilestonePending, updated.Milestone(s.m2).Status)
	})

	s.Run("re-verifying a met condition is an explicit error", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: s.solicitor,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConditionAlreadyMet))
	})
}

func (s *ServiceSuite) TestMarkConditionMet_Authorization() {
	ctx := context.Background()
	account := s.createAccount()

	s.Run("verifier without VERIFY_CONDITION is forbidden", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: s.buyer,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("verifier type not named in required_by is forbidden", func() {
		// The lender may verify conditions, but the title check names only
		// the solicitor.
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: s.lender,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("lender may verify where its type is required", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condLegal, VerifyConditionParams{
			VerifiedBy: s.lender,
		})
		s.Require().NoError(err)
	})

	s.Run("participant off the account is forbidden", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: id.ParticipantID(uuid.New()),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing actor is unauthorized", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown condition returns not found", func() {
		_, err := s.service.MarkConditionMet(ctx, account.ID, id.ConditionID(uuid.New()), VerifyConditionParams{
			VerifiedBy: s.solicitor,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestMarkConditionMet_EvidenceResolution() {
	ctx := context.Background()
	registry := documents.NewInMemory()
	registry.Register("doc-title-extract")
	svc := New(s.store, s.payments, WithDocumentResolver(registry))

	account := s.createAccount()

	s.Run("registered evidence is accepted and stored", func() {
		updated, err := svc.MarkConditionMet(ctx, account.ID, s.condTitle, VerifyConditionParams{
			VerifiedBy: s.solicitor,
			Evidence:   []string{"doc-title-extract"},
		})
		s.Require().NoError(err)
		s.Equal([]string{"doc-title-extract"}, updated.Condition(s.condTitle).Evidence)
	})

	s.Run("unknown evidence reference is rejected before any mutation", func() {
		_, err := svc.MarkConditionMet(ctx, account.ID, s.condLegal, VerifyConditionParams{
			VerifiedBy: s.solicitor,
			Evidence:   []string{"doc-missing"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		current, err := s.service.GetEscrowAccount(ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(models.ConditionPending, current.Condition(s.condLegal).Status)
	})
}
