package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/platform/audit"
	"conveyr/pkg/requestcontext"
)

// AddCondition registers a new pending condition on an active account.
func (s *Service) AddCondition(ctx context.Context, escrowID id.EscrowID, spec models.ConditionSpec) (*models.EscrowAccount, error) {
	ctx, span := s.startSpan(ctx, "escrow.add_condition")
	defer span.End()

	condition, err := models.NewCondition(spec)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		spanError(span, err)
		return nil, err
	}

	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept new conditions")
			}
			return nil
		},
		func(a *models.EscrowAccount) error {
			return a.AddCondition(condition)
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("condition.id", condition.ID.String()))
	return account, nil
}

// VerifyConditionParams is caller input for marking a condition met.
type VerifyConditionParams struct {
	VerifiedBy id.ParticipantID
	Evidence   []string
	Notes      string
}

// MarkConditionMet records a verification. The verifier must hold
// VERIFY_CONDITION and act in one of the condition's required_by capacities.
// Verification is monotonic: a met condition rejects re-verification with an
// explicit error so retrying clients can tell the difference.
func (s *Service) MarkConditionMet(ctx context.Context, escrowID id.EscrowID, conditionID id.ConditionID, params VerifyConditionParams) (*models.EscrowAccount, error) {
	ctx, span := s.startSpan(ctx, "escrow.mark_condition_met")
	defer span.End()

	if s.documents != nil {
		for _, reference := range params.Evidence {
			if err := s.documents.Resolve(ctx, reference); err != nil {
				err = dErrors.Wrap(err, dErrors.CodeValidation, "evidence reference rejected")
				spanError(span, err)
				return nil, err
			}
		}
	}

	var readied []id.MilestoneID
	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept verifications")
			}
			verifier, err := requireActor(a, params.VerifiedBy, models.PermissionVerifyCondition)
			if err != nil {
				return err
			}
			condition := a.Condition(conditionID)
			if condition == nil {
				return dErrors.New(dErrors.CodeNotFound, "condition not found")
			}
			if !condition.RequiresType(verifier.Type) {
				return dErrors.New(dErrors.CodeForbidden,
					"condition is not required by the verifier's participant type")
			}
			return condition.CanVerify()
		},
		func(a *models.EscrowAccount) error {
			condition := a.Condition(conditionID)
			condition.ApplyVerification(params.VerifiedBy, requestcontext.Now(ctx), params.Evidence, params.Notes)
			readied = a.EvaluateMilestoneReadiness()
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("condition.id", conditionID.String()),
		attribute.Int("milestones.readied", len(readied)),
	)
	if s.metrics != nil {
		s.metrics.ConditionsVerified.Inc()
	}
	s.logAudit(ctx, escrowID, string(audit.EventConditionVerified), audit.Event{
		Reason: "condition " + conditionID.String(),
	})
	return account, nil
}
