package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/money"
	"conveyr/pkg/platform/audit"
	"conveyr/pkg/platform/sentinel"
	"conveyr/pkg/requestcontext"
)

// CreateAccountParams is caller input for opening an escrow account.
// PropertyPrice funds the opening deposit: the account starts holding the
// full amount it will later release.
type CreateAccountParams struct {
	TransactionID id.TransactionID
	PropertyID    id.PropertyID
	PropertyPrice decimal.Decimal
	Participants  []models.ParticipantSpec
	Conditions    []models.ConditionSpec
	Milestones    []models.MilestoneSpec
	Metadata      map[string]string
}

// CreateEscrowAccount validates and opens a new ACTIVE account.
func (s *Service) CreateEscrowAccount(ctx context.Context, params CreateAccountParams) (*models.EscrowAccount, error) {
	ctx, span := s.startSpan(ctx, "escrow.create_account")
	defer span.End()

	now := requestcontext.Now(ctx)
	account, err := models.NewEscrowAccount(
		id.EscrowID(uuid.New()),
		params.TransactionID,
		params.PropertyID,
		params.PropertyPrice,
		params.Participants,
		params.Conditions,
		params.Milestones,
		params.Metadata,
		now,
	)
	if err != nil {
		// Constructor invariants become validation errors at the API boundary
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		spanError(span, err)
		return nil, err
	}

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "escrow account already exists")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create escrow account")
		}
		spanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("escrow.id", account.ID.String()))
	if s.metrics != nil {
		s.metrics.EscrowsCreated.Inc()
	}
	s.logAudit(ctx, account.ID, string(audit.EventEscrowCreated), audit.Event{
		Amount: account.FundedTotal.StringFixed(2),
	})
	return account, nil
}

// GetEscrowAccount returns a snapshot of the account.
func (s *Service) GetEscrowAccount(ctx context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error) {
	return s.load(ctx, escrowID)
}

// GetEscrowSummary returns the dashboard projection, served from cache when
// fresh. Building a summary never mutates the account.
func (s *Service) GetEscrowSummary(ctx context.Context, escrowID id.EscrowID) (*models.Summary, error) {
	ctx, span := s.startSpan(ctx, "escrow.get_summary")
	defer span.End()

	if s.summaries != nil {
		cached, err := s.summaries.Get(ctx, escrowID)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "summary cache read failed",
				"escrow_id", escrowID,
				"error", err,
			)
		}
		if cached != nil {
			if s.metrics != nil {
				s.metrics.SummaryCacheHits.Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.SummaryCacheMisses.Inc()
		}
	}

	account, err := s.load(ctx, escrowID)
	if err != nil {
		spanError(span, err)
		return nil, err
	}

	summary := models.BuildSummary(account, requestcontext.Now(ctx))
	if s.summaries != nil {
		if err := s.summaries.Set(ctx, summary); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "summary cache write failed",
				"escrow_id", escrowID,
				"error", err,
			)
		}
	}
	return &summary, nil
}

// GetTransactionEscrows returns every account opened for the transaction.
func (s *Service) GetTransactionEscrows(ctx context.Context, transactionID id.TransactionID) ([]*models.EscrowAccount, error) {
	accounts, err := s.store.FindByTransaction(ctx, transactionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transaction escrows")
	}
	return accounts, nil
}

// GetParticipantEscrows returns every account the participant appears on.
func (s *Service) GetParticipantEscrows(ctx context.Context, participantID id.ParticipantID) ([]*models.EscrowAccount, error) {
	accounts, err := s.store.FindByParticipant(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participant escrows")
	}
	return accounts, nil
}

// CancelEscrowAccount moves an ACTIVE account to CANCELLED. Held funds stay
// on the books for the out-of-band refund process. Operator-only.
func (s *Service) CancelEscrowAccount(ctx context.Context, escrowID id.EscrowID, reason string) (*models.EscrowAccount, error) {
	ctx, span := s.startSpan(ctx, "escrow.cancel_account")
	defer span.End()

	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			return a.CanCancel()
		},
		func(a *models.EscrowAccount) error {
			a.ApplyCancellation(requestcontext.Now(ctx))
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EscrowsCancelled.Inc()
	}
	s.logAudit(ctx, escrowID, string(audit.EventEscrowCancelled), audit.Event{
		Reason: reason,
	})
	return account, nil
}

// DepositParams is caller input for recording funds into escrow.
type DepositParams struct {
	Amount    decimal.Decimal
	Source    string
	Reference string
}

// Deposit records incoming funds, growing the funded and held totals and
// re-evaluating milestone readiness.
func (s *Service) Deposit(ctx context.Context, escrowID id.EscrowID, params DepositParams) (*models.EscrowAccount, error) {
	ctx, span := s.startSpan(ctx, "escrow.deposit")
	defer span.End()

	if !params.Amount.IsPositive() {
		err := dErrors.New(dErrors.CodeValidation, "deposit amount must be positive")
		spanError(span, err)
		return nil, err
	}

	amount := money.RoundToCent(params.Amount)
	account, err := s.execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			if !a.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState,
					"account is "+string(a.Status)+" and does not accept deposits")
			}
			return nil
		},
		func(a *models.EscrowAccount) error {
			a.ApplyDeposit(models.Deposit{
				ID:        id.DepositID(uuid.New()),
				Amount:    amount,
				Source:    params.Source,
				Reference: params.Reference,
				At:        requestcontext.Now(ctx),
			})
			a.EvaluateMilestoneReadiness()
			return nil
		},
	)
	if err != nil {
		err = translateExecuteErr(err)
		spanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DepositsRecorded.Inc()
	}
	s.logAudit(ctx, escrowID, string(audit.EventDepositRecorded), audit.Event{
		Amount: amount.StringFixed(2),
	})
	return account, nil
}

// translateExecuteErr maps store sentinels surfaced by Execute to domain
// errors. Domain errors from the callbacks pass through untouched.
func translateExecuteErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "escrow account not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "escrow account was modified concurrently")
	}
	var de dErrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "escrow operation failed")
}
