// Package service orchestrates escrow operations: it loads aggregates through
// the store's Execute lock, applies domain transitions from the models
// package, and fans results out to audit, metrics, and the event bus.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conveyr/internal/documents"
	"conveyr/internal/escrow/cache"
	"conveyr/internal/escrow/events"
	"conveyr/internal/escrow/metrics"
	"conveyr/internal/escrow/models"
	"conveyr/internal/escrow/store"
	"conveyr/internal/payments"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/platform/audit"
	"conveyr/pkg/platform/sentinel"
	"conveyr/pkg/requestcontext"
)

// AuditPublisher receives audit events for the in-process audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service exposes every escrow operation. All writes go through the store's
// Execute lock; the only work performed outside it is the payment leg of an
// approved release.
type Service struct {
	store    store.Store
	payments payments.Executor

	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      AuditPublisher
	events     events.Publisher
	summaries  cache.SummaryCache
	documents  documents.Resolver
	policy     models.ApprovalPolicy
	releaseTTL time.Duration
	tracer     trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithEventPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithSummaryCache(c cache.SummaryCache) Option {
	return func(s *Service) { s.summaries = c }
}

func WithDocumentResolver(r documents.Resolver) Option {
	return func(s *Service) { s.documents = r }
}

// WithApprovalPolicy overrides the quorum rule. The default requires every
// signature-required participant holding APPROVE_RELEASE, scoped to the
// milestone's participants when the request is milestone-bound.
func WithApprovalPolicy(policy models.ApprovalPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithReleaseRequestTTL bounds how long pending release requests remain
// approvable. Zero disables expiry.
func WithReleaseRequestTTL(ttl time.Duration) Option {
	return func(s *Service) { s.releaseTTL = ttl }
}

// New constructs a Service.
func New(st store.Store, executor payments.Executor, opts ...Option) *Service {
	s := &Service{
		store:    st,
		payments: executor,
		logger:   slog.Default(),
		policy:   models.DefaultApprovalPolicy,
		tracer:   otel.Tracer("conveyr/escrow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// execute wraps store.Execute with the shared post-mutation bookkeeping:
// stale release expiry before the validate step and summary invalidation
// after a successful commit.
func (s *Service) execute(ctx context.Context, escrowID id.EscrowID,
	validate func(*models.EscrowAccount) error,
	mutate func(*models.EscrowAccount) error,
) (*models.EscrowAccount, error) {
	now := requestcontext.Now(ctx)
	var expired []id.ReleaseID
	account, err := s.store.Execute(ctx, escrowID,
		func(a *models.EscrowAccount) error {
			// Expiry is part of every mutating touch: overdue requests settle
			// before the operation's own checks run against them.
			expired = a.ExpireStaleReleases(now)
			if validate != nil {
				return validate(a)
			}
			return nil
		},
		mutate,
	)
	if err != nil {
		return nil, err
	}
	for _, releaseID := range expired {
		s.incrReleasesExpired()
		s.logAudit(ctx, escrowID, string(audit.EventReleaseExpired), audit.Event{
			ReleaseID: releaseID.String(),
			Reason:    "expired before quorum",
		})
	}
	s.invalidateSummary(ctx, escrowID)
	return account, nil
}

// load translates store sentinels for read paths.
func (s *Service) load(ctx context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error) {
	account, err := s.store.FindByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escrow account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escrow account")
	}
	return account, nil
}

// requireActor resolves the acting participant on the account and checks the
// permission. Authorization failures for unknown actors and missing
// permissions both surface as CodeForbidden so callers cannot probe the
// participant roster.
func requireActor(a *models.EscrowAccount, actor id.ParticipantID, perm models.Permission) (*models.Participant, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "acting participant is required")
	}
	p := a.Participant(actor)
	if p == nil {
		return nil, dErrors.New(dErrors.CodeForbidden, "participant is not on this escrow account")
	}
	if !p.HasPermission(perm) {
		return nil, dErrors.New(dErrors.CodeForbidden,
			"participant lacks "+string(perm)+" permission")
	}
	return p, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// logAudit writes the structured audit line and fans the event out to the
// in-process trail and the event bus. Delivery failures never fail the
// operation; the domain mutation has already committed.
func (s *Service) logAudit(ctx context.Context, escrowID id.EscrowID, action string, event audit.Event) {
	event.EscrowID = escrowID
	event.Action = action
	event.RequestID = requestcontext.RequestID(ctx)
	if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
		event.ActorID = actor.String()
	}
	event.Timestamp = requestcontext.Now(ctx)

	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"escrow_id", escrowID,
			"release_id", event.ReleaseID,
			"amount", event.Amount,
			"request_id", event.RequestID,
			"actor_id", event.ActorID,
			"log_type", "audit",
		)
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, event)
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, events.Event{
			Timestamp: event.Timestamp,
			EscrowID:  escrowID,
			ReleaseID: event.ReleaseID,
			Action:    action,
			Amount:    event.Amount,
			Recipient: event.Recipient,
			Reason:    event.Reason,
			RequestID: event.RequestID,
			ActorID:   event.ActorID,
		}); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "event publish failed",
				"escrow_id", escrowID,
				"action", action,
				"error", err,
			)
		}
	}
}

func (s *Service) invalidateSummary(ctx context.Context, escrowID id.EscrowID) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Invalidate(ctx, escrowID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "summary cache invalidation failed",
			"escrow_id", escrowID,
			"error", err,
		)
	}
}

func (s *Service) incrReleasesExpired() {
	if s.metrics != nil {
		s.metrics.ReleasesExpired.Inc()
	}
}
