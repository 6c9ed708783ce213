package audit

import (
	"context"
	"time"

	id "conveyr/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Fund movements and approvals require tamper-proof storage and long
	// retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names a recorded action.
type AuditEvent string

const (
	EventEscrowCreated     AuditEvent = "escrow_created"
	EventEscrowCompleted   AuditEvent = "escrow_completed"
	EventEscrowCancelled   AuditEvent = "escrow_cancelled"
	EventDepositRecorded   AuditEvent = "deposit_recorded"
	EventConditionVerified AuditEvent = "condition_verified"
	EventReleaseRequested  AuditEvent = "release_requested"
	EventReleaseApproved   AuditEvent = "release_approved"
	EventReleaseRejected   AuditEvent = "release_rejected"
	EventReleaseExecuted   AuditEvent = "release_executed"
	EventReleaseFailed     AuditEvent = "release_failed"
	EventReleaseExpired    AuditEvent = "release_expired"
	EventSummaryAccessed   AuditEvent = "summary_accessed"
)

var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - fund movement and authorization decisions
	EventEscrowCreated:     CategoryCompliance,
	EventEscrowCompleted:   CategoryCompliance,
	EventEscrowCancelled:   CategoryCompliance,
	EventDepositRecorded:   CategoryCompliance,
	EventConditionVerified: CategoryCompliance,
	EventReleaseRequested:  CategoryCompliance,
	EventReleaseApproved:   CategoryCompliance,
	EventReleaseRejected:   CategoryCompliance,
	EventReleaseExecuted:   CategoryCompliance,
	EventReleaseFailed:     CategoryCompliance,
	EventReleaseExpired:    CategoryCompliance,

	// Operations events - routine reads
	EventSummaryAccessed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture fund-movement actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	EscrowID  id.EscrowID
	ReleaseID string // release request correlation, empty for non-release events
	Action    string
	Amount    string // decimal string; avoids importing money types here
	Recipient string
	Reason    string
	RequestID string // correlation ID from HTTP request context
	// ActorID tracks the participant who performed the action. Empty for
	// system-driven transitions (e.g. expiry).
	ActorID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEscrow(ctx context.Context, escrowID id.EscrowID) ([]Event, error)
}
