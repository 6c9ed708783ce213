package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"conveyr/internal/platform/kafka/consumer"
	id "conveyr/pkg/domain"
	"conveyr/pkg/platform/audit"
)

// ComplianceHandler processes compliance audit events from Kafka.
// Fund movements and authorization decisions land here for long-term
// retention.
type ComplianceHandler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store audit.Store, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// compliancePayload matches the JSON structure published by the service.
type compliancePayload struct {
	Timestamp string `json:"timestamp"`
	EscrowID  string `json:"escrowId"`
	ReleaseID string `json:"releaseId"`
	Action    string `json:"action"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	RequestID string `json:"requestId"`
	ActorID   string `json:"actorId"`
}

// Handle processes a compliance audit event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	escrowID, err := id.ParseEscrowID(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: failed to parse compliance event key",
			"key", string(msg.Key),
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: failed to unmarshal compliance payload",
			"escrow_id", escrowID,
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if payload.Action == "" {
		h.logger.Error("CRITICAL: compliance event missing action",
			"escrow_id", escrowID,
		)
		return nil
	}

	event := audit.Event{
		Category:  audit.CategoryCompliance,
		EscrowID:  escrowID,
		ReleaseID: payload.ReleaseID,
		Action:    payload.Action,
		Amount:    payload.Amount,
		Recipient: payload.Recipient,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
	}

	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = msg.Timestamp
	}

	if err := h.store.Append(ctx, event); err != nil {
		h.logger.Error("failed to store compliance event",
			"escrow_id", escrowID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"escrow_id", escrowID,
		"action", event.Action,
	)

	return nil
}
