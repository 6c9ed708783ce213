package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"conveyr/internal/platform/kafka/consumer"
	id "conveyr/pkg/domain"
	"conveyr/pkg/platform/audit"
)

// OpsHandler processes operational audit events from Kafka.
// These are best-effort records with short retention.
type OpsHandler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(store audit.Store, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		store:  store,
		logger: logger,
	}
}

// opsPayload matches the JSON structure for ops events.
type opsPayload struct {
	Timestamp string `json:"timestamp"`
	EscrowID  string `json:"escrowId"`
	Action    string `json:"action"`
	RequestID string `json:"requestId"`
	ActorID   string `json:"actorId"`
}

// Handle processes an operational audit event.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	escrowID, err := id.ParseEscrowID(string(msg.Key))
	if err != nil {
		// Ops events are best-effort - log and continue
		h.logger.Debug("failed to parse ops event key",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload opsPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("failed to unmarshal ops payload",
			"escrow_id", escrowID,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Category:  audit.CategoryOperations,
		EscrowID:  escrowID,
		Action:    payload.Action,
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
		h.logger.Debug("failed to store ops event",
			"escrow_id", escrowID,
			"action", event.Action,
			"error", err,
		)
		// Return nil to commit - ops events are best-effort
		return nil
	}

	return nil
}
