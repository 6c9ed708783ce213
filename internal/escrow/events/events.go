// Package events publishes escrow lifecycle events to the event bus.
// Compliance-relevant actions (fund movements, authorization decisions) go to
// the audit topic consumed by the retention pipeline; everything else goes to
// the general event topic for downstream projections.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"conveyr/internal/platform/kafka/producer"
	id "conveyr/pkg/domain"
	"conveyr/pkg/platform/audit"
)

// Event is the wire shape published per escrow action. Field names line up
// with what the audit consumers unmarshal.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EscrowID  id.EscrowID `json:"escrowId"`
	ReleaseID string      `json:"releaseId,omitempty"`
	Action    string      `json:"action"`
	Amount    string      `json:"amount,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	ActorID   string      `json:"actorId,omitempty"`
}

// Publisher pushes escrow events onto the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// KafkaPublisher routes events to topics by audit category.
type KafkaPublisher struct {
	producer   *producer.Producer
	eventTopic string
	auditTopic string
}

func NewKafkaPublisher(p *producer.Producer, eventTopic, auditTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, eventTopic: eventTopic, auditTopic: auditTopic}
}

// Publish keys records by escrow id so per-account ordering is preserved.
func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal escrow event: %w", err)
	}

	topic := k.eventTopic
	if audit.AuditEvent(event.Action).Category() == audit.CategoryCompliance {
		topic = k.auditTopic
	}
	return k.producer.Publish(ctx, topic, []byte(event.EscrowID.String()), payload)
}
