package audit

import (
	"context"
	"time"
)

// Publisher fans audit events into a buffered inbox consumed by the worker.
// Emission never blocks domain operations: when the buffer is full the event
// is dropped and the caller keeps going. Compliance-critical deliveries are
// additionally written to the escrow event bus, so the inbox is a convenience
// path, not the system of record.
type Publisher struct {
	inbox chan Event
}

// NewPublisher creates a publisher with the given buffer size and returns it
// along with the receive side for the worker.
func NewPublisher(buffer int) (*Publisher, <-chan Event) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Event, buffer)
	return &Publisher{inbox: ch}, ch
}

// Emit enqueues an event, stamping the timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Buffer full; drop rather than stall a fund-movement request.
		return nil
	}
}
