package worker

import (
	"context"

	audit "conveyr/pkg/platform/audit"
)

// Worker drains the in-process audit inbox into the store. The service
// emits fund-movement and authorization events fire-and-forget; this
// worker is the single writer, so Append ordering matches emit ordering.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run blocks until the context is cancelled or a store write fails.
// A failed write stops the worker rather than dropping the event.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
