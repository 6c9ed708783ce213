package documents

import (
	"context"
	"strings"
	"sync"

	dErrors "conveyr/pkg/domain-errors"
)

// InMemory resolves references registered ahead of time. Useful in tests and
// in deployments where document storage is fronted elsewhere.
type InMemory struct {
	mu    sync.RWMutex
	known map[string]struct{}

	// AcceptAll skips the registry check and only rejects blank references.
	AcceptAll bool
}

func NewInMemory() *InMemory {
	return &InMemory{known: make(map[string]struct{})}
}

// Register makes a reference resolvable.
func (r *InMemory) Register(reference string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[reference] = struct{}{}
}

func (r *InMemory) Resolve(_ context.Context, reference string) error {
	if strings.TrimSpace(reference) == "" {
		return dErrors.New(dErrors.CodeValidation, "evidence reference is empty")
	}
	if r.AcceptAll {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.known[reference]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "evidence reference not found")
	}
	return nil
}
