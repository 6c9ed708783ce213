package memory

import (
	"context"
	"sync"

	id "conveyr/pkg/domain"
	audit "conveyr/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.EscrowID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.EscrowID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.EscrowID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.EscrowID] = append(s.events[event.EscrowID], event)
	return nil
}

func (s *InMemoryStore) ListByEscrow(_ context.Context, escrowID id.EscrowID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[escrowID]...), nil
}
