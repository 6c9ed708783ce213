package store

import (
	"context"
	"sort"
	"sync"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
	"conveyr/pkg/platform/sentinel"
)

// InMemory keeps aggregates in a map guarded by one mutex. It favors clarity
// over performance and is the default wiring for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.EscrowID]*models.EscrowAccount
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.EscrowID]*models.EscrowAccount)}
}

func (s *InMemory) Create(_ context.Context, account *models.EscrowAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return sentinel.ErrConflict
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, escrowID id.EscrowID) (*models.EscrowAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[escrowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return account.Clone(), nil
}

func (s *InMemory) FindByTransaction(_ context.Context, transactionID id.TransactionID) ([]*models.EscrowAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EscrowAccount
	for _, account := range s.accounts {
		if account.TransactionID == transactionID {
			out = append(out, account.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) FindByParticipant(_ context.Context, participantID id.ParticipantID) ([]*models.EscrowAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EscrowAccount
	for _, account := range s.accounts {
		if account.Participant(participantID) != nil {
			out = append(out, account.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) Execute(_ context.Context, escrowID id.EscrowID,
	validate func(*models.EscrowAccount) error,
	mutate func(*models.EscrowAccount) error,
) (*models.EscrowAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[escrowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Work on a copy so a failing callback leaves stored state untouched.
	working := current.Clone()
	if validate != nil {
		if err := validate(working); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		if err := mutate(working); err != nil {
			return nil, err
		}
	}
	if err := working.CheckFundConservation(); err != nil {
		return nil, err
	}

	working.Version = current.Version + 1
	s.accounts[escrowID] = working
	return working.Clone(), nil
}

func sortByCreation(accounts []*models.EscrowAccount) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID.String() < accounts[j].ID.String()
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}
