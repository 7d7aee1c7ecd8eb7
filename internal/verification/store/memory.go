package store

import (
	"context"
	"sync"

	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	attempts map[id.DID][]verification.Attempt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{attempts: make(map[id.DID][]verification.Attempt)}
}

func (s *InMemoryStore) Append(_ context.Context, attempt *verification.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.DID] = append(s.attempts[attempt.DID], *attempt)
	return nil
}

func (s *InMemoryStore) ListByDID(_ context.Context, did id.DID) ([]verification.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]verification.Attempt{}, s.attempts[did]...), nil
}
