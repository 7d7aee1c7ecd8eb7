package store

import (
	"context"
	"sync"

	"anchorid/internal/identity"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.DID]*identity.Identity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.DID]*identity.Identity)}
}

func (s *InMemoryStore) Insert(_ context.Context, record *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.DID]; exists {
		return dErrors.New(dErrors.CodeConflict, "identity already registered")
	}
	clone := *record
	s.records[record.DID] = &clone
	return nil
}

func (s *InMemoryStore) FindByDID(_ context.Context, did id.DID) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[did]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	clone := *record
	return &clone, nil
}
