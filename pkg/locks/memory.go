package locks

import (
	"context"
	"sync"
)

// MemoryStore is an in-process lock store. The single mutex makes
// acquire-if-absent atomic across concurrent callers.
type MemoryStore struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: make(map[string]string)}
}

func (s *MemoryStore) Acquire(_ context.Context, key, ownerToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[key]; ok && owner != ownerToken {
		return ErrAlreadyLocked
	}

	s.owners[key] = ownerToken

	return nil
}

func (s *MemoryStore) Release(_ context.Context, key, ownerToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[key]
	if !ok || owner != ownerToken {
		return ErrNotOwner
	}

	delete(s.owners, key)

	return nil
}

func (s *MemoryStore) Owner(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[key]

	return owner, ok, nil
}
