package identity

import (
	"context"
	"sync"
)

// MemStore is an in-memory identity store for development and tests.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*Identity
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]*Identity)}
}

// Put seeds or replaces an identity record.
func (s *MemStore) Put(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id.ID] = id
}

func (s *MemStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *MemStore) Lookup(_ context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}
