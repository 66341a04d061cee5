package guard

import (
	"context"
	"sync"
	"time"
)

// Store counts requests per key within a fixed window.
type Store interface {
	// Incr bumps the counter for key, starting a new window when none is
	// active, and returns the count within the current window along with
	// the window's expiry.
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

type windowEntry struct {
	count   int
	resetAt time.Time
	cleanup *time.Timer
}

// MemStore is the in-process counter store. Expired windows clean themselves
// up via a timer per key.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	// now is swappable so tests can move time
	now func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (s *MemStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		if ok && entry.cleanup != nil {
			entry.cleanup.Stop()
		}
		entry = &windowEntry{count: 0, resetAt: now.Add(window)}
		entry.cleanup = time.AfterFunc(window, func() {
			s.expire(key, entry)
		})
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

func (s *MemStore) expire(key string, entry *windowEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[key]; ok && current == entry {
		delete(s.entries, key)
	}
}
