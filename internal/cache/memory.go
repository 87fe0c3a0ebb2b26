package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore implements CounterStore with a mutex-guarded map.
// Counters expire at an absolute deadline set on creation; expired entries
// are treated as absent and evicted lazily on access.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time // injectable clock for tests
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Increment atomically increments the counter for key.
func (s *MemoryCounterStore) Increment(_ context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !c.expiresAt.After(now) {
		c = &counter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Count returns the live count for key, 0 when absent or expired.
func (s *MemoryCounterStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	if !c.expiresAt.After(s.now()) {
		delete(s.counters, key)
		return 0, nil
	}
	return c.count, nil
}

// Reset removes the counter for key.
func (s *MemoryCounterStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// PurgeExpired evicts all expired counters. Called periodically by the
// cleanup worker; correctness does not depend on it.
func (s *MemoryCounterStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for key, c := range s.counters {
		if !c.expiresAt.After(now) {
			delete(s.counters, key)
			purged++
		}
	}
	return purged
}
