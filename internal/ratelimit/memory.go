package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count int
	end   time.Time
}

// MemoryCounterStore is a process-local CounterStore. Counters are lost on
// restart and not shared between replicas.
type MemoryCounterStore struct {
	mu        sync.Mutex
	counters  map[string]*counter
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryCounterStore creates an in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (s *MemoryCounterStore) IncrementAndCheck(_ context.Context, key string, window time.Duration, limit int) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, window)

	c, ok := s.counters[key]
	if !ok || !now.Before(c.end) {
		_, end := windowSlot(now, window)
		c = &counter{end: end}
		s.counters[key] = c
	}
	c.count++

	d := Decision{Count: c.count, Allowed: c.count <= limit}
	if !d.Allowed {
		d.RetryAfter = c.end.Sub(now)
	}
	return d, nil
}

// sweep drops ended windows at most once per window length.
func (s *MemoryCounterStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	for k, c := range s.counters {
		if !now.Before(c.end) {
			delete(s.counters, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of live counters.
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
