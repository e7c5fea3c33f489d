// Package ratelimit provides fixed-window request counters keyed by
// (namespace, client key). Namespaces are request-class scoped so a burst
// against one endpoint class cannot starve another.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Endpoint-class namespaces and their per-minute limits.
const (
	NamespaceSubmit  = "soulaudit.submit"
	NamespaceConsent = "soulaudit.consent"
	NamespaceRead    = "soulaudit.read"
	NamespaceReset   = "soulaudit.reset"

	LimitSubmit  = 12
	LimitConsent = 30
	LimitRead    = 60
	LimitReset   = 10

	// Window is the fixed window shared by every namespace.
	Window = time.Minute
)

// Decision is the outcome of one check-and-increment.
type Decision struct {
	OK         bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Store atomically checks and increments a windowed counter. Two concurrent
// calls at the limit boundary must not both pass.
type Store interface {
	CheckAndIncrement(ctx context.Context, namespace, key string, limit int, window time.Duration) (Decision, error)
}

type windowCounter struct {
	start time.Time
	count int
}

// MemoryStore is a mutex-guarded in-process Store. Suitable for tests and
// single-instance deployments; multi-instance correctness needs an
// externally consistent backend.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	clock    func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*windowCounter),
		clock:    time.Now,
	}
}

// WithClock overrides the store's time source for tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// CheckAndIncrement implements Store.
func (s *MemoryStore) CheckAndIncrement(_ context.Context, namespace, key string, limit int, window time.Duration) (Decision, error) {
	now := s.clock()
	bucket := namespace + "\x00" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[bucket]
	if !ok || now.Sub(counter.start) >= window {
		counter = &windowCounter{start: now}
		s.counters[bucket] = counter
	}

	resetAt := counter.start.Add(window)
	if counter.count >= limit {
		return Decision{
			Limit:      limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}
	counter.count++
	return Decision{
		OK:        true,
		Limit:     limit,
		Remaining: limit - counter.count,
		ResetAt:   resetAt,
	}, nil
}
