// Package cache provides in-memory caching for catalog responses with
// per-entry absolute expiry and lazy eviction.
package cache

import (
	"sync"
	"time"
)

// entry is a cached value with its absolute expiry time.
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// expired returns true if the entry is past its expiry time.
func (e *entry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Store is a mutex-guarded key/value cache with per-entry TTL.
// Expired entries are removed on the next access; there is no
// background sweeper.
type Store[T any] struct {
	name       string
	defaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]entry[T]

	// now is replaceable for TTL boundary tests.
	now func() time.Time
}

// New creates a named cache store. The name labels the store's metrics
// (e.g. "details", "summaries"). The TTL applies to Set; SetTTL overrides
// it per entry.
func New[T any](name string, defaultTTL time.Duration) *Store[T] {
	if defaultTTL <= 0 {
		panic("cache: default TTL must be positive")
	}
	return &Store[T]{
		name:       name,
		defaultTTL: defaultTTL,
		entries:    make(map[string]entry[T]),
		now:        time.Now,
	}
}

// Get returns the cached value for key. A present but expired entry is
// deleted and reported as absent.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		cacheMisses.WithLabelValues(s.name).Inc()
		var zero T
		return zero, false
	}

	if ent.expired(s.now()) {
		delete(s.entries, key)
		cacheEvictions.WithLabelValues(s.name).Inc()
		cacheMisses.WithLabelValues(s.name).Inc()
		var zero T
		return zero, false
	}

	cacheHits.WithLabelValues(s.name).Inc()
	return ent.value, true
}

// Set stores value under key with the store's default TTL.
func (s *Store[T]) Set(key string, value T) {
	s.SetTTL(key, value, s.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
// Non-positive TTLs are rejected silently; caching an already-stale
// value would only produce a guaranteed miss.
func (s *Store[T]) SetTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry[T]{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	cacheSets.WithLabelValues(s.name).Inc()
}

// Invalidate removes the entry for key, if any. The next Get for key is
// guaranteed to miss regardless of remaining TTL.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		cacheInvalidations.WithLabelValues(s.name).Inc()
	}
}

// Purge removes every entry. Used when a mutation invalidates an
// aggregate resource class whose query variants cannot be enumerated
// (e.g. cached search results after a book changes).
func (s *Store[T]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if n == 0 {
		return
	}
	s.entries = make(map[string]entry[T])
	cacheInvalidations.WithLabelValues(s.name).Add(float64(n))
}

// Len returns the number of entries currently held, including entries
// that have expired but were not accessed since.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SetClock replaces the store's time source (for testing).
func (s *Store[T]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
