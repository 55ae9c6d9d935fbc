package validator

import (
	"context"
	"sync"
)

// MemoryStore is the default in-process validator store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory validator store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

// Get returns the record for endpointKey, or ErrNoRecord.
func (s *MemoryStore) Get(_ context.Context, endpointKey string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[endpointKey]
	if !ok {
		recordMisses.WithLabelValues("memory").Inc()
		return nil, ErrNoRecord
	}

	recordHits.WithLabelValues("memory").Inc()

	// Copy so callers cannot mutate the stored record.
	out := rec
	return &out, nil
}

// Put replaces the record for endpointKey wholesale.
func (s *MemoryStore) Put(_ context.Context, endpointKey, token string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[endpointKey] = Record{
		Token:   token,
		Payload: payload,
	}
	recordPuts.WithLabelValues("memory").Inc()
	return nil
}

// Invalidate removes the record for endpointKey, if any.
func (s *MemoryStore) Invalidate(_ context.Context, endpointKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[endpointKey]; ok {
		delete(s.records, endpointKey)
		recordInvalidations.WithLabelValues("memory").Inc()
	}
	return nil
}
