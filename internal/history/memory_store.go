package history

import (
	"context"
	"sync"
)

// MemoryStore keeps run records in memory for the life of the process,
// oldest first.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordRun appends rec.
func (s *MemoryStore) RecordRun(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rec)
	return nil
}

// ListRuns returns up to limit records, newest first. A non-positive limit
// returns all of them.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
