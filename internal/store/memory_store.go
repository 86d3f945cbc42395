package store

import (
	"context"
	"sort"
	"sync"

	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
)

// inMemoryMemoryStore is a MemoryStore backed by a guarded map, used in
// tests and as a dependency-free fallback.
type inMemoryMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]memory.Memory
}

func NewInMemoryMemoryStore() MemoryStore {
	return &inMemoryMemoryStore{rows: make(map[string]memory.Memory)}
}

func (s *inMemoryMemoryStore) Insert(_ context.Context, m memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[m.ID]; exists {
		// duplicate-key redelivery is treated as success, per §4.1.
		return nil
	}
	s.rows[m.ID] = m
	return nil
}

func (s *inMemoryMemoryStore) Get(_ context.Context, id string) (memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[id]
	if !ok {
		return memory.Memory{}, merr.ErrNotFound
	}
	return m, nil
}

func (s *inMemoryMemoryStore) GetByIDs(_ context.Context, ids []string) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]memory.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.rows[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *inMemoryMemoryStore) Update(_ context.Context, m memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return merr.ErrNotFound
	}
	s.rows[m.ID] = m
	return nil
}

func (s *inMemoryMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *inMemoryMemoryStore) ListByStatus(_ context.Context, status memory.Status, limit int) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	matches := make([]memory.Memory, 0)
	for _, m := range s.rows {
		if m.Status == status {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt < matches[j].CreatedAt })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *inMemoryMemoryStore) Close() error { return nil }
