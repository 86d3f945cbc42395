package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// memoryVectorStore is an in-process VectorStore used in tests and as a
// dependency-free fallback, grounded in the teacher's own in-memory
// similarity index.
type memoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string]vecEntry
}

type vecEntry struct {
	v        []float32
	metadata memory.VectorMetadata
}

// NewMemoryVectorStore returns a VectorStore backed by an in-process map,
// computing cosine similarity on every query.
func NewMemoryVectorStore(dimension int) VectorStore {
	return &memoryVectorStore{dimension: dimension, vectors: make(map[string]vecEntry)}
}

func (m *memoryVectorStore) Upsert(_ context.Context, id string, vector []float32, metadata memory.VectorMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.vectors[id] = vecEntry{v: cp, metadata: metadata}
	return nil
}

func (m *memoryVectorStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

// SimilaritySearch scores every stored vector against the query, drops
// anything the filter excludes by primary_tag/priority_rank, and returns
// the top k by cosine score.
func (m *memoryVectorStore) SimilaritySearch(_ context.Context, vector []float32, k int, filter MetadataFilter) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := norm(vector)
	results := make([]VectorResult, 0, len(m.vectors))
	for id, e := range m.vectors {
		if !filter.Matches(e.metadata) {
			continue
		}
		score := cosine(vector, e.v, qnorm)
		results = append(results, VectorResult{ID: id, Score: score, Metadata: e.metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *memoryVectorStore) Dimension() int { return m.dimension }

func (m *memoryVectorStore) Close() error { return nil }

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
