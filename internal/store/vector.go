// Package store holds the C2 Vector Store Adapter and C3 Memory Store
// Adapter: the two independent, non-replicating stores the rest of
// memoryd reads and writes through.
package store

import (
	"context"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// VectorResult is one hit from a similarity query.
type VectorResult struct {
	ID       string
	Score    float64
	Metadata memory.VectorMetadata
}

// MetadataFilter scopes a similarity query to the payload fields memoryd
// actually writes (see memory.VectorMetadata). Unlike a generic
// map[string]string, it cannot be asked to match a key the domain has
// never heard of, and a qdrant-backed store can build a single equality
// condition per field instead of iterating an arbitrary key set.
type MetadataFilter struct {
	PrimaryTag   string // "" matches any primary_tag
	PriorityRank *int   // nil matches any priority_rank
}

// IsZero reports whether the filter constrains anything.
func (f MetadataFilter) IsZero() bool {
	return f.PrimaryTag == "" && f.PriorityRank == nil
}

// Matches reports whether md satisfies every constraint f sets.
func (f MetadataFilter) Matches(md memory.VectorMetadata) bool {
	if f.PrimaryTag != "" && md.PrimaryTag != f.PrimaryTag {
		return false
	}
	if f.PriorityRank != nil && md.PriorityRank != *f.PriorityRank {
		return false
	}
	return true
}

// VectorStore is the C2 contract: upsert, delete-by-id, and top-K
// similarity query over a fixed-dimensionality cosine index, optionally
// scoped to a primary_tag/priority_rank.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata memory.VectorMetadata) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter MetadataFilter) ([]VectorResult, error)
	Dimension() int
	Close() error
}
