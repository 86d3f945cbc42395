package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/memory"
)

func TestMemoryVectorStoreSelfMatch(t *testing.T) {
	s := NewMemoryVectorStore(3)
	ctx := context.Background()
	md := memory.VectorMetadata{CreatedAt: 100, PrimaryTag: "general", PriorityRank: 0}
	require.NoError(t, s.Upsert(ctx, "a", []float32{1, 0, 0}, md))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 10, MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "general", results[0].Metadata.PrimaryTag)
}

func TestMemoryVectorStoreOrdersByScoreDescending(t *testing.T) {
	s := NewMemoryVectorStore(2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "close", []float32{1, 0.1}, memory.VectorMetadata{}))
	require.NoError(t, s.Upsert(ctx, "far", []float32{0, 1}, memory.VectorMetadata{}))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].ID)
	assert.Equal(t, "far", results[1].ID)
}

func TestMemoryVectorStoreDelete(t *testing.T) {
	s := NewMemoryVectorStore(2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "a", []float32{1, 0}, memory.VectorMetadata{}))
	require.NoError(t, s.Delete(ctx, "a"))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryVectorStoreFilterByPrimaryTag(t *testing.T) {
	s := NewMemoryVectorStore(2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "a", []float32{1, 0}, memory.VectorMetadata{PrimaryTag: "work"}))
	require.NoError(t, s.Upsert(ctx, "b", []float32{1, 0}, memory.VectorMetadata{PrimaryTag: "home"}))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, MetadataFilter{PrimaryTag: "work"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestMemoryVectorStoreFilterByPriorityRank(t *testing.T) {
	s := NewMemoryVectorStore(2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "raw", []float32{1, 0}, memory.VectorMetadata{PriorityRank: memory.PriorityRankRaw}))
	require.NoError(t, s.Upsert(ctx, "consolidated", []float32{1, 0}, memory.VectorMetadata{PriorityRank: memory.PriorityRankConsolidated}))

	want := memory.PriorityRankConsolidated
	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, MetadataFilter{PriorityRank: &want})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "consolidated", results[0].ID)
}

func TestMetadataFilterIsZero(t *testing.T) {
	assert.True(t, MetadataFilter{}.IsZero())
	assert.False(t, MetadataFilter{PrimaryTag: "work"}.IsZero())
}
