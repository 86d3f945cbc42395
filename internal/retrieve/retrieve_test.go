package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/store"
)

type fakeProvider struct {
	embedFn   func(text string) ([]float32, error)
	rewriteFn func(query string) (string, error)
}

func (f *fakeProvider) GenerateText(ctx context.Context, prompt, system string, opts ai.TextOptions) (string, error) {
	return "", nil
}
func (f *fakeProvider) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts ai.TextOptions) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GenerateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(text)
	}
	return []float32{1, 0}, nil
}
func (f *fakeProvider) RewriteQuestionForMCP(ctx context.Context, query string, rc *ai.RewriteContext, opts ai.TextOptions) (string, error) {
	if f.rewriteFn != nil {
		return f.rewriteFn(query)
	}
	return query, nil
}

func seedRow(t *testing.T, vectors store.VectorStore, rows store.MemoryStore, id string, vec []float32, createdAt int64) {
	t.Helper()
	md := memory.VectorMetadata{CreatedAt: createdAt, PrimaryTag: "general", PriorityRank: 0}
	require.NoError(t, vectors.Upsert(context.Background(), id, vec, md))
	require.NoError(t, rows.Insert(context.Background(), memory.Memory{ID: id, Text: "memory " + id, Status: memory.StatusRaw, CreatedAt: createdAt}))
}

func TestSearchOrdersByScoreThenCreatedAt(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()
	seedRow(t, vectors, rows, "old-close", []float32{1, 0}, 1)
	seedRow(t, vectors, rows, "new-far", []float32{0, 1}, 2)
	seedRow(t, vectors, rows, "new-close", []float32{1, 0}, 3)

	e := NewEngine(&fakeProvider{}, vectors, rows)
	results, err := e.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// new-close and old-close tie on score 1.0; the newer one comes first.
	assert.Equal(t, "new-close", results[0].ID)
	assert.Equal(t, "old-close", results[1].ID)
	assert.Equal(t, "new-far", results[2].ID)
}

func TestSearchDropsOrphanVectorsWithoutRow(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()
	require.NoError(t, vectors.Upsert(context.Background(), "orphan", []float32{1, 0}, memory.VectorMetadata{}))

	e := NewEngine(&fakeProvider{}, vectors, rows)
	results, err := e.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmptyVectorResultsReturnsEmptySlice(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()
	e := NewEngine(&fakeProvider{}, vectors, rows)

	results, err := e.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRewrittenSearchPreservesInputOrder(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()
	seedRow(t, vectors, rows, "a", []float32{1, 0}, 1)

	provider := &fakeProvider{
		rewriteFn: func(q string) (string, error) { return "rewritten:" + q, nil },
	}
	e := NewEngine(provider, vectors, rows)

	queries := []string{"first", "second", "third"}
	results, err := e.RewrittenSearch(context.Background(), queries, nil, 5, ai.TextOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, q := range queries {
		assert.Equal(t, q, results[i].OriginalQuery)
		assert.Equal(t, "rewritten:"+q, results[i].RewrittenQuery)
	}
}

func TestRewrittenSearchFallsBackToOriginalOnRewriteFailure(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()
	seedRow(t, vectors, rows, "a", []float32{1, 0}, 1)

	provider := &fakeProvider{
		rewriteFn: func(q string) (string, error) { return "", errors.New("rewrite backend down") },
	}
	e := NewEngine(provider, vectors, rows)

	results, err := e.RewrittenSearch(context.Background(), []string{"find my thing"}, nil, 5, ai.TextOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "find my thing", results[0].RewrittenQuery)
	assert.NotEmpty(t, results[0].VectorResults.Matches)
}

func TestRewrittenSearchReturnsEmptyMatchesWhenBothPathsFail(t *testing.T) {
	vectors := store.NewMemoryVectorStore(2)
	rows := store.NewInMemoryMemoryStore()

	provider := &fakeProvider{
		rewriteFn: func(q string) (string, error) { return "", errors.New("rewrite down") },
		embedFn:   func(text string) ([]float32, error) { return nil, errors.New("embed down") },
	}
	e := NewEngine(provider, vectors, rows)

	results, err := e.RewrittenSearch(context.Background(), []string{"q"}, nil, 5, ai.TextOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "q", results[0].OriginalQuery)
	assert.Equal(t, "q", results[0].RewrittenQuery)
	assert.Empty(t, results[0].VectorResults.Matches)
}
