// Package retrieve implements the C6 Retrieval Engine: basic semantic
// search and AI-rewritten multi-query search, both sharing the
// vector-query → relational-hydrate → merge tail.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/store"
)

// Result is one hydrated, scored hit returned from basic search.
type Result struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	Score     float64  `json:"score"`
	CreatedAt int64    `json:"created_at"`
	SourceApp string   `json:"source_app"`
	SessionID string   `json:"session_id"`
	Status    memory.Status `json:"status"`
}

// Engine is the C6 component.
type Engine struct {
	ai      ai.Provider
	vectors store.VectorStore
	rows    store.MemoryStore
}

func NewEngine(provider ai.Provider, vectors store.VectorStore, rows store.MemoryStore) *Engine {
	return &Engine{ai: provider, vectors: vectors, rows: rows}
}

const defaultLimit = 10

// Search runs basic semantic search: embed, vector query, hydrate, merge,
// sort by score descending with created_at descending as the tie-break.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	embedding, err := e.ai.GenerateEmbeddings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", merr.ErrTransientBackend, err)
	}

	matches, err := e.vectors.SimilaritySearch(ctx, embedding, limit, store.MetadataFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", merr.ErrTransientBackend, err)
	}
	if len(matches) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	rows, err := e.rows.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrate rows: %v", merr.ErrTransientBackend, err)
	}

	byID := make(map[string]memory.Memory, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		row, ok := byID[m.ID]
		if !ok {
			// vector/metadata orphan: dropped, not an error.
			continue
		}
		results = append(results, Result{
			ID:        row.ID,
			Text:      row.Text,
			Tags:      row.Tags,
			Score:     m.Score,
			CreatedAt: row.CreatedAt,
			SourceApp: row.SourceApp,
			SessionID: row.SessionID,
			Status:    row.Status,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})
	return results, nil
}

// VectorMatch mirrors store.VectorResult for the rewritten-search payload.
type VectorMatch struct {
	ID       string                `json:"id"`
	Score    float64               `json:"score"`
	Metadata memory.VectorMetadata `json:"metadata"`
}

// RewrittenResult is one element of the rewritten search response, aligned
// with the corresponding input query by position.
type RewrittenResult struct {
	OriginalQuery  string        `json:"originalQuery"`
	RewrittenQuery string        `json:"rewrittenQuery"`
	VectorResults  VectorResults `json:"vectorResults"`
}

// VectorResults wraps the raw matches, matching the external wire shape.
type VectorResults struct {
	Matches []VectorMatch `json:"matches"`
}

// RewrittenSearch fans each query out in parallel (bounded by the number of
// queries themselves, which is the natural concurrency ceiling here), with
// per-query fallback to the original query on rewrite or embed failure. A
// failed query never aborts its siblings; the output preserves input order.
func (e *Engine) RewrittenSearch(ctx context.Context, queries []string, rc *ai.RewriteContext, topK int, opts ai.TextOptions) ([]RewrittenResult, error) {
	if topK <= 0 {
		topK = defaultLimit
	}
	results := make([]RewrittenResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results[i] = e.runOne(gctx, q, rc, topK, opts)
			return nil
		})
	}
	// errors from runOne are captured per-query, never propagated to Wait.
	_ = g.Wait()
	return results, nil
}

func (e *Engine) runOne(ctx context.Context, original string, rc *ai.RewriteContext, topK int, opts ai.TextOptions) RewrittenResult {
	rewritten, matches, err := e.queryWithRewrite(ctx, original, rc, topK, opts)
	if err != nil {
		rewritten, matches, err = e.queryWithoutRewrite(ctx, original, topK)
		if err != nil {
			return RewrittenResult{
				OriginalQuery:  original,
				RewrittenQuery: original,
				VectorResults:  VectorResults{Matches: []VectorMatch{}},
			}
		}
	}
	return RewrittenResult{
		OriginalQuery:  original,
		RewrittenQuery: rewritten,
		VectorResults:  VectorResults{Matches: matches},
	}
}

// queryWithRewrite performs the ai_rewrite→embed→query triple.
func (e *Engine) queryWithRewrite(ctx context.Context, original string, rc *ai.RewriteContext, topK int, opts ai.TextOptions) (string, []VectorMatch, error) {
	rewritten, err := e.ai.RewriteQuestionForMCP(ctx, original, rc, opts)
	if err != nil {
		return "", nil, err
	}
	matches, err := e.embedAndQuery(ctx, rewritten, topK)
	if err != nil {
		return "", nil, err
	}
	return rewritten, matches, nil
}

// queryWithoutRewrite is the fallback path: skip ai_rewrite entirely and
// embed the original query directly.
func (e *Engine) queryWithoutRewrite(ctx context.Context, original string, topK int) (string, []VectorMatch, error) {
	matches, err := e.embedAndQuery(ctx, original, topK)
	if err != nil {
		return "", nil, err
	}
	return original, matches, nil
}

func (e *Engine) embedAndQuery(ctx context.Context, text string, topK int) ([]VectorMatch, error) {
	embedding, err := e.ai.GenerateEmbeddings(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := e.vectors.SimilaritySearch(ctx, embedding, topK, store.MetadataFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]VectorMatch, len(matches))
	for i, m := range matches {
		out[i] = VectorMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return out, nil
}
