// Package curator implements the C7 Curator: a scheduled, self-healing
// near-duplicate consolidation loop over the "raw" memory population.
package curator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/observability"
	"github.com/manifold-labs/memoryd/internal/store"
)

const (
	defaultBatchW  = 20
	defaultCapK    = 10
	defaultTopK    = 3
	defaultThresh  = 0.92
	defaultDeadline = 60 * time.Second
)

// Config bounds one curator invocation.
type Config struct {
	BatchW    int
	CapK      int
	Threshold float64
	Deadline  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchW <= 0 {
		c.BatchW = defaultBatchW
	}
	if c.CapK <= 0 {
		c.CapK = defaultCapK
	}
	if c.Threshold <= 0 {
		c.Threshold = defaultThresh
	}
	if c.Deadline <= 0 {
		c.Deadline = defaultDeadline
	}
	return c
}

// Curator is the C7 component.
type Curator struct {
	ai      ai.Provider
	vectors store.VectorStore
	rows    store.MemoryStore
	cfg     Config
}

func New(provider ai.Provider, vectors store.VectorStore, rows store.MemoryStore, cfg Config) *Curator {
	return &Curator{ai: provider, vectors: vectors, rows: rows, cfg: cfg.withDefaults()}
}

// Report summarizes one invocation for logging/testing.
type Report struct {
	Candidates    int
	Consolidated  int
	Processed     int
	Failed        int
}

// Run executes one scheduled or manually-triggered consolidation pass: it
// fetches up to W raw candidates, consolidates near-duplicates up to a cap
// of K, and marks the rest processed. Per-candidate failures are logged and
// do not abort the batch; a partial consolidation is self-healing on the
// next run because the surviving memory's text already carries the merge.
func (c *Curator) Run(ctx context.Context) Report {
	deadline := time.Now().Add(c.cfg.Deadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log := observability.LoggerForComponent(ctx, "curator")

	candidates, err := c.rows.ListByStatus(ctx, memory.StatusRaw, c.cfg.BatchW)
	if err != nil {
		log.Error().Err(err).Msg("curator_fetch_failed")
		return Report{}
	}

	report := Report{Candidates: len(candidates)}
	for _, m := range candidates {
		if time.Now().After(deadline) {
			log.Warn().Msg("curator_deadline_exceeded")
			break
		}
		if report.Consolidated >= c.cfg.CapK {
			break
		}
		consolidated, err := c.processCandidate(ctx, m)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("id", m.ID).Msg("curator_candidate_failed")
			continue
		}
		if consolidated {
			report.Consolidated++
		} else {
			report.Processed++
		}
	}
	return report
}

// processCandidate runs step 2 of the algorithm for one candidate. It
// returns true if a consolidation was performed, false if the candidate had
// no near-duplicates and was simply marked processed.
func (c *Curator) processCandidate(ctx context.Context, m memory.Memory) (bool, error) {
	embedding, err := c.ai.GenerateEmbeddings(ctx, m.Text)
	if err != nil {
		return false, fmt.Errorf("embed candidate: %w", err)
	}

	similar, err := c.vectors.SimilaritySearch(ctx, embedding, defaultTopK, store.MetadataFilter{})
	if err != nil {
		return false, fmt.Errorf("similarity query: %w", err)
	}

	var dupIDs []string
	for _, s := range similar {
		if s.ID != m.ID && s.Score > c.cfg.Threshold {
			dupIDs = append(dupIDs, s.ID)
		}
	}

	if len(dupIDs) == 0 {
		m.Status = memory.StatusProcessed
		m.UpdatedAt = nowMs()
		if err := c.rows.Update(ctx, m); err != nil {
			return false, fmt.Errorf("mark processed: %w", err)
		}
		return false, nil
	}

	dups, err := c.rows.GetByIDs(ctx, dupIDs)
	if err != nil {
		return false, fmt.Errorf("hydrate duplicates: %w", err)
	}
	if len(dups) == 0 {
		// Duplicates already removed by a prior partial run; self-heal by
		// marking the anchor processed.
		m.Status = memory.StatusProcessed
		m.UpdatedAt = nowMs()
		if err := c.rows.Update(ctx, m); err != nil {
			return false, fmt.Errorf("mark processed: %w", err)
		}
		return false, nil
	}

	texts := make([]string, 0, len(dups)+1)
	texts = append(texts, m.Text)
	for _, d := range dups {
		texts = append(texts, d.Text)
	}
	combined := strings.Join(texts, "\n---\n")

	consolidatedText, err := c.ai.GenerateText(ctx, ai.ConsolidationPrompt(combined), ai.ConsolidationSystemPrompt, ai.TextOptions{})
	if err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}

	m.Text = consolidatedText
	m.Status = memory.StatusConsolidated
	m.UpdatedAt = nowMs()
	if err := c.rows.Update(ctx, m); err != nil {
		return false, fmt.Errorf("update anchor: %w", err)
	}

	metadata := memory.VectorMetadata{
		CreatedAt:    m.CreatedAt,
		PrimaryTag:   memory.PrimaryTagConsolidated,
		PriorityRank: memory.PriorityRankConsolidated,
	}
	mergedEmbedding, err := c.ai.GenerateEmbeddings(ctx, consolidatedText)
	if err != nil {
		return false, fmt.Errorf("embed consolidated: %w", err)
	}
	if err := c.vectors.Upsert(ctx, m.ID, mergedEmbedding, metadata); err != nil {
		return false, fmt.Errorf("upsert anchor vector: %w", err)
	}

	for _, id := range dupIDs {
		if err := c.rows.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("delete duplicate row %s: %w", id, err)
		}
		if err := c.vectors.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("delete duplicate vector %s: %w", id, err)
		}
	}

	return true, nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
