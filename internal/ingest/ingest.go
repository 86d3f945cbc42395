// Package ingest implements the C4 Front Door and C5 Consumer of the
// ingestion pipeline.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/observability"
	"github.com/manifold-labs/memoryd/internal/queue"
	"github.com/manifold-labs/memoryd/internal/signal"
	"github.com/manifold-labs/memoryd/internal/store"
)

// FrontDoor is the C4 component: it validates, stamps, and enqueues —
// nothing else. Its latency budget is one enqueue operation; it must
// never embed or write inline.
type FrontDoor struct {
	producer queue.Producer
	signals  *signal.Logger
}

func NewFrontDoor(producer queue.Producer, signals *signal.Logger) *FrontDoor {
	return &FrontDoor{producer: producer, signals: signals}
}

// Submit validates and enqueues text for asynchronous ingestion. It
// rejects with ErrInvalidInput if text is empty.
func (f *FrontDoor) Submit(ctx context.Context, text, sourceApp, sessionID string, contextTags []string) error {
	if text == "" {
		return fmt.Errorf("%w: text is required", merr.ErrInvalidInput)
	}
	env := memory.Envelope{
		Version:     memory.EnvelopeVersion,
		Text:        text,
		ContextTags: contextTags,
		Timestamp:   nowMs(),
		SourceApp:   sourceApp,
		SessionID:   sessionID,
	}
	if err := f.producer.Publish(ctx, env); err != nil {
		return fmt.Errorf("%w: enqueue envelope: %v", merr.ErrTransientBackend, err)
	}
	if f.signals != nil {
		f.signals.Append(signal.TypeInfo, env.Timestamp, "memory queued")
	}
	return nil
}

// Consumer is the C5 component: dequeues envelopes, embeds, and
// dual-writes the vector and relational stores under bounded retry.
type Consumer struct {
	ai      ai.Provider
	vectors store.VectorStore
	rows    store.MemoryStore
	signals *signal.Logger
	dedupe  DedupeCache
}

func NewConsumer(provider ai.Provider, vectors store.VectorStore, rows store.MemoryStore, signals *signal.Logger) *Consumer {
	return &Consumer{ai: provider, vectors: vectors, rows: rows, signals: signals}
}

// WithDedupeCache attaches the optional Redis-backed dedupe cache. Nil is
// a valid value; Handle treats it as "dedup disabled."
func (c *Consumer) WithDedupeCache(cache DedupeCache) *Consumer {
	c.dedupe = cache
	return c
}

// Handle processes one envelope: assign an id, embed, upsert the vector
// record, then insert the relational row — in that order, so a crash
// between the two steps never leaves a row without a searchable vector.
// The caller (the queue consumer) is responsible for retrying Handle up
// to R attempts with backoff; Handle itself performs exactly one attempt
// per call but is idempotent so retries are safe.
func (c *Consumer) Handle(ctx context.Context, env memory.Envelope) error {
	if c.dedupe != nil {
		if existing, err := c.dedupe.SeenRecently(ctx, env.Text); err == nil && existing != "" {
			observability.LoggerWithTrace(ctx).Debug().Str("id", existing).Msg("ingest_dedupe_hit")
			return nil
		}
	}

	// The id is derived from the envelope, so every retry or redelivery of
	// the same envelope overwrites the same vector record and hits the
	// duplicate-insert path for the row instead of leaving a second copy.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d|%q|%q|%q|%q",
		env.Timestamp, env.SourceApp, env.SessionID, env.ContextTags, env.Text))).String()

	embedding, err := c.ai.GenerateEmbeddings(ctx, env.Text)
	if err != nil {
		return fmt.Errorf("%w: embed: %v", merr.ErrTransientBackend, err)
	}

	metadata := memory.VectorMetadata{
		CreatedAt:    env.Timestamp,
		PrimaryTag:   memory.PrimaryTag(env.ContextTags),
		PriorityRank: memory.PriorityRankRaw,
	}
	if err := c.vectors.Upsert(ctx, id, embedding, metadata); err != nil {
		return fmt.Errorf("%w: vector upsert: %v", merr.ErrTransientBackend, err)
	}

	m := memory.Memory{
		ID:        id,
		Text:      env.Text,
		Tags:      env.ContextTags,
		SourceApp: env.SourceApp,
		SessionID: env.SessionID,
		Status:    memory.StatusRaw,
		CreatedAt: env.Timestamp,
		UpdatedAt: env.Timestamp,
	}
	if err := c.rows.Insert(ctx, m); err != nil {
		return fmt.Errorf("%w: relational insert: %v", merr.ErrTransientBackend, err)
	}

	if c.dedupe != nil {
		if err := c.dedupe.Remember(ctx, env.Text, id); err != nil {
			observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("ingest_dedupe_remember_failed")
		}
	}

	if c.signals != nil {
		c.signals.Append(signal.TypeSuccess, nowMs(), fmt.Sprintf("ingested memory %s", id))
	}
	observability.LoggerWithTrace(ctx).Debug().Str("id", id).Msg("ingest_ok")
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
