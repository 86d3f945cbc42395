// Package queue is the ingestion envelope queue (C4 writes, C5 reads),
// abstracted behind a narrow Producer/Consumer pair so the front door and
// the consumer never depend on the broker directly.
package queue

import (
	"context"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// Producer enqueues an envelope. The front door's latency budget is one
// Publish call; it must never block on downstream processing.
type Producer interface {
	Publish(ctx context.Context, env memory.Envelope) error
	Close() error
}

// Consumer delivers envelopes to a handler with no ordering guarantee
// across messages. What happens on handler failure is up to the
// implementation: the Kafka consumer retries in-process, dead-letters the
// envelope after the last attempt and commits it either way; the in-memory
// queue discards the error.
type Consumer interface {
	// Run blocks, dispatching envelopes to handle until ctx is canceled.
	Run(ctx context.Context, handle func(context.Context, memory.Envelope) error) error
	Close() error
}
