package queue

import (
	"context"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// inMemoryQueue is a dependency-free Producer+Consumer pair backed by a
// channel, used in tests and as the queue when no Kafka brokers are
// configured.
type inMemoryQueue struct {
	ch chan memory.Envelope
}

func NewInMemoryQueue(buffer int) *inMemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &inMemoryQueue{ch: make(chan memory.Envelope, buffer)}
}

func (q *inMemoryQueue) Publish(ctx context.Context, env memory.Envelope) error {
	select {
	case q.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *inMemoryQueue) Close() error {
	close(q.ch)
	return nil
}

// Run delivers envelopes to handle one at a time until the channel is
// closed or ctx is canceled. Tests that need the retry/backoff contract
// call handle directly; Run here just drains the buffer.
func (q *inMemoryQueue) Run(ctx context.Context, handle func(context.Context, memory.Envelope) error) error {
	for {
		select {
		case env, ok := <-q.ch:
			if !ok {
				return nil
			}
			_ = handle(ctx, env)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
