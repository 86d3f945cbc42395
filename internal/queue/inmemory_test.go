package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/memory"
)

func TestInMemoryQueuePublishAndRun(t *testing.T) {
	q := NewInMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, memory.Envelope{Text: "hello"}))

	received := make(chan memory.Envelope, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = q.Run(runCtx, func(_ context.Context, env memory.Envelope) error {
			received <- env
			return nil
		})
	}()

	select {
	case env := <-received:
		assert.Equal(t, "hello", env.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	cancel()
}

func TestInMemoryQueuePublishRespectsContextCancellation(t *testing.T) {
	q := NewInMemoryQueue(1)
	require.NoError(t, q.Publish(context.Background(), memory.Envelope{Text: "first"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Publish(ctx, memory.Envelope{Text: "second"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryQueueRunStopsOnClose(t *testing.T) {
	q := NewInMemoryQueue(1)
	done := make(chan error, 1)
	go func() {
		done <- q.Run(context.Background(), func(_ context.Context, _ memory.Envelope) error {
			return nil
		})
	}()

	require.NoError(t, q.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
