package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/queue"
	"github.com/manifold-labs/memoryd/internal/signal"
	"github.com/manifold-labs/memoryd/internal/store"
)

func memoryEnvelope(text string, tags []string) memory.Envelope {
	return memory.Envelope{
		Version:     memory.EnvelopeVersion,
		Text:        text,
		ContextTags: tags,
		Timestamp:   1,
		SourceApp:   "app",
		SessionID:   "sess",
	}
}

type fakeProvider struct {
	embedding  []float32
	embedErr   error
	embedCalls int
}

func (f *fakeProvider) GenerateText(ctx context.Context, prompt, system string, opts ai.TextOptions) (string, error) {
	return "", nil
}
func (f *fakeProvider) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts ai.TextOptions) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GenerateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}
func (f *fakeProvider) RewriteQuestionForMCP(ctx context.Context, query string, rc *ai.RewriteContext, opts ai.TextOptions) (string, error) {
	return query, nil
}

func TestFrontDoorSubmitRejectsEmptyText(t *testing.T) {
	front := NewFrontDoor(queue.NewInMemoryQueue(1), signal.New())
	err := front.Submit(context.Background(), "", "app", "sess", nil)
	assert.ErrorIs(t, err, merr.ErrInvalidInput)
}

func TestFrontDoorSubmitEnqueuesAndLogsSignal(t *testing.T) {
	q := queue.NewInMemoryQueue(1)
	signals := signal.New()
	front := NewFrontDoor(q, signals)

	require.NoError(t, front.Submit(context.Background(), "remember this", "app", "sess", []string{"work"}))

	tail := signals.Tail()
	require.Len(t, tail, 1)
	assert.Equal(t, signal.TypeInfo, tail[0].Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan memory.Envelope, 1)
	go func() {
		_ = q.Run(ctx, func(_ context.Context, env memory.Envelope) error {
			received <- env
			return nil
		})
	}()

	select {
	case env := <-received:
		assert.Equal(t, "remember this", env.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive enqueued envelope")
	}
}

// orderCheckingRows rejects an Insert whose id is not yet searchable in
// vectors, so a row written before its vector record fails the Handle call.
type orderCheckingRows struct {
	store.MemoryStore
	vectors store.VectorStore
}

func (o orderCheckingRows) Insert(ctx context.Context, m memory.Memory) error {
	results, err := o.vectors.SimilaritySearch(ctx, []float32{1, 0, 0}, 10, store.MetadataFilter{})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.ID == m.ID {
			return o.MemoryStore.Insert(ctx, m)
		}
	}
	return errors.New("row inserted before its vector record")
}

func TestConsumerHandleWritesVectorBeforeRow(t *testing.T) {
	vectors := store.NewMemoryVectorStore(3)
	rows := store.NewInMemoryMemoryStore()
	signals := signal.New()
	provider := &fakeProvider{embedding: []float32{1, 0, 0}}
	c := NewConsumer(provider, vectors, orderCheckingRows{MemoryStore: rows, vectors: vectors}, signals)

	env := memoryEnvelope("hello world", []string{"work"})
	require.NoError(t, c.Handle(context.Background(), env))

	results, err := vectors.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 10, store.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got, err := rows.Get(context.Background(), results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, "work", got.Tags[0])
}

func TestConsumerHandlePropagatesEmbedFailureAsTransient(t *testing.T) {
	vectors := store.NewMemoryVectorStore(3)
	rows := store.NewInMemoryMemoryStore()
	provider := &fakeProvider{embedErr: errors.New("backend down")}
	c := NewConsumer(provider, vectors, rows, signal.New())

	err := c.Handle(context.Background(), memoryEnvelope("hello", nil))
	assert.ErrorIs(t, err, merr.ErrTransientBackend)
}

type fakeDedupeCache struct {
	seen map[string]string
}

func newFakeDedupeCache() *fakeDedupeCache {
	return &fakeDedupeCache{seen: make(map[string]string)}
}

func (f *fakeDedupeCache) SeenRecently(ctx context.Context, text string) (string, error) {
	return f.seen[text], nil
}

func (f *fakeDedupeCache) Remember(ctx context.Context, text, id string) error {
	f.seen[text] = id
	return nil
}

func TestConsumerHandleSkipsEmbedOnDedupeHit(t *testing.T) {
	vectors := store.NewMemoryVectorStore(3)
	rows := store.NewInMemoryMemoryStore()
	provider := &fakeProvider{embedding: []float32{1, 0, 0}}
	c := NewConsumer(provider, vectors, rows, signal.New()).WithDedupeCache(newFakeDedupeCache())

	env := memoryEnvelope("duplicate text", nil)
	require.NoError(t, c.Handle(context.Background(), env))
	assert.Equal(t, 1, provider.embedCalls)

	require.NoError(t, c.Handle(context.Background(), env))
	assert.Equal(t, 1, provider.embedCalls, "second identical submission should be short-circuited by the dedupe cache")
}
