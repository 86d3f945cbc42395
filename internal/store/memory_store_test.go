package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
)

func TestInMemoryMemoryStoreInsertGet(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()
	m := memory.Memory{ID: "1", Text: "hello", Status: memory.StatusRaw, CreatedAt: 1, UpdatedAt: 1}
	require.NoError(t, s.Insert(ctx, m))

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
}

func TestInMemoryMemoryStoreDuplicateInsertIsSuccess(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()
	m := memory.Memory{ID: "1", Text: "hello", Status: memory.StatusRaw}
	require.NoError(t, s.Insert(ctx, m))
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "1", Text: "different text"}))

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text, "redelivery must not overwrite the original row")
}

func TestInMemoryMemoryStoreGetMissing(t *testing.T) {
	s := NewInMemoryMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, merr.ErrNotFound)
}

func TestInMemoryMemoryStoreUpdateMissing(t *testing.T) {
	s := NewInMemoryMemoryStore()
	err := s.Update(context.Background(), memory.Memory{ID: "missing"})
	assert.ErrorIs(t, err, merr.ErrNotFound)
}

func TestInMemoryMemoryStoreGetByIDsDropsMissing(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "1", Text: "a"}))

	rows, err := s.GetByIDs(ctx, []string{"1", "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)
}

func TestInMemoryMemoryStoreListByStatus(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "1", Status: memory.StatusRaw, CreatedAt: 1}))
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "2", Status: memory.StatusProcessed, CreatedAt: 2}))
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "3", Status: memory.StatusRaw, CreatedAt: 3}))

	raw, err := s.ListByStatus(ctx, memory.StatusRaw, 20)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "1", raw[0].ID)
	assert.Equal(t, "3", raw[1].ID)
}

func TestInMemoryMemoryStoreDelete(t *testing.T) {
	s := NewInMemoryMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, memory.Memory{ID: "1"}))
	require.NoError(t, s.Delete(ctx, "1"))

	_, err := s.Get(ctx, "1")
	assert.ErrorIs(t, err, merr.ErrNotFound)
}
