package store

import (
	"context"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// MemoryStore is the C3 contract: CRUD for memory rows keyed by id plus
// status transitions, backing both the ingestion consumer and the
// curator.
type MemoryStore interface {
	Insert(ctx context.Context, m memory.Memory) error
	Get(ctx context.Context, id string) (memory.Memory, error)
	GetByIDs(ctx context.Context, ids []string) ([]memory.Memory, error)
	Update(ctx context.Context, m memory.Memory) error
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status memory.Status, limit int) ([]memory.Memory, error)
	Close() error
}
