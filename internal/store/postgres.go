package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/merr"
)

type pgMemoryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMemoryStore wraps an existing pgxpool.Pool as a MemoryStore
// and ensures the memories table and its indexes exist.
func NewPostgresMemoryStore(ctx context.Context, pool *pgxpool.Pool) (MemoryStore, error) {
	s := &pgMemoryStore{pool: pool}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresPool opens a connection pool against dsn with the teacher's
// conservative pool settings and verifies connectivity with a ping.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return pool, nil
}

func (s *pgMemoryStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    source_app TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'raw',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS memories_session_id_idx ON memories(session_id);
CREATE INDEX IF NOT EXISTS memories_source_app_idx ON memories(source_app);
CREATE INDEX IF NOT EXISTS memories_created_at_idx ON memories(created_at);
CREATE INDEX IF NOT EXISTS memories_status_idx ON memories(status);
`)
	return err
}

func (s *pgMemoryStore) Insert(ctx context.Context, m memory.Memory) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO memories (id, text, tags, source_app, session_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Text, tags, m.SourceApp, m.SessionID, string(m.Status), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// At-least-once redelivery re-inserting the same id: §4.1
			// treats this as success.
			return nil
		}
		return fmt.Errorf("%w: insert memory: %v", merr.ErrTransientBackend, err)
	}
	return nil
}

func (s *pgMemoryStore) scanRow(row pgx.Row) (memory.Memory, error) {
	var (
		m        memory.Memory
		status   string
		tagsJSON []byte
	)
	if err := row.Scan(&m.ID, &m.Text, &tagsJSON, &m.SourceApp, &m.SessionID, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memory.Memory{}, merr.ErrNotFound
		}
		return memory.Memory{}, fmt.Errorf("%w: scan memory: %v", merr.ErrTransientBackend, err)
	}
	m.Status = memory.Status(status)
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &m.Tags)
	}
	return m, nil
}

func (s *pgMemoryStore) Get(ctx context.Context, id string) (memory.Memory, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, text, tags, source_app, session_id, status, created_at, updated_at
FROM memories WHERE id = $1`, id)
	return s.scanRow(row)
}

func (s *pgMemoryStore) GetByIDs(ctx context.Context, ids []string) ([]memory.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, text, tags, source_app, session_id, status, created_at, updated_at
FROM memories WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: query memories by ids: %v", merr.ErrTransientBackend, err)
	}
	defer rows.Close()

	out := make([]memory.Memory, 0, len(ids))
	for rows.Next() {
		m, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *pgMemoryStore) Update(ctx context.Context, m memory.Memory) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE memories SET text = $2, tags = $3, status = $4, updated_at = $5
WHERE id = $1`, m.ID, m.Text, tags, string(m.Status), m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: update memory: %v", merr.ErrTransientBackend, err)
	}
	if tag.RowsAffected() == 0 {
		return merr.ErrNotFound
	}
	return nil
}

func (s *pgMemoryStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete memory: %v", merr.ErrTransientBackend, err)
	}
	return nil
}

func (s *pgMemoryStore) ListByStatus(ctx context.Context, status memory.Status, limit int) ([]memory.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, text, tags, source_app, session_id, status, created_at, updated_at
FROM memories WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list memories by status: %v", merr.ErrTransientBackend, err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		m, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *pgMemoryStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
