package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DedupeCache short-circuits embedding calls for identical recent
// submissions within a TTL window. Implementations key on a hash of the
// envelope text; a miss is not an error, just "not seen recently."
type DedupeCache interface {
	SeenRecently(ctx context.Context, text string) (string, error)
	Remember(ctx context.Context, text, id string) error
}

// RedisDedupeCache is a Redis-backed DedupeCache, the optional best-effort
// cache named by REDIS_URL. Consumer treats every error from it as a cache
// miss: dedup is a latency optimization, never a correctness dependency.
type RedisDedupeCache struct {
	client *redis.Client
	ttl    time.Duration
}

const defaultDedupeTTL = 5 * time.Minute

// NewRedisDedupeCache dials addr and pings it once to fail fast on a bad
// configuration, the way the teacher's orchestrator dedupe store does.
func NewRedisDedupeCache(addr string, ttl time.Duration) (*RedisDedupeCache, error) {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ingest: redis dedupe cache ping: %w", err)
	}
	return &RedisDedupeCache{client: c, ttl: ttl}, nil
}

func dedupeKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "memoryd:dedupe:" + hex.EncodeToString(sum[:])
}

// SeenRecently returns the id previously assigned to an identical text
// within the TTL window, or "" if there is no recent match.
func (c *RedisDedupeCache) SeenRecently(ctx context.Context, text string) (string, error) {
	val, err := c.client.Get(ctx, dedupeKey(text)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Remember records id as the canonical memory for text for the TTL window.
func (c *RedisDedupeCache) Remember(ctx context.Context, text, id string) error {
	return c.client.Set(ctx, dedupeKey(text), id, c.ttl).Err()
}

func (c *RedisDedupeCache) Close() error { return c.client.Close() }
