package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Counter is an atomic check-and-increment counter keyed by (scope, bucket).
// Incr must never allow two concurrent callers to both observe the
// pre-increment value: the returned count is the caller's own slot.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter backs windows with Redis INCR so counts are shared across
// instances. The expiry is set only when the key is created, pinning the
// window to its first request's bucket.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryCounter is a process-local Counter for single-instance deployments,
// degraded mode, and tests.
type MemoryCounter struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		cache: cache.New(24*time.Hour, 10*time.Minute),
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// IncrementInt64 keeps the key's original expiry, so the window stays
	// pinned to the first request's bucket.
	if count, err := c.cache.IncrementInt64(key, 1); err == nil {
		return count, nil
	}
	c.cache.Set(key, int64(1), ttl)
	return 1, nil
}
