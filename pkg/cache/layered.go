package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a memory LRU in front of Redis and writes
// through to both. The memory copy never outlives the Redis one.
type LayeredCache struct {
	mem    *MemoryCache
	redis  *RedisCache
	memTTL time.Duration
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredCache)

// WithLayeredMemoryTTL caps how long the memory copy lives.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(lc *LayeredCache) { lc.memTTL = ttl }
}

func NewLayeredCache(rc *RedisCache, opts ...LayeredOption) *LayeredCache {
	lc := &LayeredCache{redis: rc, memTTL: time.Minute}
	for _, opt := range opts {
		opt(lc)
	}
	lc.mem = NewMemoryCache()
	return lc
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, lc.memExpiry(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, dest, lc.memTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) memExpiry(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.memTTL {
		return expiration
	}
	return lc.memTTL
}

// Close stops the memory sweeper. The Redis client belongs to its owner.
func (lc *LayeredCache) Close() error { return lc.mem.Close() }
