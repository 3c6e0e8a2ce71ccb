package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/redis"
)

const adapterRedis = "redis"

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	CacheKey(key string) string
	CacheGeneration(ctx context.Context, key string) (uint64, error)
	SetCache(ctx context.Context, key, value string, ttl time.Duration) error
	FillCache(ctx context.Context, key, value string, gen uint64, ttl time.Duration) (bool, error)
	DelCache(ctx context.Context, keys ...string) error
}

// RedisCache shares cached rows across API replicas.
type RedisCache struct {
	store   redisStore
	ttl     time.Duration
	metrics *metrics.CacheMetrics
}

// NewRedis builds a cache backed by the shared redis client.
func NewRedis(store redisStore, ttl time.Duration, m *metrics.CacheMetrics) (*RedisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisCache{store: store, ttl: ttl, metrics: m}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.store.Get(ctx, c.store.CacheKey(key))
	if err != nil {
		if redis.IsMiss(err) {
			c.metrics.IncMiss(adapterRedis)
			return false, nil
		}
		return false, fmt.Errorf("read cache %s: %w", key, err)
	}
	if err := decode([]byte(raw), dest); err != nil {
		return false, err
	}
	c.metrics.IncHit(adapterRedis)
	return true, nil
}

func (c *RedisCache) Patch(ctx context.Context, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := c.store.SetCache(ctx, key, string(data), c.ttl); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Generation(ctx context.Context, key string) (uint64, error) {
	gen, err := c.store.CacheGeneration(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read cache generation %s: %w", key, err)
	}
	return gen, nil
}

func (c *RedisCache) Fill(ctx context.Context, key string, value any, gen uint64) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	ok, err := c.store.FillCache(ctx, key, string(data), gen, c.ttl)
	if err != nil {
		return false, fmt.Errorf("fill cache %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.DelCache(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	c.metrics.AddInvalidations(adapterRedis, len(keys))
	return nil
}
