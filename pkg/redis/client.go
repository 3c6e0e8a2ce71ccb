package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace      = "bl"
	idempotencyPrefix = "idempotency"
	cachePrefix       = "cache"
	generationPrefix  = "gen"

	// generationTTL bounds how long a key's generation counter outlives its
	// last write. A fill that started earlier than this is refused.
	generationTTL = 24 * time.Hour
)

type cmdable interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
}

// Client wraps the redis connection helpers used by the cache and the
// idempotency middleware.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the idempotency middleware needs: stored
// responses plus an owner-checked in-flight lock.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// releaseLockSource deletes the lock only while it still holds the caller's
// token, so an expired lock re-taken by a retry is left alone.
const releaseLockSource = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// setCacheSource writes a cache entry and bumps its generation.
// KEYS: entry, generation. ARGV: value, ttl ms, generation ttl ms.
const setCacheSource = `
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[3])
return 1
`

// fillCacheSource writes a cache entry only while its generation still
// matches the one read before the row was loaded.
// KEYS: entry, generation. ARGV: value, ttl ms, expected generation.
const fillCacheSource = `
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[3] then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`

// invalidateCacheSource drops entries and bumps their generations.
// KEYS: entry, generation pairs. ARGV: generation ttl ms.
const invalidateCacheSource = `
for i = 1, #KEYS, 2 do
	redis.call("DEL", KEYS[i])
	redis.call("INCR", KEYS[i + 1])
	redis.call("PEXPIRE", KEYS[i + 1], ARGV[1])
end
return #KEYS / 2
`

var (
	releaseLockScript     = redis.NewScript(releaseLockSource)
	setCacheScript        = redis.NewScript(setCacheSource)
	fillCacheScript       = redis.NewScript(fillCacheSource)
	invalidateCacheScript = redis.NewScript(invalidateCacheSource)
)

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// ReleaseLock drops a lock taken with SetNX(key, token). It reports false when
// the lock expired or belongs to someone else.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	n, err := releaseLockScript.Run(ctx, c.store, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CacheGeneration returns the write generation of a read-cache key. A key
// that was never written, or whose counter expired, is generation 0.
func (c *Client) CacheGeneration(ctx context.Context, key string) (uint64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	raw, err := c.store.Get(ctx, c.generationKey(key)).Result()
	if IsMiss(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache generation %s: %w", key, err)
	}
	return gen, nil
}

// SetCache stores a read-cache entry and bumps its generation, so fills
// loaded before this write are refused.
func (c *Client) SetCache(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	keys := []string{c.CacheKey(key), c.generationKey(key)}
	return setCacheScript.Run(ctx, c.store, keys, value, ttl.Milliseconds(), generationTTL.Milliseconds()).Err()
}

// FillCache stores a read-cache entry only if the key is still at gen. It
// reports false when a write or invalidation happened in between.
func (c *Client) FillCache(ctx context.Context, key, value string, gen uint64, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	keys := []string{c.CacheKey(key), c.generationKey(key)}
	n, err := fillCacheScript.Run(ctx, c.store, keys, value, ttl.Milliseconds(), strconv.FormatUint(gen, 10)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DelCache drops read-cache entries and bumps their generations.
func (c *Client) DelCache(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, c.CacheKey(key), c.generationKey(key))
	}
	return invalidateCacheScript.Run(ctx, c.store, pairs, generationTTL.Milliseconds()).Err()
}

func (c *Client) generationKey(key string) string {
	return c.buildKey(cachePrefix, generationPrefix, key)
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.buildKey(idempotencyPrefix, scope, id)
}

// CacheKey returns a namespaced key for read-cache entries.
func (c *Client) CacheKey(key string) string {
	return c.buildKey(cachePrefix, key)
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
