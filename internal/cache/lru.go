package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	lru "github.com/hashicorp/golang-lru"
)

const adapterLRU = "lru"

type lruEntry struct {
	data      []byte
	expiresAt time.Time
}

// generationsPerEntry sizes the generation table relative to the entry table.
const generationsPerEntry = 4

// LRUCache is an in-process cache bounded by entry count. Values are kept
// encoded so callers never share a mutable row.
type LRUCache struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.CacheMetrics

	// mu orders writes against generation checks. gens holds the last write
	// stamp per key, taken from counter, which only grows.
	mu      sync.Mutex
	gens    *lru.Cache
	counter uint64
}

// NewLRU builds an in-process cache holding at most size entries. A zero ttl
// keeps entries until evicted.
func NewLRU(size int, ttl time.Duration, m *metrics.CacheMetrics) (*LRUCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	gens, err := lru.New(size * generationsPerEntry)
	if err != nil {
		return nil, fmt.Errorf("create lru generations: %w", err)
	}
	return &LRUCache{entries: entries, ttl: ttl, now: time.Now, metrics: m, gens: gens}, nil
}

func (c *LRUCache) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.entries.Get(key)
	if !ok {
		c.metrics.IncMiss(adapterLRU)
		return false, nil
	}
	entry := raw.(lruEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.entries.Remove(key)
		c.metrics.IncMiss(adapterLRU)
		return false, nil
	}
	if err := decode(entry.data, dest); err != nil {
		c.entries.Remove(key)
		return false, err
	}
	c.metrics.IncHit(adapterLRU)
	return true, nil
}

func (c *LRUCache) Patch(_ context.Context, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, c.entry(data))
	c.stamp(key)
	return nil
}

func (c *LRUCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		c.entries.Remove(key)
		c.stamp(key)
	}
	c.mu.Unlock()
	c.metrics.AddInvalidations(adapterLRU, len(keys))
	return nil
}

// Generation returns the stamp of the last write to key, or 0.
func (c *LRUCache) Generation(_ context.Context, key string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(key), nil
}

// Fill stores value only if key has not been written since gen was read.
func (c *LRUCache) Fill(_ context.Context, key string, value any, gen uint64) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(key) != gen {
		return false, nil
	}
	c.entries.Add(key, c.entry(data))
	return true, nil
}

func (c *LRUCache) entry(data []byte) lruEntry {
	entry := lruEntry{data: data}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	return entry
}

func (c *LRUCache) generation(key string) uint64 {
	if raw, ok := c.gens.Get(key); ok {
		return raw.(uint64)
	}
	return 0
}

func (c *LRUCache) stamp(key string) {
	c.counter++
	c.gens.Add(key, c.counter)
}
