// Package cache holds the read cache in front of the ledger store. It is
// never a source of truth: writers patch it after a successful write and
// invalidate it after a failed one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Cache is the port the services read and write through.
type Cache interface {
	// Get decodes the cached value into dest. found is false on a miss.
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	// Patch replaces the cached value for key.
	Patch(ctx context.Context, key string, value any) error
	// Invalidate drops the keys. Missing keys are ignored.
	Invalidate(ctx context.Context, keys ...string) error
}

// filler is implemented by adapters that can refuse a read-through fill when
// the key was written or invalidated after the load started.
type filler interface {
	Generation(ctx context.Context, key string) (uint64, error)
	Fill(ctx context.Context, key string, value any, gen uint64) (bool, error)
}

func OrderKey(id uuid.UUID) string   { return "order:" + id.String() }
func BillKey(id uuid.UUID) string    { return "bill:" + id.String() }
func AccountKey(id uuid.UUID) string { return "account:" + id.String() }

// Fetch reads key through the cache, falling back to load on a miss and
// populating the cache with the loaded row. The row is not written back if
// the key was patched or invalidated while it loaded. Cache failures degrade
// to a store read; only load errors are returned.
func Fetch[T any](ctx context.Context, c Cache, key string, load func(context.Context) (*T, error)) (*T, error) {
	if c == nil {
		return load(ctx)
	}
	var cached T
	if found, err := c.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	f, guarded := c.(filler)
	var gen uint64
	var genErr error
	if guarded {
		gen, genErr = f.Generation(ctx, key)
	}

	row, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	switch {
	case !guarded:
		_ = c.Patch(ctx, key, row)
	case genErr == nil:
		_, _ = f.Fill(ctx, key, row, gen)
	}
	return row, nil
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}
