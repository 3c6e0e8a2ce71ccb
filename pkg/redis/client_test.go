package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestCacheSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.SetCache(ctx, "order:abc", `{"id":"abc"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	key := client.CacheKey("order:abc")
	got, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `{"id":"abc"}` {
		t.Fatalf("unexpected value %q", got)
	}
	if mock.ttls[key] != time.Minute {
		t.Fatalf("expected ttl to be forwarded, got %v", mock.ttls[key])
	}

	if err := client.DelCache(ctx, "order:abc"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsMiss(err) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
	if gen, err := client.CacheGeneration(ctx, "order:abc"); err != nil || gen != 2 {
		t.Fatalf("set and delete should each bump the generation, gen=%d err=%v", gen, err)
	}
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "1", time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "2", time.Second)
	if err != nil || ok {
		t.Fatalf("second SetNX should be rejected, ok=%v err=%v", ok, err)
	}
}

func TestReleaseLockChecksOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "lock", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock should be acquired, ok=%v err=%v", ok, err)
	}
	released, err := client.ReleaseLock(ctx, "lock", "owner-b")
	if err != nil || released {
		t.Fatalf("foreign token must not release, released=%v err=%v", released, err)
	}
	released, err = client.ReleaseLock(ctx, "lock", "owner-a")
	if err != nil || !released {
		t.Fatalf("owner should release, released=%v err=%v", released, err)
	}
	if _, err := client.Get(ctx, "lock"); !IsMiss(err) {
		t.Fatalf("lock should be gone, got %v", err)
	}
}

func TestFillCacheRefusedAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	gen, err := client.CacheGeneration(ctx, "order:1")
	if err != nil || gen != 0 {
		t.Fatalf("untouched key should be generation 0, gen=%d err=%v", gen, err)
	}
	if err := client.DelCache(ctx, "order:1"); err != nil {
		t.Fatalf("del cache: %v", err)
	}
	ok, err := client.FillCache(ctx, "order:1", `{"v":1}`, gen, time.Minute)
	if err != nil || ok {
		t.Fatalf("fill after invalidate must be refused, ok=%v err=%v", ok, err)
	}
	if _, err := client.Get(ctx, client.CacheKey("order:1")); !IsMiss(err) {
		t.Fatalf("entry should stay empty, got %v", err)
	}

	gen, err = client.CacheGeneration(ctx, "order:1")
	if err != nil || gen != 1 {
		t.Fatalf("expected generation 1, gen=%d err=%v", gen, err)
	}
	ok, err = client.FillCache(ctx, "order:1", `{"v":2}`, gen, time.Minute)
	if err != nil || !ok {
		t.Fatalf("fill at current generation should succeed, ok=%v err=%v", ok, err)
	}
	if mock.ttls[client.CacheKey("order:1")] != time.Minute {
		t.Fatalf("expected ttl to be forwarded, got %v", mock.ttls[client.CacheKey("order:1")])
	}
}

func TestSetCacheBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if err := client.SetCache(ctx, "bill:1", `{"v":1}`, 0); err != nil {
		t.Fatalf("set cache: %v", err)
	}
	got, err := client.Get(ctx, client.CacheKey("bill:1"))
	if err != nil || got != `{"v":1}` {
		t.Fatalf("unexpected entry %q err=%v", got, err)
	}
	ok, err := client.FillCache(ctx, "bill:1", `{"v":0}`, 0, 0)
	if err != nil || ok {
		t.Fatalf("fill loaded before a write must be refused, ok=%v err=%v", ok, err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on uninitialized client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "bl:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.CacheKey("bill:1"); got != "bl:cache:bill:1" {
		t.Fatalf("unexpected cache key %s", got)
	}
	if got := client.generationKey("bill:1"); got != "bl:cache:gen:bill:1" {
		t.Fatalf("unexpected generation key %s", got)
	}
	if got := client.IdempotencyKey("scope", ""); got != "bl:idempotency:scope" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected url or address to be required")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script" }
func (noScriptError) RedisError()   {}

// EvalSha always misses so Script.Run falls back to Eval, which emulates
// each script by its source.
func (m *mockCmdable) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, noScriptError{})
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	switch script {
	case releaseLockSource:
		if m.data[keys[0]] == fmt.Sprint(args[0]) {
			delete(m.data, keys[0])
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case setCacheSource:
		m.data[keys[0]] = fmt.Sprint(args[0])
		m.ttls[keys[0]] = time.Duration(args[1].(int64)) * time.Millisecond
		m.bump(keys[1])
		return redis.NewCmdResult(int64(1), nil)
	case fillCacheSource:
		current, ok := m.data[keys[1]]
		if !ok {
			current = "0"
		}
		if current != fmt.Sprint(args[2]) {
			return redis.NewCmdResult(int64(0), nil)
		}
		m.data[keys[0]] = fmt.Sprint(args[0])
		m.ttls[keys[0]] = time.Duration(args[1].(int64)) * time.Millisecond
		return redis.NewCmdResult(int64(1), nil)
	case invalidateCacheSource:
		for i := 0; i+1 < len(keys); i += 2 {
			delete(m.data, keys[i])
			m.bump(keys[i+1])
		}
		return redis.NewCmdResult(int64(len(keys)/2), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

func (m *mockCmdable) bump(key string) {
	n, _ := strconv.ParseUint(m.data[key], 10, 64)
	m.data[key] = strconv.FormatUint(n+1, 10)
}

func (m *mockCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha1, keys, args...)
}

func (m *mockCmdable) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockCmdable) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
