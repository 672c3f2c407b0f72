package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	rediscache "github.com/emberfall/cqrs/querycache/redis"
)

func newCache(t *testing.T, opts ...rediscache.Option) (*rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return rediscache.New(client, opts...), mr
}

func TestCache_SetGet(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", map[string]any{"status": "open"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}

	decoded, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected the JSON object form, got %T", value)
	}
	if decoded["status"] != "open" {
		t.Errorf("unexpected value: %v", decoded)
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache, _ := newCache(t)

	_, hit, err := cache.Get(context.Background(), "order:unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected a miss")
	}
}

func TestCache_EntriesExpire(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", "stale", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	_, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected the entry to have expired")
	}
}

func TestCache_ZeroTTLPersists(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", "pinned", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(time.Hour)

	_, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Error("expected a zero-ttl entry to stay")
	}
}

func TestCache_Invalidate(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", 1, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cache.Invalidate(ctx, "order:1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, hit, _ := cache.Get(ctx, "order:1"); hit {
		t.Error("expected the key gone")
	}
}

func TestCache_ClearAndLen(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	for _, key := range []string{"order:1", "order:2", "order:3"} {
		if err := cache.Set(ctx, key, key, time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	// A foreign key outside the prefix must survive Clear.
	mr.Set("session:42", "untouched")

	n, err := cache.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 entries, got %d", n)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := cache.Len(ctx); n != 0 {
		t.Errorf("expected empty cache, got %d", n)
	}
	if !mr.Exists("session:42") {
		t.Error("expected keys outside the prefix to survive Clear")
	}
}

func TestCache_PrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tenantA := rediscache.New(client, rediscache.WithPrefix("tenant-a:"))
	tenantB := rediscache.New(client, rediscache.WithPrefix("tenant-b:"))
	ctx := context.Background()

	if err := tenantA.Set(ctx, "order:1", "a", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tenantB.Set(ctx, "order:1", "b", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, hit, err := tenantA.Get(ctx, "order:1")
	if err != nil || !hit {
		t.Fatalf("get: hit=%v err=%v", hit, err)
	}
	if value != "a" {
		t.Errorf("expected tenant-a's value, got %v", value)
	}

	if err := tenantA.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, hit, _ := tenantB.Get(ctx, "order:1"); !hit {
		t.Error("expected tenant-b's entry to survive tenant-a's Clear")
	}
}
