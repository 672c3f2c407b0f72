package cqrs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	cqrs "github.com/emberfall/cqrs"
)

func TestMemoryCache_SetGet(t *testing.T) {
	cache := cqrs.NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", "details", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit || value != "details" {
		t.Errorf("expected hit with details, got hit=%v value=%v", hit, value)
	}
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	cache := cqrs.NewMemoryCache()

	_, hit, err := cache.Get(context.Background(), "order:unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected a miss")
	}
}

func TestMemoryCache_EntriesExpire(t *testing.T) {
	cache := cqrs.NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", "stale", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	_, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected the entry to have expired")
	}

	n, err := cache.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Errorf("expected expired entries excluded from Len, got %d", n)
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := cqrs.NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "order:1", "pinned", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, hit, err := cache.Get(ctx, "order:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Error("expected a zero-ttl entry to stay")
	}
}

func TestMemoryCache_InvalidateAndClear(t *testing.T) {
	cache := cqrs.NewMemoryCache()
	ctx := context.Background()

	for _, key := range []string{"order:1", "order:2", "order:3"} {
		if err := cache.Set(ctx, key, key, time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	if err := cache.Invalidate(ctx, "order:2"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := cache.Get(ctx, "order:2"); hit {
		t.Error("expected invalidated key to miss")
	}
	if n, _ := cache.Len(ctx); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := cache.Len(ctx); n != 0 {
		t.Errorf("expected empty cache, got %d", n)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := cqrs.NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cache.Set(ctx, "shared", j, time.Minute)
				_, _, _ = cache.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	_, hit, err := cache.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Error("expected the key to survive concurrent writes")
	}
}
