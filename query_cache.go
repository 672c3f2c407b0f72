package cqrs

import (
	"context"
	"sync"
	"time"
)

// QueryCache stores query results keyed by the query's cache key. The cache
// is never on the correctness path: a failing cache degrades the query bus to
// always executing handlers, nothing more.
//
// Implementations must be safe for concurrent use. Concurrent fills of the
// same key are last-write-wins; single-flight behavior is not required.
type QueryCache interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores the value under key for at most ttl. A non-positive ttl
	// stores the value without expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Invalidate removes one key. Invalidated results are never returned
	// again.
	Invalidate(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// memoryCache is the default in-process QueryCache: a mutex-guarded map with
// lazy expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() QueryCache {
	return &memoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (any, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if current, ok := c.entries[key]; ok && !current.expiresAt.IsZero() && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.entries {
		if entry.expiresAt.IsZero() || !c.now().After(entry.expiresAt) {
			n++
		}
	}
	return n, nil
}
