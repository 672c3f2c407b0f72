// Package redis provides a Redis-backed QueryCache, for deployments where
// query results must be shared across instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cqrs "github.com/emberfall/cqrs"
	"github.com/redis/go-redis/v9"
)

var _ cqrs.QueryCache = (*Cache)(nil)

const defaultPrefix = "cqrs:query:"

// Cache stores query results as JSON values under a common key prefix.
//
// Values round-trip through JSON: a cached struct comes back as the generic
// decoded form (map[string]any, []any, float64, ...). Handlers whose callers
// need the concrete type back should cache a serializable representation.
type Cache struct {
	client *redis.Client
	prefix string
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix overrides the key prefix, e.g. to namespace per tenant.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New creates a cache on top of an existing Redis client. The caller owns the
// client's lifecycle.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string { return c.prefix + k }

func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache get %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("query cache get %q: decode: %w", key, err)
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("query cache set %q: encode: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("query cache set %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("query cache invalidate %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return fmt.Errorf("query cache clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("query cache clear: %w", err)
	}
	return nil
}

func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := c.scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("query cache len: %w", err)
	}
	return len(keys), nil
}

func (c *Cache) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
