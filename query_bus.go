package cqrs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// QueryBus is an in-memory query dispatcher with an optional result cache.
// Like the command bus it enforces exactly one handler per query type.
//
// Results of queries implementing CacheableQuery are served from the cache
// when present and fresh; cache failures are ignored and fall through to the
// handler, since the cache is not on the correctness path.
type QueryBus struct {
	mu         sync.RWMutex
	handlers   map[string]QueryHandler
	middleware []QueryMiddleware
	cache      QueryCache
	ttl        time.Duration
}

// QueryBusOption configures a QueryBus.
type QueryBusOption func(*QueryBus)

// WithQueryCache equips the bus with a result cache. Cached entries expire
// after ttl; a non-positive ttl caches without expiry.
func WithQueryCache(cache QueryCache, ttl time.Duration) QueryBusOption {
	return func(b *QueryBus) {
		b.cache = cache
		b.ttl = ttl
	}
}

// NewQueryBus creates an empty query bus.
func NewQueryBus(opts ...QueryBusOption) *QueryBus {
	b := &QueryBus{
		handlers: make(map[string]QueryHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds the handler for a query type. Returns ErrDuplicateHandler if
// the type already has one.
func (b *QueryBus) Register(queryType string, handler QueryHandler) error {
	if handler == nil {
		return fmt.Errorf("register query %q: handler cannot be nil", queryType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[queryType]; exists {
		return fmt.Errorf("query %q: %w", queryType, ErrDuplicateHandler)
	}
	b.handlers[queryType] = handler
	return nil
}

// Unregister removes the handler for a query type, if any.
func (b *QueryBus) Unregister(queryType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, queryType)
}

// Use appends middleware applied around every dispatched query, outermost
// first. Middleware runs on cache misses only; cached results bypass it.
func (b *QueryBus) Use(mw QueryMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Dispatch routes the query to its registered handler, serving from the
// cache when possible.
func (b *QueryBus) Dispatch(ctx context.Context, query Query) (any, error) {
	name := query.QueryType()

	b.mu.RLock()
	handler, exists := b.handlers[name]
	middleware := b.middleware
	cache, ttl := b.cache, b.ttl
	b.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "cqrs.query.dispatch",
		trace.WithAttributes(AttrQueryType.String(name)),
	)
	defer span.End()

	if !exists {
		err := &NoHandlerError{Kind: "query", Name: name}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	cacheKey := ""
	if cacheable, ok := query.(CacheableQuery); ok && cache != nil {
		cacheKey = cacheable.CacheKey()
		if value, hit, err := cache.Get(ctx, cacheKey); err == nil && hit {
			span.SetAttributes(AttrCacheHit.Bool(true))
			queryCacheHits.Add(ctx, 1, metric.WithAttributes(AttrQueryType.String(name)))
			return value, nil
		}
	}
	span.SetAttributes(AttrCacheHit.Bool(false))

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	result, err := handler.HandleQuery(ctx, query)
	if err != nil {
		queriesFailed.Add(ctx, 1, metric.WithAttributes(AttrQueryType.String(name)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if cacheKey != "" {
		// Last write wins under concurrent fills; a failing Set only costs
		// the next caller a handler execution.
		_ = cache.Set(ctx, cacheKey, result, ttl)
	}

	queriesHandled.Add(ctx, 1, metric.WithAttributes(AttrQueryType.String(name)))
	return result, nil
}

// Invalidate drops one cached result by key.
func (b *QueryBus) Invalidate(ctx context.Context, cacheKey string) error {
	b.mu.RLock()
	cache := b.cache
	b.mu.RUnlock()
	if cache == nil {
		return nil
	}
	return cache.Invalidate(ctx, cacheKey)
}

// HandlerCount returns the number of registered query handlers.
func (b *QueryBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// MiddlewareCount returns the number of registered middlewares.
func (b *QueryBus) MiddlewareCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.middleware)
}

// CacheLen returns the number of live cache entries, 0 without a cache.
func (b *QueryBus) CacheLen(ctx context.Context) int {
	b.mu.RLock()
	cache := b.cache
	b.mu.RUnlock()
	if cache == nil {
		return 0
	}
	n, err := cache.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}

// Clear removes all handlers, middleware and cached results.
func (b *QueryBus) Clear() {
	b.mu.Lock()
	cache := b.cache
	b.handlers = make(map[string]QueryHandler)
	b.middleware = nil
	b.mu.Unlock()

	if cache != nil {
		_ = cache.Clear(context.Background())
	}
}

// Healthy reports whether the bus can accept dispatches.
func (b *QueryBus) Healthy() bool { return true }
