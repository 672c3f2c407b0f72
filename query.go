package cqrs

import (
	"context"
	"fmt"
)

// Query represents a read-side request. QueryType is the registration key
// used by the query bus.
type Query interface {
	QueryType() string
}

// CacheableQuery is a Query whose result may be served from the query bus's
// result cache. CacheKey must identify the query, including its parameters:
// two queries with the same key are interchangeable.
type CacheableQuery interface {
	Query
	CacheKey() string
}

// QueryHandler implements the read logic for one query type.
type QueryHandler interface {
	HandleQuery(ctx context.Context, query Query) (any, error)
}

// QueryHandlerFunc adapts a plain function to the QueryHandler interface.
type QueryHandlerFunc func(ctx context.Context, query Query) (any, error)

func (f QueryHandlerFunc) HandleQuery(ctx context.Context, query Query) (any, error) {
	return f(ctx, query)
}

// QueryMiddleware decorates a QueryHandler; the query bus applies registered
// middleware around every dispatch.
type QueryMiddleware func(next QueryHandler) QueryHandler

// OnQuery creates a strongly-typed QueryHandler for a specific query type.
//
// Example:
//
//	bus.Register("OrderByID", OnQuery(func(ctx context.Context, q OrderByID) (*Order, error) {
//	    return repo.Find(ctx, q.ID)
//	}))
func OnQuery[Q Query, R any](fn func(ctx context.Context, query Q) (R, error)) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (any, error) {
		q, ok := query.(Q)
		if !ok {
			return nil, fmt.Errorf("expected query type %s but got %s", TypeName(*new(Q)), TypeName(query))
		}
		return fn(ctx, q)
	})
}
