package cqrs_test

import (
	"context"
	"testing"

	cqrs "github.com/emberfall/cqrs"
)

// Test domain types shared by the package tests.

type OrderCreated struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

func (e OrderCreated) AggregateID() string { return e.OrderID }
func (e OrderCreated) EventType() string   { return "OrderCreated" }

type ItemAdded struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
	Qty     int    `json:"qty"`
}

func (e ItemAdded) AggregateID() string { return e.OrderID }
func (e ItemAdded) EventType() string   { return "ItemAdded" }

type OrderShipped struct {
	OrderID string `json:"order_id"`
}

func (e OrderShipped) AggregateID() string { return e.OrderID }
func (e OrderShipped) EventType() string   { return "OrderShipped" }

type PlaceOrder struct {
	OrderID    string
	CustomerID string
}

func (c PlaceOrder) AggregateID() string { return c.OrderID }
func (c PlaceOrder) CommandType() string { return "PlaceOrder" }

type AddItem struct {
	OrderID string
	ItemID  string
	Qty     int
}

func (c AddItem) AggregateID() string { return c.OrderID }
func (c AddItem) CommandType() string { return "AddItem" }

type OrderByID struct {
	ID string
}

func (q OrderByID) QueryType() string { return "OrderByID" }
func (q OrderByID) CacheKey() string  { return "order:" + q.ID }

// openItems is an uncached query.
type openItems struct{}

func (openItems) QueryType() string { return "OpenItems" }

func init() {
	cqrs.RegisterEvent(func() cqrs.Event { return &OrderCreated{} })
	cqrs.RegisterEvent(func() cqrs.Event { return &ItemAdded{} })
	cqrs.RegisterEvent(func() cqrs.Event { return &OrderShipped{} })
}

func collectAll(t *testing.T, iter *cqrs.Iterator[*cqrs.Envelope]) []*cqrs.Envelope {
	t.Helper()
	results, err := iter.All(context.Background())
	if err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return results
}
