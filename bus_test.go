package cqrs_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	cqrs "github.com/emberfall/cqrs"
	"github.com/emberfall/cqrs/fixtures"
	"github.com/sirupsen/logrus"
)

func newInitializedBus(t *testing.T, opts ...cqrs.BusOption) *cqrs.Bus {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	bus := cqrs.New(append([]cqrs.BusOption{cqrs.WithLogger(logrus.NewEntry(log))}, opts...)...)
	if err := bus.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return bus
}

func TestBus_DispatchBeforeInitialize(t *testing.T) {
	bus := cqrs.New()
	ctx := context.Background()

	if err := bus.ExecuteCommand(ctx, PlaceOrder{OrderID: "order-1"}); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("ExecuteCommand: expected ErrNotInitialized, got %v", err)
	}
	if _, err := bus.ExecuteQuery(ctx, OrderByID{ID: "order-1"}); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("ExecuteQuery: expected ErrNotInitialized, got %v", err)
	}
	if err := bus.PublishEvent(ctx, OrderShipped{OrderID: "order-1"}); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("PublishEvent: expected ErrNotInitialized, got %v", err)
	}
}

func TestBus_DoubleInitialize(t *testing.T) {
	bus := newInitializedBus(t)

	err := bus.Initialize(context.Background())
	if !errors.Is(err, cqrs.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestBus_ShutdownIsTerminal(t *testing.T) {
	bus := newInitializedBus(t)
	ctx := context.Background()

	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if err := bus.ExecuteCommand(ctx, PlaceOrder{OrderID: "order-1"}); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized after shutdown, got %v", err)
	}
	if err := bus.Initialize(ctx); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("expected re-initialize to fail, got %v", err)
	}
	if err := bus.Shutdown(ctx); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("expected second shutdown to fail, got %v", err)
	}
}

func TestBus_ShutdownWhileUninitialized(t *testing.T) {
	bus := cqrs.New()

	if err := bus.Shutdown(context.Background()); !errors.Is(err, cqrs.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestBus_ShutdownClearsEverything(t *testing.T) {
	qb := cqrs.NewQueryBus(cqrs.WithQueryCache(cqrs.NewMemoryCache(), time.Minute))
	bus := newInitializedBus(t, cqrs.WithQueryBus(qb))
	ctx := context.Background()

	if err := bus.Commands().Register("PlaceOrder", &fixtures.CommandHandlerSpy{}); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := bus.Queries().Register("OrderByID", &fixtures.QueryHandlerSpy{Result: 1}); err != nil {
		t.Fatalf("register query: %v", err)
	}
	if err := bus.Events().Subscribe("OrderShipped", "projector", &fixtures.EventHandlerSpy{}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := bus.ExecuteQuery(ctx, OrderByID{ID: "order-1"}); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if stats := bus.GetStatistics(ctx); stats.Total != 4 {
		t.Fatalf("expected 4 registrations before shutdown, got %+v", stats)
	}

	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if stats := bus.GetStatistics(ctx); stats.Total != 0 {
		t.Errorf("expected everything cleared, got %+v", stats)
	}
}

func TestBus_EndToEndDispatch(t *testing.T) {
	bus := newInitializedBus(t)
	ctx := context.Background()

	commandSpy := &fixtures.CommandHandlerSpy{}
	eventSpy := &fixtures.EventHandlerSpy{}

	if err := bus.Commands().Register("PlaceOrder", commandSpy); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := bus.Events().Subscribe("OrderCreated", "projector", eventSpy); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.ExecuteCommand(ctx, PlaceOrder{OrderID: "order-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := bus.PublishEvent(ctx, OrderCreated{OrderID: "order-1", CustomerID: "cust-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if commandSpy.CallCount() != 1 || eventSpy.CallCount() != 1 {
		t.Errorf("expected one command and one event handled, got %d and %d",
			commandSpy.CallCount(), eventSpy.CallCount())
	}
}

func TestBus_HealthCheck(t *testing.T) {
	bus := cqrs.New()
	ctx := context.Background()

	if bus.HealthCheck(ctx) {
		t.Error("expected unhealthy before initialize")
	}

	if err := bus.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !bus.HealthCheck(ctx) {
		t.Error("expected healthy after initialize")
	}

	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if bus.HealthCheck(ctx) {
		t.Error("expected unhealthy after shutdown")
	}
}

func TestBus_GetStatistics(t *testing.T) {
	bus := newInitializedBus(t)
	ctx := context.Background()

	if err := bus.Commands().Register("PlaceOrder", &fixtures.CommandHandlerSpy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := bus.Commands().Register("AddItem", &fixtures.CommandHandlerSpy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := bus.Queries().Register("OrderByID", &fixtures.QueryHandlerSpy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := bus.Events().Subscribe("OrderShipped", "mailer", &fixtures.EventHandlerSpy{}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	bus.Events().Use(func(next cqrs.EventHandler) cqrs.EventHandler { return next })

	stats := bus.GetStatistics(ctx)
	if stats.CommandHandlers != 2 {
		t.Errorf("expected 2 command handlers, got %d", stats.CommandHandlers)
	}
	if stats.QueryHandlers != 1 {
		t.Errorf("expected 1 query handler, got %d", stats.QueryHandlers)
	}
	if stats.EventSubscribers != 1 {
		t.Errorf("expected 1 event subscriber, got %d", stats.EventSubscribers)
	}
	if stats.EventMiddleware != 1 {
		t.Errorf("expected 1 event middleware, got %d", stats.EventMiddleware)
	}
	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
}
