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

// CommandBus is an in-memory command dispatcher enforcing exactly-one-handler
// semantics: each command type has a single writer of truth. Registration of
// a second handler for the same type fails, and dispatch of an unregistered
// type fails with *NoHandlerError.
//
// Dispatch runs on the caller's goroutine; the bus imposes no serialization
// of its own. Serialization of writes happens at the event store's append
// path, per aggregate, through the expected-version check.
type CommandBus struct {
	mu         sync.RWMutex
	handlers   map[string]CommandHandler
	middleware []CommandMiddleware
}

// NewCommandBus creates an empty command bus.
func NewCommandBus() *CommandBus {
	return &CommandBus{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds the handler for a command type. Returns ErrDuplicateHandler
// if the type already has one.
func (b *CommandBus) Register(commandType string, handler CommandHandler) error {
	if handler == nil {
		return fmt.Errorf("register command %q: handler cannot be nil", commandType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		return fmt.Errorf("command %q: %w", commandType, ErrDuplicateHandler)
	}
	b.handlers[commandType] = handler
	return nil
}

// Unregister removes the handler for a command type, if any.
func (b *CommandBus) Unregister(commandType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, commandType)
}

// Use appends middleware applied around every dispatched command, outermost
// first.
func (b *CommandBus) Use(mw CommandMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Dispatch routes the command to its registered handler and waits for it to
// complete. A handler failure is returned as *HandlerExecutionError wrapping
// the original cause; the bus never swallows handler errors.
func (b *CommandBus) Dispatch(ctx context.Context, command Command) error {
	name := command.CommandType()

	b.mu.RLock()
	handler, exists := b.handlers[name]
	middleware := b.middleware
	b.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "cqrs.command.dispatch",
		trace.WithAttributes(
			AttrCommandType.String(name),
			AttrAggregateID.String(command.AggregateID()),
		),
	)
	defer span.End()

	if !exists {
		err := &NoHandlerError{Kind: "command", Name: name}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	start := time.Now()
	err := handler.HandleCommand(ctx, command)
	commandsDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrCommandType.String(name)))

	if err != nil {
		commandsFailed.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(name)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &HandlerExecutionError{CommandType: name, Err: err}
	}

	commandsHandled.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(name)))
	return nil
}

// HandlerCount returns the number of registered command handlers.
func (b *CommandBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// MiddlewareCount returns the number of registered middlewares.
func (b *CommandBus) MiddlewareCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.middleware)
}

// Clear removes all handlers and middleware.
func (b *CommandBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string]CommandHandler)
	b.middleware = nil
}

// Healthy reports whether the bus can accept dispatches. The in-memory bus
// has no failure mode of its own.
func (b *CommandBus) Healthy() bool { return true }
