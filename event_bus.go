package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type subscription struct {
	name    string
	handler EventHandler
}

// EventBus is an in-memory publish/subscribe dispatcher with fan-out
// semantics: every subscriber of an event's type is invoked exactly once per
// published event, in subscription order. One subscriber's failure never
// prevents the others from running; failures are collected and returned as a
// single *AggregateHandlerError after all subscribers have been attempted.
//
// This is the deliberate counterpart to the command bus's exactly-one-handler
// rule: commands have a single writer of truth, events have any number of
// independent reactions.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string][]subscription
	middleware []EventMiddleware
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]subscription),
	}
}

// Subscribe registers a named handler for an event type. The name identifies
// the subscription for Unsubscribe and error reporting; it must be unique
// within the event type.
func (b *EventBus) Subscribe(eventType, name string, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("subscribe %q to event %q: handler cannot be nil", name, eventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[eventType] {
		if sub.name == name {
			return fmt.Errorf("subscriber %q for event %q: %w", name, eventType, ErrDuplicateHandler)
		}
	}
	b.subs[eventType] = append(b.subs[eventType], subscription{name: name, handler: handler})
	return nil
}

// Unsubscribe removes a named subscription, if present.
func (b *EventBus) Unsubscribe(eventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub.name == name {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[eventType]) == 0 {
		delete(b.subs, eventType)
	}
}

// Use appends middleware applied around every subscriber invocation,
// outermost first.
func (b *EventBus) Use(mw EventMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Publish delivers the event to all subscribers of its type. Every
// subscriber is attempted; if any fail, Publish returns an
// *AggregateHandlerError listing each failure. An event with no subscribers
// is not an error.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	name := event.EventType()

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[name]))
	copy(subs, b.subs[name])
	middleware := b.middleware
	b.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "cqrs.event.publish",
		trace.WithAttributes(
			AttrEventType.String(name),
			AttrAggregateID.String(event.AggregateID()),
		),
	)
	defer span.End()

	eventsPublished.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(name)))

	var failures []HandlerFailure
	for _, sub := range subs {
		handler := sub.handler
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		if err := handler.Handle(ctx, event); err != nil {
			eventBusErrors.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(name)))
			failures = append(failures, HandlerFailure{HandlerName: sub.name, Err: err})
		}
	}

	if len(failures) > 0 {
		err := &AggregateHandlerError{EventType: name, Failures: failures}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// PublishAll publishes each event in order, attempting all of them even when
// earlier ones fail, and joins the per-event errors.
func (b *EventBus) PublishAll(ctx context.Context, events []Event) error {
	var errs []error
	for _, event := range events {
		if err := b.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubscriberCount returns the total number of subscriptions across all event
// types.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// MiddlewareCount returns the number of registered middlewares.
func (b *EventBus) MiddlewareCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.middleware)
}

// Clear removes all subscriptions and middleware.
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
	b.middleware = nil
}

// Healthy reports whether the bus can accept publishes.
func (b *EventBus) Healthy() bool { return true }
