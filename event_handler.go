package cqrs

import (
	"context"
)

// EventHandler represents a generic event handler that can handle an Event.
type EventHandler interface {
	// Handle processes the given Event within the provided context.
	Handle(ctx context.Context, event Event) error
}

// NewEventHandlerFunc creates an EventHandler from a plain function.
//
// There is no type checking or filtering: the handler receives every event it
// is invoked with. Use OnEvent for a type-safe handler.
func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

// EventMiddleware decorates an EventHandler; the event bus applies registered
// middleware around every subscriber invocation.
type EventMiddleware func(next EventHandler) EventHandler

// typedEventHandler is a strongly typed event handler for a specific Event type T.
type typedEventHandler[T Event] func(ctx context.Context, event T) error

// Handle processes the event if it matches the type T.
// Returns *ErrSkippedEvent if the event is of the wrong type.
func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h(ctx, ev)
}

// OnEvent creates a strongly-typed EventHandler for a specific event type.
// Subscribed under the matching event type name, it only ever sees events of
// type T; any other type is rejected with *ErrSkippedEvent.
//
// Example:
//
//	bus.Subscribe("OrderShipped", "notify-customer", OnEvent(func(ctx context.Context, ev OrderShipped) error {
//	    return mailer.SendShippedNotice(ctx, ev.OrderID)
//	}))
func OnEvent[T Event](fn func(ctx context.Context, event T) error) EventHandler {
	return typedEventHandler[T](fn)
}
