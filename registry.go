package cqrs

import (
	"fmt"
	"sync"
)

var (
	// registry maps event type names to their factory functions. Each factory
	// must return a new pointer to a concrete Event type, so that decoded
	// payloads can be unmarshaled into it.
	registry = map[string]func() Event{}

	// registryMu protects the registry for concurrent registration/lookup.
	registryMu sync.RWMutex
)

// RegisterEvent registers an Event type under its own EventType() name.
//
// The factory must return a fresh instance on every call and must not return
// nil. Registration panics on a nil factory, a nil event, or a duplicate
// name; registrations happen at package init time where a panic is the
// correct failure mode.
//
// Example:
//
//	RegisterEvent(func() Event { return &OrderCreated{} })
func RegisterEvent(fn func() Event) {
	if fn == nil {
		panic("cqrs: cannot register nil event factory")
	}
	RegisterEventName(fn().EventType(), fn)
}

// RegisterEventName registers an Event type under a custom name, independent
// of EventType(). Same contract as RegisterEvent.
func RegisterEventName(name string, fn func() Event) {
	if fn == nil {
		panic("cqrs: cannot register nil event factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("cqrs: event already registered: %s", name))
	}

	if ev := fn(); ev == nil {
		panic(fmt.Sprintf("cqrs: factory returned nil for event: %s", name))
	}

	registry[name] = fn
}

// NewEventByName creates a new instance of a registered Event by name.
// Returns ErrUnregisteredEvent when the name is unknown.
func NewEventByName(name string) (Event, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredEvent, name)
	}
	ev := factory()
	if ev == nil {
		return nil, fmt.Errorf("cqrs: factory returned nil for event: %s", name)
	}
	return ev, nil
}
