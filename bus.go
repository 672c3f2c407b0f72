package cqrs

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// lifecycle is the Bus state machine: Uninitialized → Initialized → ShutDown.
// ShutDown is terminal; a shut-down Bus cannot be re-initialized, a fresh
// instance is required.
type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateInitialized
	stateShutDown
)

// Clearable is implemented by every sub-bus: Clear drops all registered
// handlers, subscriptions, middleware and cached results.
type Clearable interface {
	Clear()
}

// HealthReporter is implemented by every sub-bus. The in-memory buses always
// report healthy; backed implementations (a remote query cache, say) can
// report a deeper check.
type HealthReporter interface {
	Healthy() bool
}

// Statistics is a read-only snapshot of the Bus's registrations.
type Statistics struct {
	CommandHandlers   int
	QueryHandlers     int
	EventSubscribers  int
	CommandMiddleware int
	QueryMiddleware   int
	EventMiddleware   int
	CachedQueries     int
	Total             int
}

// Bus is the single entry point unifying the command, query and event buses
// behind one lifecycle-managed façade. All dispatch operations require the
// Bus to be initialized; handler registration happens through the sub-bus
// accessors before or after Initialize, typically at the composition root.
type Bus struct {
	mu       sync.RWMutex
	state    lifecycle
	commands *CommandBus
	queries  *QueryBus
	events   *EventBus
	log      *logrus.Entry
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger attaches a structured logger used for lifecycle transitions.
// Logging is never on the correctness path.
func WithLogger(log *logrus.Entry) BusOption {
	return func(b *Bus) { b.log = log }
}

// WithQueryBus replaces the default query bus, e.g. to equip it with a
// result cache.
func WithQueryBus(qb *QueryBus) BusOption {
	return func(b *Bus) { b.queries = qb }
}

// New creates a Bus in the Uninitialized state.
func New(opts ...BusOption) *Bus {
	b := &Bus{
		commands: NewCommandBus(),
		queries:  NewQueryBus(),
		events:   NewEventBus(),
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Commands returns the command bus for handler registration.
func (b *Bus) Commands() *CommandBus { return b.commands }

// Queries returns the query bus for handler registration.
func (b *Bus) Queries() *QueryBus { return b.queries }

// Events returns the event bus for subscription wiring.
func (b *Bus) Events() *EventBus { return b.events }

// Initialize transitions the Bus to Initialized. Calling it twice, or after
// Shutdown, fails with ErrAlreadyInitialized / ErrNotInitialized.
func (b *Bus) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateInitialized:
		return ErrAlreadyInitialized
	case stateShutDown:
		return ErrNotInitialized
	}
	b.state = stateInitialized
	b.log.Debug("cqrs bus initialized")
	return nil
}

// Shutdown clears all handlers, subscriptions, middleware and caches in the
// three sub-buses and transitions to the terminal ShutDown state. A second
// call fails cleanly with ErrNotInitialized.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateInitialized {
		return ErrNotInitialized
	}

	for _, sub := range []Clearable{b.commands, b.queries, b.events} {
		sub.Clear()
	}
	b.state = stateShutDown
	b.log.Debug("cqrs bus shut down")
	return nil
}

// requireInitialized gates every dispatch operation.
func (b *Bus) requireInitialized() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != stateInitialized {
		return ErrNotInitialized
	}
	return nil
}

// ExecuteCommand routes the command to its single registered handler.
// Handler failures propagate as *HandlerExecutionError; they are never
// suppressed.
func (b *Bus) ExecuteCommand(ctx context.Context, command Command) error {
	if err := b.requireInitialized(); err != nil {
		return err
	}
	return b.commands.Dispatch(ctx, command)
}

// ExecuteQuery routes the query to its single registered handler, serving
// from the result cache when the query is cacheable.
func (b *Bus) ExecuteQuery(ctx context.Context, query Query) (any, error) {
	if err := b.requireInitialized(); err != nil {
		return nil, err
	}
	return b.queries.Dispatch(ctx, query)
}

// PublishEvent fans the event out to all subscribers of its type.
func (b *Bus) PublishEvent(ctx context.Context, event Event) error {
	if err := b.requireInitialized(); err != nil {
		return err
	}
	return b.events.Publish(ctx, event)
}

// PublishEvents publishes each event in order, attempting all of them.
func (b *Bus) PublishEvents(ctx context.Context, events []Event) error {
	if err := b.requireInitialized(); err != nil {
		return err
	}
	return b.events.PublishAll(ctx, events)
}

// HealthCheck reports false unless the Bus is initialized and every sub-bus
// reports healthy.
func (b *Bus) HealthCheck(ctx context.Context) bool {
	if err := b.requireInitialized(); err != nil {
		return false
	}
	for _, sub := range []HealthReporter{b.commands, b.queries, b.events} {
		if !sub.Healthy() {
			return false
		}
	}
	return true
}

// GetStatistics returns a snapshot of registration counts. Read-only, no
// side effects, available in every lifecycle state.
func (b *Bus) GetStatistics(ctx context.Context) Statistics {
	stats := Statistics{
		CommandHandlers:   b.commands.HandlerCount(),
		QueryHandlers:     b.queries.HandlerCount(),
		EventSubscribers:  b.events.SubscriberCount(),
		CommandMiddleware: b.commands.MiddlewareCount(),
		QueryMiddleware:   b.queries.MiddlewareCount(),
		EventMiddleware:   b.events.MiddlewareCount(),
		CachedQueries:     b.queries.CacheLen(ctx),
	}
	stats.Total = stats.CommandHandlers + stats.QueryHandlers + stats.EventSubscribers +
		stats.CommandMiddleware + stats.QueryMiddleware + stats.EventMiddleware + stats.CachedQueries
	return stats
}
