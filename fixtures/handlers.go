// Package fixtures provides configurable test doubles for the bus and store
// contracts.
package fixtures

import (
	"context"
	"sync"

	cqrs "github.com/emberfall/cqrs"
)

// CommandHandlerSpy records every command it handles and can be configured
// to fail.
type CommandHandlerSpy struct {
	mu sync.Mutex

	// Err, when set, is returned from every HandleCommand call.
	Err error

	// HandleFn, when set, overrides the default behavior entirely.
	HandleFn func(ctx context.Context, command cqrs.Command) error

	// Captured calls.
	Calls    int
	Commands []cqrs.Command
}

func (s *CommandHandlerSpy) HandleCommand(ctx context.Context, command cqrs.Command) error {
	s.mu.Lock()
	s.Calls++
	s.Commands = append(s.Commands, command)
	s.mu.Unlock()

	if s.HandleFn != nil {
		return s.HandleFn(ctx, command)
	}
	return s.Err
}

// CallCount returns the number of handled commands, safe for concurrent use.
func (s *CommandHandlerSpy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// EventHandlerSpy records every event it handles and can be configured to
// fail.
type EventHandlerSpy struct {
	mu sync.Mutex

	Err      error
	HandleFn func(ctx context.Context, event cqrs.Event) error

	Calls  int
	Events []cqrs.Event
}

func (s *EventHandlerSpy) Handle(ctx context.Context, event cqrs.Event) error {
	s.mu.Lock()
	s.Calls++
	s.Events = append(s.Events, event)
	s.mu.Unlock()

	if s.HandleFn != nil {
		return s.HandleFn(ctx, event)
	}
	return s.Err
}

// CallCount returns the number of handled events, safe for concurrent use.
func (s *EventHandlerSpy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// QueryHandlerSpy returns a fixed result (or error) and records calls.
type QueryHandlerSpy struct {
	mu sync.Mutex

	Result any
	Err    error

	Calls   int
	Queries []cqrs.Query
}

func (s *QueryHandlerSpy) HandleQuery(ctx context.Context, query cqrs.Query) (any, error) {
	s.mu.Lock()
	s.Calls++
	s.Queries = append(s.Queries, query)
	s.mu.Unlock()
	return s.Result, s.Err
}

// CallCount returns the number of handled queries, safe for concurrent use.
func (s *QueryHandlerSpy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
