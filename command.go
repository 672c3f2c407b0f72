package cqrs

import (
	"context"
	"fmt"
)

// Command represents the intent to perform a domain action against a single
// aggregate. CommandType is the registration key used by the command bus.
type Command interface {
	AggregateID() string
	CommandType() string
}

// CommandHandler implements the business logic for one command type.
// Implementations should treat the command as immutable and express state
// changes as events appended to an EventStore, not by mutating state directly.
type CommandHandler interface {
	HandleCommand(ctx context.Context, command Command) error
}

// CommandHandlerFunc adapts a plain function to the CommandHandler interface.
type CommandHandlerFunc func(ctx context.Context, command Command) error

func (f CommandHandlerFunc) HandleCommand(ctx context.Context, command Command) error {
	return f(ctx, command)
}

// CommandMiddleware decorates a CommandHandler; the command bus applies
// registered middleware around every dispatch.
type CommandMiddleware func(next CommandHandler) CommandHandler

// OnCommand creates a strongly-typed CommandHandler for a specific command
// type. The returned handler rejects commands of any other type, which can
// only happen when it is registered under the wrong name.
//
// Example:
//
//	bus.Register("PlaceOrder", OnCommand(func(ctx context.Context, cmd PlaceOrder) error {
//	    return store.Save(ctx, cmd.AggregateID(), events, version)
//	}))
func OnCommand[C Command](fn func(ctx context.Context, command C) error) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, command Command) error {
		cmd, ok := command.(C)
		if !ok {
			return fmt.Errorf("expected command type %s but got %s", TypeName(*new(C)), TypeName(command))
		}
		return fn(ctx, cmd)
	})
}
