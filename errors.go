package cqrs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned when a dispatch or shutdown is attempted
	// on a Bus that has not been initialized (or has already been shut down).
	ErrNotInitialized = errors.New("cqrs: bus not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("cqrs: bus already initialized")

	// ErrDuplicateHandler is returned when a handler is registered for a
	// command/query type that already has one, or a subscriber name is reused
	// for the same event type.
	ErrDuplicateHandler = errors.New("cqrs: handler already registered")

	// ErrBatchMismatch is returned by Save when a batch contains envelopes
	// for more than one aggregate.
	ErrBatchMismatch = errors.New("cqrs: event batch spans multiple aggregates")

	// ErrUnregisteredEvent is returned when an event type is not known to
	// the registry.
	ErrUnregisteredEvent = errors.New("cqrs: event type not registered")

	// ErrStoreClosed is returned by event store operations after Close.
	ErrStoreClosed = errors.New("cqrs: event store is closed")
)

// ConcurrencyError reports an optimistic concurrency conflict: the aggregate
// was not at the expected version when the save was attempted. It is always
// recoverable by reloading the stream and retrying; that retry belongs to the
// caller, never to the store.
type ConcurrencyError struct {
	AggregateID string
	Expected    uint64

	// Actual is the stream version observed at conflict time. When the
	// conflict is detected by a storage uniqueness constraint rather than the
	// version pre-check, it is the contested version, a lower bound on the
	// stream's current version.
	Actual uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %q: expected version %d, actual %d",
		e.AggregateID, e.Expected, e.Actual)
}

// CorruptEventError reports a stored event that could not be deserialized.
// It names the offending event so the row can be located for manual repair.
type CorruptEventError struct {
	EventID   uuid.UUID
	EventType string
	Err       error
}

func (e *CorruptEventError) Error() string {
	return fmt.Sprintf("corrupt event %s (type %q): %v", e.EventID, e.EventType, e.Err)
}

func (e *CorruptEventError) Unwrap() error { return e.Err }

// NoHandlerError reports a dispatch for which no handler is registered.
// Kind is "command" or "query"; Name is the message type name.
type NoHandlerError struct {
	Kind string
	Name string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no %s handler registered for %q", e.Kind, e.Name)
}

// HandlerExecutionError wraps the error returned by a command handler,
// preserving the original cause.
type HandlerExecutionError struct {
	CommandType string
	Err         error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.CommandType, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }

// HandlerFailure names a single failing event subscriber within a publish.
type HandlerFailure struct {
	HandlerName string
	Err         error
}

// AggregateHandlerError collects the failures of one publish fan-out. It is
// only returned after every subscribed handler has been attempted.
type AggregateHandlerError struct {
	EventType string
	Failures  []HandlerFailure
}

func (e *AggregateHandlerError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.HandlerName, f.Err)
	}
	return fmt.Sprintf("event %q: %d handler(s) failed: %s",
		e.EventType, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual handler errors to errors.Is/errors.As.
func (e *AggregateHandlerError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ErrSkippedEvent is returned when a typed handler receives an event of the
// wrong type.
type ErrSkippedEvent struct {
	Event Event
}

func (e *ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %s", TypeName(e.Event))
}
