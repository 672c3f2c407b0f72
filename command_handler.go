package cqrs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// Evolver folds one historical envelope into the aggregate state.
//
// T represents the aggregate state type. The Evolver must not mutate the
// envelope; it produces the next state from the current one.
type Evolver[T any] func(state T, envelope *Envelope) T

// Decider determines which events should occur based on the current state
// and a command.
//
// Returning an empty slice means the command had no effect (for example it
// was idempotent); a non-nil error means the command violates a business rule
// and must not produce events.
type Decider[T any, C Command] func(state T, command C) ([]Event, error)

// DecideHandlerOption configures a handler built by NewDecideHandler.
type DecideHandlerOption func(*decideOptions)

type decideOptions struct {
	// RetryStrategy controls retries after a *ConcurrencyError. The default
	// performs no retries: conflicts surface to the caller, who owns the
	// retry policy.
	RetryStrategy func() backoff.BackOff

	// MetadataFuncs enrich every produced envelope with metadata.
	MetadataFuncs []func(ctx context.Context) map[string]any
}

// WithConflictRetry sets the backoff strategy used to retry the
// load-decide-save cycle after an optimistic concurrency conflict. The
// factory is invoked per command so strategies keep no shared state.
func WithConflictRetry(factory func() backoff.BackOff) DecideHandlerOption {
	return func(cfg *decideOptions) { cfg.RetryStrategy = factory }
}

// WithMetadataExtractor adds a metadata function applied to every produced
// envelope. Multiple extractors combine in registration order.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]any) DecideHandlerOption {
	return func(cfg *decideOptions) {
		cfg.MetadataFuncs = append(cfg.MetadataFuncs, fn)
	}
}

// NewDecideHandler returns a command handler implementing the canonical
// event-sourced write path for any aggregate type:
//
//  1. Load the aggregate's history and fold it with evolve.
//  2. Decide which new events occur via decide.
//  3. Wrap them in envelopes and save under the observed version.
//
// The handler passes the version it observed while loading as the expected
// version, so a concurrent writer causes Save to fail with *ConcurrencyError.
// By default that conflict is returned as-is; WithConflictRetry makes the
// handler reload and retry the whole cycle, which is the only safe retry:
// the decision must be recomputed against the new history. Business-rule
// errors from decide are never retried.
func NewDecideHandler[T any, C Command](
	store EventStore,
	initialState T,
	evolve Evolver[T],
	decide Decider[T, C],
	opts ...DecideHandlerOption,
) CommandHandler {
	cfg := &decideOptions{
		RetryStrategy: func() backoff.BackOff { return &backoff.StopBackOff{} },
	}
	for _, o := range opts {
		o(cfg)
	}

	return OnCommand(func(ctx context.Context, command C) error {
		aggregateID := command.AggregateID()

		attempt := func() error {
			state := initialState
			var version uint64

			iter, err := store.Load(ctx, aggregateID)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("handle %T for aggregate %q: load failed: %w", command, aggregateID, err))
			}
			for iter.Next(ctx) {
				envelope := iter.Value()
				version = envelope.Version
				state = evolve(state, envelope)
			}
			if err := iter.Err(); err != nil {
				return backoff.Permanent(fmt.Errorf("handle %T for aggregate %q: iteration failed: %w", command, aggregateID, err))
			}

			events, err := decide(state, command)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("handle %T for aggregate %q: %w", command, aggregateID, err))
			}
			if len(events) == 0 {
				return nil
			}

			metadata := make(map[string]any)
			for _, fn := range cfg.MetadataFuncs {
				for k, v := range fn(ctx) {
					metadata[k] = v
				}
			}

			envelopes := make([]Envelope, len(events))
			for i, event := range events {
				envelopes[i] = NewEnvelope(event, WithMetadata(metadata))
			}

			if err := store.Save(ctx, aggregateID, envelopes, version); err != nil {
				var conflict *ConcurrencyError
				if errors.As(err, &conflict) {
					return conflict
				}
				return backoff.Permanent(fmt.Errorf("handle %T for aggregate %q: save failed: %w", command, aggregateID, err))
			}
			return nil
		}

		return backoff.Retry(attempt, backoff.WithContext(cfg.RetryStrategy(), ctx))
	})
}
