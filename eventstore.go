package cqrs

import (
	"context"
	"time"
)

// EventStore defines the contract for an append-only, tenant-scoped event
// store. An EventStore persists events associated with a given aggregate ID
// in sequential order, allowing for full reconstruction of aggregate state at
// any point in time.
//
// Implementations must guarantee:
//   - Versions within an aggregate are exactly 1..N, no gaps, no duplicates.
//   - Optimistic concurrency: Save succeeds only when the aggregate is at
//     the expected version; concurrent conflicting saves produce exactly one
//     winner, the rest fail with *ConcurrencyError.
//   - Atomicity: a batch is committed entirely or not at all; partial writes
//     are never observable.
//   - Iteration order from all Load* methods is deterministic (oldest → newest).
//
// Stores never retry internally. A *ConcurrencyError means the caller must
// reload the stream, recompute its events and decide whether to retry.
type EventStore interface {
	// Save appends all events in the batch to the aggregate's stream in one
	// transaction. An empty batch is a no-op and does not touch storage.
	//
	// The aggregate's current version is compared against expectedVersion;
	// a mismatch aborts the transaction with *ConcurrencyError carrying the
	// expected and actual versions. Otherwise events are assigned versions
	// expectedVersion+1, expectedVersion+2, ... in batch order.
	//
	// Envelopes without an event ID, occurrence time or tenant are completed
	// on save; the tenant falls back to TenantFromContext(ctx).
	Save(ctx context.Context, aggregateID string, events []Envelope, expectedVersion uint64) error

	// Load returns the aggregate's events in ascending version order.
	// A missing aggregate yields an empty iterator, not an error.
	Load(ctx context.Context, aggregateID string) (*Iterator[*Envelope], error)

	// LoadFrom returns the aggregate's events with version >= version,
	// ascending by version.
	LoadFrom(ctx context.Context, aggregateID string, version uint64) (*Iterator[*Envelope], error)

	// LoadByType returns events of the given type across all aggregates,
	// ascending by occurrence time, optionally restricted to events that
	// occurred at or after from (zero time means no restriction).
	LoadByType(ctx context.Context, eventType string, from time.Time) (*Iterator[*Envelope], error)

	// LoadAll returns one page of the global event stream, ascending by the
	// storage-assigned global sequence, containing events with a sequence
	// strictly greater than cursor. Pass a zero cursor to start at the
	// beginning and the returned NextCursor to continue.
	LoadAll(ctx context.Context, cursor uint64, limit int) (StreamPage, error)

	// CurrentVersion returns the aggregate's highest stored version, or 0
	// when the aggregate has no events.
	CurrentVersion(ctx context.Context, aggregateID string) (uint64, error)

	// Exists reports whether the aggregate has any stored events.
	Exists(ctx context.Context, aggregateID string) (bool, error)

	// DeleteStream hard-deletes the aggregate's entire stream. Not
	// reversible; intended for tests and compensating cleanup, not for
	// normal domain flow.
	DeleteStream(ctx context.Context, aggregateID string) error

	// Close releases any resources held by the store. Implementations make
	// Close idempotent.
	Close() error
}

// StreamPage is one page of the global event stream.
//
// HasMore is an approximation: it is true iff exactly limit rows were
// returned, so it may report true when the page happened to end precisely at
// the last stored event. Callers needing an exact end-of-stream signal must
// request one more page.
type StreamPage struct {
	Events     []*Envelope
	NextCursor uint64
	HasMore    bool
}
