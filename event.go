package cqrs

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to an aggregate.
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope wraps a domain event together with the storage metadata the event
// store maintains for it. Version is the 1-based position of the event within
// its aggregate's stream. GlobalSeq is the storage-assigned monotonic sequence
// across all aggregates; it is zero until the envelope has been persisted.
type Envelope struct {
	EventID     uuid.UUID
	AggregateID string
	TenantID    string
	Metadata    map[string]any
	Event       Event
	Version     uint64
	GlobalSeq   uint64
	OccurredAt  time.Time
	StoredAt    time.Time
}

// EventOption configures an envelope produced by NewEnvelope.
type EventOption func(*Envelope)

// WithOccurredAt overrides the domain occurrence timestamp.
func WithOccurredAt(t time.Time) EventOption {
	return func(env *Envelope) { env.OccurredAt = t }
}

// WithEnvelopeTenant pins the envelope to a specific tenant instead of the
// one carried by the context at save time.
func WithEnvelopeTenant(tenant string) EventOption {
	return func(env *Envelope) { env.TenantID = tenant }
}

// WithMetadata merges the given metadata into the envelope.
func WithMetadata(md map[string]any) EventOption {
	return func(env *Envelope) {
		if env.Metadata == nil {
			env.Metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			env.Metadata[k] = v
		}
	}
}

// NewEnvelope wraps a domain event in a fresh envelope with a new event ID
// and the current time as occurrence timestamp. Version, TenantID and
// GlobalSeq are completed by the event store on save.
func NewEnvelope(event Event, options ...EventOption) Envelope {
	env := Envelope{
		EventID:     uuid.New(),
		AggregateID: event.AggregateID(),
		Metadata:    make(map[string]any),
		Event:       event,
		OccurredAt:  time.Now().UTC(),
	}
	for _, opt := range options {
		opt(&env)
	}
	return env
}
