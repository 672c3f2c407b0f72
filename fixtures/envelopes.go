package fixtures

import (
	"time"

	cqrs "github.com/emberfall/cqrs"
)

// Envelopes wraps each event in a fresh envelope, in order. Version, tenant
// and global sequence are left for the store to assign.
func Envelopes(events ...cqrs.Event) []cqrs.Envelope {
	out := make([]cqrs.Envelope, len(events))
	for i, ev := range events {
		out[i] = cqrs.NewEnvelope(ev)
	}
	return out
}

// EnvelopeAt wraps an event in an envelope with a fixed occurrence timestamp,
// for tests that assert on time-ordered reads.
func EnvelopeAt(event cqrs.Event, occurredAt time.Time) cqrs.Envelope {
	return cqrs.NewEnvelope(event, cqrs.WithOccurredAt(occurredAt))
}
