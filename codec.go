package cqrs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the storable form of an envelope: one row of the event log.
// Column types are an implementation choice of the backend; the codec only
// fixes the field set and the JSON payload encoding.
type Record struct {
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	Version     uint64
	GlobalSeq   uint64
	OccurredAt  time.Time
	TenantID    string
	StoredAt    time.Time
}

// Codec converts between envelopes and storable records. It is pure and
// performs no I/O; backends share one instance.
//
// Decoding resolves the concrete event type through the package registry, so
// every event type read back must have been registered via RegisterEvent.
type Codec struct{}

// Encode serializes the envelope's event into a Record. Metadata is not part
// of the row layout and is intentionally not persisted.
func (Codec) Encode(env *Envelope) (Record, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return Record{}, fmt.Errorf("encode event %s (type %q): %w", env.EventID, env.Event.EventType(), err)
	}

	tenant := env.TenantID
	if tenant == "" {
		tenant = DefaultTenant
	}

	return Record{
		EventID:     env.EventID.String(),
		AggregateID: env.AggregateID,
		EventType:   env.Event.EventType(),
		Payload:     payload,
		Version:     env.Version,
		GlobalSeq:   env.GlobalSeq,
		OccurredAt:  env.OccurredAt,
		TenantID:    tenant,
		StoredAt:    env.StoredAt,
	}, nil
}

// Decode reconstructs an envelope from a stored record. Any failure to
// resolve the event type or unmarshal the payload surfaces as a
// *CorruptEventError naming the offending event.
func (Codec) Decode(rec Record) (*Envelope, error) {
	eventID, err := uuid.Parse(rec.EventID)
	if err != nil {
		return nil, &CorruptEventError{EventType: rec.EventType, Err: fmt.Errorf("invalid event id %q: %w", rec.EventID, err)}
	}

	ev, err := NewEventByName(rec.EventType)
	if err != nil {
		return nil, &CorruptEventError{EventID: eventID, EventType: rec.EventType, Err: err}
	}

	if err := json.Unmarshal(rec.Payload, ev); err != nil {
		return nil, &CorruptEventError{EventID: eventID, EventType: rec.EventType, Err: err}
	}

	return &Envelope{
		EventID:     eventID,
		AggregateID: rec.AggregateID,
		TenantID:    rec.TenantID,
		Event:       ev,
		Version:     rec.Version,
		GlobalSeq:   rec.GlobalSeq,
		OccurredAt:  rec.OccurredAt,
		StoredAt:    rec.StoredAt,
	}, nil
}
