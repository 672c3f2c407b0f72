// Package memory provides an in-process EventStore used in tests and
// composition roots that do not need durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cqrs "github.com/emberfall/cqrs"
	"github.com/google/uuid"
)

var _ cqrs.EventStore = (*Store)(nil)

// Store keeps per-aggregate streams and a global log in memory, guarded by a
// single RWMutex. The write path under the mutex is the only critical
// section, mirroring the transaction boundary of the durable backends.
type Store struct {
	mu        sync.RWMutex
	streams   map[string][]*cqrs.Envelope
	global    []*cqrs.Envelope
	globalSeq uint64
	closed    bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		streams: make(map[string][]*cqrs.Envelope),
	}
}

func (s *Store) Save(ctx context.Context, aggregateID string, events []cqrs.Envelope, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	for i, env := range events {
		if env.AggregateID != "" && env.AggregateID != aggregateID {
			return fmt.Errorf("save to aggregate %q: event %d belongs to %q: %w",
				aggregateID, i, env.AggregateID, cqrs.ErrBatchMismatch)
		}
	}

	tenant := cqrs.TenantFromContext(ctx)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cqrs.ErrStoreClosed
	}

	actual := uint64(len(s.streams[aggregateID]))
	if actual != expectedVersion {
		cqrs.RecordConflict(ctx)
		return &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      actual,
		}
	}

	for i := range events {
		env := events[i]
		env.AggregateID = aggregateID
		env.Version = expectedVersion + uint64(i) + 1
		if env.EventID == uuid.Nil {
			env.EventID = uuid.New()
		}
		if env.OccurredAt.IsZero() {
			env.OccurredAt = now
		}
		if env.TenantID == "" {
			env.TenantID = tenant
		}
		env.StoredAt = now
		s.globalSeq++
		env.GlobalSeq = s.globalSeq

		stored := env
		s.streams[aggregateID] = append(s.streams[aggregateID], &stored)
		s.global = append(s.global, &stored)
	}

	cqrs.RecordAppend(ctx, len(events))
	return nil
}

func (s *Store) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return s.LoadFrom(ctx, aggregateID, 0)
}

func (s *Store) LoadFrom(ctx context.Context, aggregateID string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, cqrs.ErrStoreClosed
	}

	stream := s.streams[aggregateID]
	matched := make([]*cqrs.Envelope, 0, len(stream))
	for _, env := range stream {
		if env.Version >= version {
			matched = append(matched, env)
		}
	}

	cqrs.RecordLoad(ctx, len(matched))
	return cqrs.NewSliceIterator(matched), nil
}

func (s *Store) LoadByType(ctx context.Context, eventType string, from time.Time) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, cqrs.ErrStoreClosed
	}

	var matched []*cqrs.Envelope
	for _, env := range s.global {
		if env.Event.EventType() != eventType {
			continue
		}
		if !from.IsZero() && env.OccurredAt.Before(from) {
			continue
		}
		matched = append(matched, env)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})

	cqrs.RecordLoad(ctx, len(matched))
	return cqrs.NewSliceIterator(matched), nil
}

func (s *Store) LoadAll(ctx context.Context, cursor uint64, limit int) (cqrs.StreamPage, error) {
	if limit <= 0 {
		return cqrs.StreamPage{}, fmt.Errorf("load all: limit must be positive, got %d", limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return cqrs.StreamPage{}, cqrs.ErrStoreClosed
	}

	page := cqrs.StreamPage{NextCursor: cursor}
	for _, env := range s.global {
		if env.GlobalSeq <= cursor {
			continue
		}
		page.Events = append(page.Events, env)
		page.NextCursor = env.GlobalSeq
		if len(page.Events) == limit {
			break
		}
	}
	page.HasMore = len(page.Events) == limit

	cqrs.RecordLoad(ctx, len(page.Events))
	return page, nil
}

func (s *Store) CurrentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, cqrs.ErrStoreClosed
	}
	return uint64(len(s.streams[aggregateID])), nil
}

func (s *Store) Exists(ctx context.Context, aggregateID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, cqrs.ErrStoreClosed
	}
	return len(s.streams[aggregateID]) > 0, nil
}

func (s *Store) DeleteStream(ctx context.Context, aggregateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cqrs.ErrStoreClosed
	}

	delete(s.streams, aggregateID)
	remaining := s.global[:0]
	for _, env := range s.global {
		if env.AggregateID != aggregateID {
			remaining = append(remaining, env)
		}
	}
	s.global = remaining
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
