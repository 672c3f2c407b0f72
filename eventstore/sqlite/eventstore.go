// Package sqlite provides the durable, transactional EventStore backend on
// top of database/sql with the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cqrs "github.com/emberfall/cqrs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

var _ cqrs.EventStore = (*Store)(nil)

// timeLayout is how timestamps are persisted. The fractional second is
// fixed-width (RFC3339Nano trims trailing zeros, so "10:00:00Z" would sort
// after "10:00:00.5Z"); all values are formatted in UTC. With constant width
// lexicographic order equals chronological order, so ORDER BY occurred_at and
// the from-date comparison work on the raw column.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed event store. The begin/read-version/insert-all/
// commit sequence in Save is the only critical section; it performs no
// non-transactional I/O.
type Store struct {
	db    *sql.DB
	codec cqrs.Codec

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the event store at the given DSN and applies the
// schema. A plain file path works as DSN; pragmas can be appended the usual
// way, e.g. "events.db?_pragma=busy_timeout(5000)".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event store %q: %w", dsn, err)
	}
	// SQLite allows one writer at a time; a single connection serializes
	// transactions instead of surfacing SQLITE_BUSY from the pool.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle, applying the schema. The caller
// retains ownership of db; Close on the store still closes it.
func NewStore(db *sql.DB) (*Store, error) {
	if err := initSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
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

	ctx, span := cqrs.Tracer().Start(ctx, "cqrs.eventstore.save",
		trace.WithAttributes(
			cqrs.AttrAggregateID.String(aggregateID),
			cqrs.AttrEventCount.Int(len(events)),
		),
	)
	defer span.End()

	err := s.saveTx(ctx, aggregateID, events, expectedVersion)
	if err != nil {
		var conflict *cqrs.ConcurrencyError
		if errors.As(err, &conflict) {
			cqrs.RecordConflict(ctx)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cqrs.RecordAppend(ctx, len(events))
	return nil
}

func (s *Store) saveTx(ctx context.Context, aggregateID string, events []cqrs.Envelope, expectedVersion uint64) error {
	tenant := cqrs.TenantFromContext(ctx)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save to aggregate %q: begin: %w", aggregateID, err)
	}
	defer tx.Rollback()

	var actual uint64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`, aggregateID)
	if err := row.Scan(&actual); err != nil {
		return fmt.Errorf("save to aggregate %q: read version: %w", aggregateID, err)
	}

	if actual != expectedVersion {
		return &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      actual,
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_id, aggregate_id, event_type, payload, version, occurred_at, tenant_id, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save to aggregate %q: prepare: %w", aggregateID, err)
	}
	defer stmt.Close()

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

		rec, err := s.codec.Encode(&env)
		if err != nil {
			return fmt.Errorf("save to aggregate %q: %w", aggregateID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.EventID,
			rec.AggregateID,
			rec.EventType,
			string(rec.Payload),
			rec.Version,
			rec.OccurredAt.UTC().Format(timeLayout),
			rec.TenantID,
			rec.StoredAt.UTC().Format(timeLayout),
		); err != nil {
			// Two racing transactions can both read the same MAX(version);
			// the UNIQUE(aggregate_id, version) constraint then fails the
			// loser here, which is still a concurrency conflict. Actual is
			// the contested version the insert collided on, a lower bound on
			// the stream's current version: re-reading MAX(version) inside
			// this transaction would only return our own snapshot again. The
			// pre-check path above reports the exact value.
			if isVersionConflict(err) {
				return &cqrs.ConcurrencyError{
					AggregateID: aggregateID,
					Expected:    expectedVersion,
					Actual:      env.Version,
				}
			}
			return fmt.Errorf("save to aggregate %q: insert version %d: %w", aggregateID, env.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save to aggregate %q: commit: %w", aggregateID, err)
	}
	return nil
}

func isVersionConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: events.aggregate_id, events.version")
}

const selectColumns = `event_id, aggregate_id, event_type, payload, version, occurred_at, tenant_id, stored_at, global_seq`

func (s *Store) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return s.LoadFrom(ctx, aggregateID, 0)
}

func (s *Store) LoadFrom(ctx context.Context, aggregateID string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM events WHERE aggregate_id = ? AND version >= ? ORDER BY version`,
		aggregateID, version)
	if err != nil {
		return nil, fmt.Errorf("load aggregate %q: %w", aggregateID, err)
	}
	return s.collect(ctx, rows)
}

func (s *Store) LoadByType(ctx context.Context, eventType string, from time.Time) (*cqrs.Iterator[*cqrs.Envelope], error) {
	var (
		rows *sql.Rows
		err  error
	)
	if from.IsZero() {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM events WHERE event_type = ? ORDER BY occurred_at, global_seq`,
			eventType)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM events WHERE event_type = ? AND occurred_at >= ? ORDER BY occurred_at, global_seq`,
			eventType, from.UTC().Format(timeLayout))
	}
	if err != nil {
		return nil, fmt.Errorf("load events of type %q: %w", eventType, err)
	}
	return s.collect(ctx, rows)
}

func (s *Store) LoadAll(ctx context.Context, cursor uint64, limit int) (cqrs.StreamPage, error) {
	if limit <= 0 {
		return cqrs.StreamPage{}, fmt.Errorf("load all: limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM events WHERE global_seq > ? ORDER BY global_seq LIMIT ?`,
		cursor, limit)
	if err != nil {
		return cqrs.StreamPage{}, fmt.Errorf("load all from cursor %d: %w", cursor, err)
	}

	iter, err := s.collect(ctx, rows)
	if err != nil {
		return cqrs.StreamPage{}, err
	}
	envelopes, err := iter.All(ctx)
	if err != nil {
		return cqrs.StreamPage{}, err
	}

	page := cqrs.StreamPage{Events: envelopes, NextCursor: cursor}
	if n := len(envelopes); n > 0 {
		page.NextCursor = envelopes[n-1].GlobalSeq
	}
	page.HasMore = len(envelopes) == limit
	return page, nil
}

// collect scans and decodes all rows eagerly so the database connection is
// released before the caller starts iterating.
func (s *Store) collect(ctx context.Context, rows *sql.Rows) (*cqrs.Iterator[*cqrs.Envelope], error) {
	defer rows.Close()

	var envelopes []*cqrs.Envelope
	for rows.Next() {
		var (
			rec        cqrs.Record
			payload    string
			occurredAt string
			storedAt   string
		)
		if err := rows.Scan(
			&rec.EventID,
			&rec.AggregateID,
			&rec.EventType,
			&payload,
			&rec.Version,
			&occurredAt,
			&rec.TenantID,
			&storedAt,
			&rec.GlobalSeq,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		rec.Payload = []byte(payload)

		// Best effort; a malformed id is caught by the codec below.
		eventID, _ := uuid.Parse(rec.EventID)

		var err error
		if rec.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, &cqrs.CorruptEventError{EventID: eventID, EventType: rec.EventType, Err: fmt.Errorf("invalid occurred_at %q: %w", occurredAt, err)}
		}
		if rec.StoredAt, err = time.Parse(timeLayout, storedAt); err != nil {
			return nil, &cqrs.CorruptEventError{EventID: eventID, EventType: rec.EventType, Err: fmt.Errorf("invalid stored_at %q: %w", storedAt, err)}
		}

		env, err := s.codec.Decode(rec)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read event rows: %w", err)
	}

	cqrs.RecordLoad(ctx, len(envelopes))
	return cqrs.NewSliceIterator(envelopes), nil
}

func (s *Store) CurrentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	var version uint64
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`, aggregateID)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("current version of aggregate %q: %w", aggregateID, err)
	}
	return version, nil
}

func (s *Store) Exists(ctx context.Context, aggregateID string) (bool, error) {
	var exists bool
	row := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE aggregate_id = ?)`, aggregateID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("existence of aggregate %q: %w", aggregateID, err)
	}
	return exists, nil
}

func (s *Store) DeleteStream(ctx context.Context, aggregateID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE aggregate_id = ?`, aggregateID); err != nil {
		return fmt.Errorf("delete stream of aggregate %q: %w", aggregateID, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
