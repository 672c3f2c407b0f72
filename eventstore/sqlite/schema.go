package sqlite

import (
	"database/sql"
	"fmt"
)

// The events table is the append-only log. UNIQUE(aggregate_id, version) is
// the hard backstop for optimistic concurrency: even if two transactions race
// past the version read, at most one insert of a given version can commit.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    global_seq   INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id     TEXT NOT NULL UNIQUE,
    aggregate_id TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    payload      TEXT NOT NULL,
    version      INTEGER NOT NULL,
    occurred_at  TEXT NOT NULL,
    tenant_id    TEXT NOT NULL DEFAULT 'default',
    stored_at    TEXT NOT NULL,
    UNIQUE (aggregate_id, version)
);

CREATE INDEX IF NOT EXISTS idx_events_aggregate
    ON events (aggregate_id, version);

CREATE INDEX IF NOT EXISTS idx_events_type_occurred
    ON events (event_type, occurred_at);

CREATE INDEX IF NOT EXISTS idx_events_occurred_at
    ON events (occurred_at);
`

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply event store schema: %w", err)
	}
	return nil
}
