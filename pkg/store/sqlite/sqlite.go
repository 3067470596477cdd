// Package sqlite provides a [store.SessionLog] on a local SQLite file using
// the pure Go modernc.org/sqlite driver, for single-node deployments without
// PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

var _ store.SessionLog = (*SessionLog)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS recitation_sessions (
    session_id   TEXT     PRIMARY KEY,
    started_at   INTEGER  NOT NULL,
    ended_at     INTEGER  NOT NULL,
    anchor_line  INTEGER  NOT NULL,
    page         INTEGER  NOT NULL DEFAULT 0,
    surah        TEXT     NOT NULL DEFAULT '',
    matched      INTEGER  NOT NULL DEFAULT 0,
    unmatched    INTEGER  NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_recitation_sessions_ended_at
    ON recitation_sessions (ended_at DESC);
`

// SessionLog stores summaries in a SQLite database.
type SessionLog struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*SessionLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite session log: open %q: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite session log: migrate: %w", err)
	}
	return &SessionLog{db: db}, nil
}

// Record implements [store.SessionLog].
func (s *SessionLog) Record(ctx context.Context, sum store.Summary) error {
	const q = `
		INSERT INTO recitation_sessions
		    (session_id, started_at, ended_at, anchor_line, page, surah, matched, unmatched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
		    ended_at    = excluded.ended_at,
		    anchor_line = excluded.anchor_line,
		    page        = excluded.page,
		    surah       = excluded.surah,
		    matched     = excluded.matched,
		    unmatched   = excluded.unmatched`

	_, err := s.db.ExecContext(ctx, q,
		sum.SessionID,
		sum.StartedAt.UnixNano(),
		sum.EndedAt.UnixNano(),
		sum.AnchorLine,
		sum.Page,
		sum.Surah,
		sum.Matched,
		sum.Unmatched,
	)
	if err != nil {
		return fmt.Errorf("sqlite session log: record: %w", err)
	}
	return nil
}

// Recent implements [store.SessionLog].
func (s *SessionLog) Recent(ctx context.Context, limit int) ([]store.Summary, error) {
	const q = `
		SELECT session_id, started_at, ended_at, anchor_line, page, surah, matched, unmatched
		FROM   recitation_sessions
		ORDER  BY ended_at DESC
		LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite session log: recent: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var (
			sum            store.Summary
			started, ended int64
		)
		if err := rows.Scan(&sum.SessionID, &started, &ended, &sum.AnchorLine,
			&sum.Page, &sum.Surah, &sum.Matched, &sum.Unmatched); err != nil {
			return nil, fmt.Errorf("sqlite session log: scan: %w", err)
		}
		sum.StartedAt = time.Unix(0, started).UTC()
		sum.EndedAt = time.Unix(0, ended).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite session log: rows: %w", err)
	}
	return out, nil
}

// Ping checks that the database is reachable.
func (s *SessionLog) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SessionLog) Close() error { return s.db.Close() }
