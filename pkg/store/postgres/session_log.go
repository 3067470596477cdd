package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

// SessionLog is the PostgreSQL [store.SessionLog].
//
// Obtain one via [Store.Sessions].
type SessionLog struct {
	pool *pgxpool.Pool
}

// Record implements [store.SessionLog].
func (s *SessionLog) Record(ctx context.Context, sum store.Summary) error {
	const q = `
		INSERT INTO recitation_sessions
		    (session_id, started_at, ended_at, anchor_line, page, surah, matched, unmatched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
		    ended_at    = EXCLUDED.ended_at,
		    anchor_line = EXCLUDED.anchor_line,
		    page        = EXCLUDED.page,
		    surah       = EXCLUDED.surah,
		    matched     = EXCLUDED.matched,
		    unmatched   = EXCLUDED.unmatched`

	_, err := s.pool.Exec(ctx, q,
		sum.SessionID,
		sum.StartedAt,
		sum.EndedAt,
		sum.AnchorLine,
		sum.Page,
		sum.Surah,
		sum.Matched,
		sum.Unmatched,
	)
	if err != nil {
		return fmt.Errorf("session log: record: %w", err)
	}
	return nil
}

// Recent implements [store.SessionLog].
func (s *SessionLog) Recent(ctx context.Context, limit int) ([]store.Summary, error) {
	const q = `
		SELECT session_id, started_at, ended_at, anchor_line, page, surah, matched, unmatched
		FROM   recitation_sessions
		ORDER  BY ended_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("session log: recent: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Summary, error) {
		var sum store.Summary
		err := row.Scan(&sum.SessionID, &sum.StartedAt, &sum.EndedAt, &sum.AnchorLine,
			&sum.Page, &sum.Surah, &sum.Matched, &sum.Unmatched)
		return sum, err
	})
	if err != nil {
		return nil, fmt.Errorf("session log: scan rows: %w", err)
	}
	return out, nil
}
