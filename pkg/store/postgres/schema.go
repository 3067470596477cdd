// Package postgres provides PostgreSQL implementations of [store.LineIndex]
// (pgvector, HNSW cosine index) and [store.SessionLog].
//
// Both share one [pgxpool.Pool]. The pgvector extension must be available
// in the target database; [Migrate] installs it with CREATE EXTENSION IF NOT
// EXISTS.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.Lines().UpsertLines(ctx, vectors)
//	_ = st.Sessions().Record(ctx, summary)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS recitation_sessions (
    session_id   TEXT         PRIMARY KEY,
    started_at   TIMESTAMPTZ  NOT NULL,
    ended_at     TIMESTAMPTZ  NOT NULL,
    anchor_line  INTEGER      NOT NULL,
    page         INTEGER      NOT NULL DEFAULT 0,
    surah        TEXT         NOT NULL DEFAULT '',
    matched      INTEGER      NOT NULL DEFAULT 0,
    unmatched    INTEGER      NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recitation_sessions_ended_at
    ON recitation_sessions (ended_at DESC);
`

const ddlMeta = `
CREATE TABLE IF NOT EXISTS corpus_meta (
    id           BOOLEAN      PRIMARY KEY DEFAULT TRUE CHECK (id),
    fingerprint  TEXT         NOT NULL,
    model        TEXT         NOT NULL,
    dimensions   INTEGER      NOT NULL,
    lines        INTEGER      NOT NULL,
    built_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlLines bakes the embedding dimension into the column type.
func ddlLines(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS corpus_lines (
    line_index  INTEGER      PRIMARY KEY,
    text        TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corpus_lines_embedding
    ON corpus_lines USING hnsw (embedding vector_cosine_ops);
`, dims)
}

// Migrate creates the tables and extension if they are missing. It is
// idempotent and runs on every start.
//
// dims must match the embedding model. Changing it after the first
// migration requires dropping corpus_lines; the vector index is rebuilt by
// the index command.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("postgres migrate: embedding dimensions must be positive, got %d", dims)
	}
	for _, stmt := range []string{ddlLines(dims), ddlMeta, ddlSessions} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
