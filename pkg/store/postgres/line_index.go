package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

// LineIndex is the pgvector-backed [store.LineIndex].
//
// Obtain one via [Store.Lines].
type LineIndex struct {
	pool *pgxpool.Pool
}

// UpsertLines implements [store.LineIndex]. All rows are written in one
// batch.
func (l *LineIndex) UpsertLines(ctx context.Context, lines []store.LineVector) error {
	if len(lines) == 0 {
		return nil
	}
	const q = `
		INSERT INTO corpus_lines (line_index, text, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (line_index) DO UPDATE SET
		    text      = EXCLUDED.text,
		    embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, lv := range lines {
		batch.Queue(q, lv.Line, lv.Text, pgvector.NewVector(lv.Embedding))
	}
	if err := l.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("line index: upsert: %w", err)
	}
	return nil
}

// Nearest implements [store.LineIndex] using the cosine distance operator.
func (l *LineIndex) Nearest(ctx context.Context, vec []float32, k int) ([]store.LineMatch, error) {
	const q = `
		SELECT line_index, embedding <=> $1 AS distance
		FROM   corpus_lines
		ORDER  BY distance
		LIMIT  $2`

	rows, err := l.pool.Query(ctx, q, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("line index: nearest: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.LineMatch, error) {
		var m store.LineMatch
		err := row.Scan(&m.Line, &m.Distance)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("line index: scan rows: %w", err)
	}
	return matches, nil
}

// Meta implements [store.LineIndex].
func (l *LineIndex) Meta(ctx context.Context) (store.IndexMeta, bool, error) {
	const q = `SELECT fingerprint, model, dimensions, lines, built_at FROM corpus_meta WHERE id`

	var m store.IndexMeta
	err := l.pool.QueryRow(ctx, q).Scan(&m.Fingerprint, &m.Model, &m.Dimensions, &m.Lines, &m.BuiltAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.IndexMeta{}, false, nil
	}
	if err != nil {
		return store.IndexMeta{}, false, fmt.Errorf("line index: meta: %w", err)
	}
	return m, true, nil
}

// SetMeta implements [store.LineIndex].
func (l *LineIndex) SetMeta(ctx context.Context, m store.IndexMeta) error {
	const q = `
		INSERT INTO corpus_meta (id, fingerprint, model, dimensions, lines, built_at)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    fingerprint = EXCLUDED.fingerprint,
		    model       = EXCLUDED.model,
		    dimensions  = EXCLUDED.dimensions,
		    lines       = EXCLUDED.lines,
		    built_at    = EXCLUDED.built_at`

	if _, err := l.pool.Exec(ctx, q, m.Fingerprint, m.Model, m.Dimensions, m.Lines, m.BuiltAt); err != nil {
		return fmt.Errorf("line index: set meta: %w", err)
	}
	return nil
}
