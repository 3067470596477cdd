// Package store defines the persistence interfaces of muhaffez: a vector
// index over corpus lines backing the vector classifier, and a log of
// finished recitation sessions.
//
// Implementations live in the postgres, sqlite and mock sub-packages and
// must be safe for concurrent use.
package store

import (
	"context"
	"time"
)

// LineVector is one embedded corpus line.
type LineVector struct {
	Line      int
	Text      string
	Embedding []float32
}

// LineMatch is a nearest-neighbour hit. Distance is the cosine distance in
// [0, 2]; smaller is closer.
type LineMatch struct {
	Line     int
	Distance float64
}

// IndexMeta describes what a line index was built from. A mismatch against
// the loaded corpus or the configured model means the index is stale.
type IndexMeta struct {
	Fingerprint string
	Model       string
	Dimensions  int
	Lines       int
	BuiltAt     time.Time
}

// LineIndex stores line embeddings and answers nearest-neighbour queries.
type LineIndex interface {
	// UpsertLines inserts or replaces the given lines.
	UpsertLines(ctx context.Context, lines []LineVector) error

	// Nearest returns up to k lines closest to vec, closest first.
	Nearest(ctx context.Context, vec []float32, k int) ([]LineMatch, error)

	// Meta returns the recorded build metadata. ok is false when the index
	// has never been built.
	Meta(ctx context.Context) (meta IndexMeta, ok bool, err error)

	// SetMeta records build metadata after a successful build.
	SetMeta(ctx context.Context, meta IndexMeta) error
}

// Summary is the record kept for a finished recitation session.
type Summary struct {
	SessionID  string
	StartedAt  time.Time
	EndedAt    time.Time
	AnchorLine int
	Page       int
	Surah      string
	Matched    int
	Unmatched  int
}

// SessionLog persists session summaries.
type SessionLog interface {
	// Record appends a summary. Recording the same session twice keeps the
	// latest summary.
	Record(ctx context.Context, s Summary) error

	// Recent returns up to limit summaries, most recently ended first.
	Recent(ctx context.Context, limit int) ([]Summary, error)
}
