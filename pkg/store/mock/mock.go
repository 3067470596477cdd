// Package mock provides in-memory implementations of the store interfaces
// for tests and for running without a database.
package mock

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

var (
	_ store.LineIndex  = (*LineIndex)(nil)
	_ store.SessionLog = (*SessionLog)(nil)
)

// LineIndex is a brute-force cosine [store.LineIndex].
type LineIndex struct {
	mu    sync.Mutex
	lines map[int]store.LineVector
	meta  *store.IndexMeta

	// Err, when set, fails Nearest.
	Err error

	// NearestCalls counts Nearest invocations.
	NearestCalls int
}

// UpsertLines implements [store.LineIndex].
func (l *LineIndex) UpsertLines(_ context.Context, lines []store.LineVector) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines == nil {
		l.lines = make(map[int]store.LineVector)
	}
	for _, lv := range lines {
		l.lines[lv.Line] = lv
	}
	return nil
}

// Nearest implements [store.LineIndex].
func (l *LineIndex) Nearest(_ context.Context, vec []float32, k int) ([]store.LineMatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.NearestCalls++
	if l.Err != nil {
		return nil, l.Err
	}
	out := make([]store.LineMatch, 0, len(l.lines))
	for _, lv := range l.lines {
		out = append(out, store.LineMatch{Line: lv.Line, Distance: cosineDistance(vec, lv.Embedding)})
	}
	slices.SortFunc(out, func(a, b store.LineMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Line, b.Line)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len returns the number of stored lines.
func (l *LineIndex) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Meta implements [store.LineIndex].
func (l *LineIndex) Meta(context.Context) (store.IndexMeta, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.meta == nil {
		return store.IndexMeta{}, false, nil
	}
	return *l.meta, true, nil
}

// SetMeta implements [store.LineIndex].
func (l *LineIndex) SetMeta(_ context.Context, m store.IndexMeta) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meta = &m
	return nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// SessionLog is an in-memory [store.SessionLog].
type SessionLog struct {
	mu        sync.Mutex
	summaries []store.Summary
}

// Record implements [store.SessionLog].
func (s *SessionLog) Record(_ context.Context, sum store.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = slices.DeleteFunc(s.summaries, func(x store.Summary) bool { return x.SessionID == sum.SessionID })
	s.summaries = append(s.summaries, sum)
	return nil
}

// Recent implements [store.SessionLog].
func (s *SessionLog) Recent(_ context.Context, limit int) ([]store.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.summaries)
	slices.SortStableFunc(out, func(a, b store.Summary) int { return b.EndedAt.Compare(a.EndedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summaries returns every recorded summary in insertion order.
func (s *SessionLog) Summaries() []store.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.summaries)
}
