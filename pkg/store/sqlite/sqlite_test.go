package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amrmuhaffez/muhaffez/pkg/store"
	"github.com/amrmuhaffez/muhaffez/pkg/store/sqlite"
)

func openLog(t *testing.T) *sqlite.SessionLog {
	t.Helper()
	l, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSessionLog_RecordRecent(t *testing.T) {
	t.Parallel()

	l := openLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		err := l.Record(ctx, store.Summary{
			SessionID:  id,
			StartedAt:  base,
			EndedAt:    base.Add(time.Duration(i) * time.Minute),
			AnchorLine: 11,
			Page:       3,
			Surah:      "النساء",
			Matched:    i,
		})
		if err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d rows", len(got))
	}
	if got[0].SessionID != "third" || got[1].SessionID != "second" {
		t.Errorf("Recent order = %s, %s; want third, second", got[0].SessionID, got[1].SessionID)
	}
	if got[0].Surah != "النساء" || got[0].Page != 3 || !got[0].EndedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("Recent[0] = %+v", got[0])
	}
}

func TestSessionLog_RecordReplaces(t *testing.T) {
	t.Parallel()

	l := openLog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := l.Record(ctx, store.Summary{SessionID: "s", StartedAt: now, EndedAt: now, Matched: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, store.Summary{SessionID: "s", StartedAt: now, EndedAt: now, Matched: 9}); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Matched != 9 {
		t.Errorf("Recent = %+v, want one row with Matched=9", got)
	}
}
