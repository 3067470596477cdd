package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

var (
	// ErrSessionNotFound is returned for an unknown or already stopped session.
	ErrSessionNotFound = errors.New("app: session not found")

	// ErrTooManySessions is returned by Start when the configured cap is reached.
	ErrTooManySessions = errors.New("app: too many sessions")
)

// SessionInfo holds metadata about a live session.
type SessionInfo struct {
	ID        string
	StartedAt time.Time
}

type liveSession struct {
	info SessionInfo
	sess *recitation.Session

	// part numbers the history records of a session that was reset.
	part int
	// partStarted is when the current part began.
	partStarted time.Time
}

// SessionManager owns the live recitation sessions. Sessions share the
// corpus index and classifier. All exported methods are safe for concurrent
// use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
	matcher  recitation.Config

	idx        *corpus.Index
	classifier classifier.Classifier
	history    store.SessionLog
	metrics    *observe.Metrics
	max        int
	now        func() time.Time
}

// SessionManagerConfig holds the dependencies of a [SessionManager].
// Classifier and History are optional.
type SessionManagerConfig struct {
	Index      *corpus.Index
	Matcher    recitation.Config
	Classifier classifier.Classifier
	History    store.SessionLog
	Metrics    *observe.Metrics

	// MaxSessions caps live sessions; 0 means unlimited.
	MaxSessions int
}

// NewSessionManager returns an empty manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &SessionManager{
		sessions:   make(map[string]*liveSession),
		matcher:    cfg.Matcher,
		idx:        cfg.Index,
		classifier: cfg.Classifier,
		history:    cfg.History,
		metrics:    cfg.Metrics,
		max:        cfg.MaxSessions,
		now:        time.Now,
	}
}

// Start opens a session. onChange receives every snapshot the session
// produces, including those from its timers.
func (sm *SessionManager) Start(onChange func(recitation.Snapshot)) (string, *recitation.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.max > 0 && len(sm.sessions) >= sm.max {
		return "", nil, fmt.Errorf("%w (max %d)", ErrTooManySessions, sm.max)
	}

	opts := []recitation.Option{
		recitation.WithConfig(sm.matcher),
		recitation.WithMetrics(sm.metrics),
	}
	if sm.classifier != nil {
		opts = append(opts, recitation.WithClassifier(sm.classifier))
	}
	if onChange != nil {
		opts = append(opts, recitation.WithOnChange(onChange))
	}

	now := sm.now()
	ls := &liveSession{
		info:        SessionInfo{ID: uuid.NewString(), StartedAt: now},
		sess:        recitation.NewSession(sm.idx, opts...),
		partStarted: now,
	}
	sm.sessions[ls.info.ID] = ls
	sm.metrics.ActiveSessions.Add(context.Background(), 1)
	return ls.info.ID, ls.sess, nil
}

// Get returns a live session.
func (sm *SessionManager) Get(id string) (*recitation.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ls, ok := sm.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ls.sess, nil
}

// Info returns the metadata of a live session.
func (sm *SessionManager) Info(id string) (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ls, ok := sm.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return ls.info, true
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Reset records what the session recited so far and clears it. The next
// recording of the same session is stored as a separate history entry.
func (sm *SessionManager) Reset(ctx context.Context, id string) error {
	sm.mu.Lock()
	ls, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sum, record := sm.summaryLocked(ls)
	if record {
		ls.part++
	}
	ls.partStarted = sm.now()
	sm.mu.Unlock()

	ls.sess.Reset()
	if record {
		sm.record(ctx, sum)
	}
	return nil
}

// Stop records and closes a session.
func (sm *SessionManager) Stop(ctx context.Context, id string) error {
	sm.mu.Lock()
	ls, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(sm.sessions, id)
	sum, record := sm.summaryLocked(ls)
	sm.mu.Unlock()

	ls.sess.Close()
	sm.metrics.ActiveSessions.Add(ctx, -1)
	if record {
		sm.record(ctx, sum)
	}
	return nil
}

// StopAll stops every live session, e.g. on shutdown.
func (sm *SessionManager) StopAll(ctx context.Context) {
	sm.mu.Lock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	for _, id := range ids {
		_ = sm.Stop(ctx, id)
	}
}

// SetMatcher changes the tuning of sessions started from now on.
func (sm *SessionManager) SetMatcher(cfg recitation.Config) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.matcher = cfg
}

// Matcher returns the tuning new sessions start with.
func (sm *SessionManager) Matcher() recitation.Config {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.matcher
}

// summaryLocked builds the history record of the current part. Sessions that
// never anchored are not recorded.
func (sm *SessionManager) summaryLocked(ls *liveSession) (store.Summary, bool) {
	if sm.history == nil {
		return store.Summary{}, false
	}
	st := ls.sess.Stats()
	if !st.Anchored {
		return store.Summary{}, false
	}
	id := ls.info.ID
	if ls.part > 0 {
		id = fmt.Sprintf("%s-%d", id, ls.part)
	}
	return store.Summary{
		SessionID:  id,
		StartedAt:  ls.partStarted,
		EndedAt:    sm.now(),
		AnchorLine: st.AnchorLine,
		Page:       st.Page,
		Surah:      st.Surah,
		Matched:    st.Matched,
		Unmatched:  st.Unmatched,
	}, true
}

func (sm *SessionManager) record(ctx context.Context, sum store.Summary) {
	if err := sm.history.Record(ctx, sum); err != nil {
		slog.Warn("failed to record session summary", "session_id", sum.SessionID, "err", err)
		return
	}
	slog.Info("session recorded",
		"session_id", sum.SessionID,
		"anchor", sum.AnchorLine,
		"matched", sum.Matched,
		"unmatched", sum.Unmatched,
	)
}
