package recitation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// AnchorState is the locator's progress.
type AnchorState int

// Anchor states.
const (
	Unanchored AnchorState = iota
	Searching
	Anchored
)

func (s AnchorState) String() string {
	switch s {
	case Searching:
		return "searching"
	case Anchored:
		return "anchored"
	default:
		return "unanchored"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s AnchorState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AnchorState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unanchored":
		*s = Unanchored
	case "searching":
		*s = Searching
	case "anchored":
		*s = Anchored
	default:
		return fmt.Errorf("recitation: unknown anchor state %q", b)
	}
	return nil
}

// Transcript is one update from the speech recognizer. Text is the whole
// current hypothesis of the segment, not a delta.
type Transcript struct {
	Text  string
	Final bool
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State            AnchorState   `json:"state"`
	Anchor           int           `json:"anchor"`
	Candidates       []int         `json:"candidates,omitempty"`
	Words            []MatchedWord `json:"words"`
	Pages            Spread        `json:"pages"`
	Recording        bool          `json:"recording"`
	ReferenceCursor  int           `json:"reference_cursor"`
	TranscriptCursor int           `json:"transcript_cursor"`
}

// Stats summarises a session for the history log.
type Stats struct {
	Anchored   bool
	AnchorLine int
	AnchoredAt time.Time
	Page       int
	Surah      string
	Matched    int
	Unmatched  int
}

// state is everything a reset throws away.
type state struct {
	anchor     AnchorState
	line       int
	anchoredAt time.Time
	candidates []int

	normalized string
	text       string
	words      []string
	istiadha   bool
	basmala    bool
	lastFinal  bool

	aligner *aligner
	pages   *PageAssembler
}

func newState() *state {
	return &state{line: -1}
}

// Session tracks one reciter against the corpus. All methods are safe for
// concurrent use; updates are applied one at a time.
type Session struct {
	mu         sync.Mutex
	st         *state
	generation uint64
	recording  bool

	idx      *corpus.Index
	cfg      Config
	loc      *Locator
	metrics  *observe.Metrics
	onChange func(Snapshot)

	fallback *Debouncer
	peek     *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session over idx. The index is shared and never
// modified.
func NewSession(idx *corpus.Index, opts ...Option) *Session {
	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		st:       newState(),
		idx:      idx,
		cfg:      o.cfg,
		loc:      newLocator(idx, o),
		metrics:  o.metrics,
		onChange: o.onChange,
		fallback: NewDebouncer(o.cfg.FallbackDelay),
		peek:     NewDebouncer(o.cfg.PeekDelay),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Update feeds the latest transcript to the session.
func (s *Session) Update(ctx context.Context, tr Transcript) Snapshot {
	s.mu.Lock()
	st := s.st
	fresh := st.lastFinal
	st.lastFinal = tr.Final

	if strings.TrimSpace(tr.Text) == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	st.normalized = arabic.Normalize(tr.Text)
	if st.anchor != Anchored && !st.istiadha &&
		arabic.HasOpeningFormula(st.normalized, arabic.Istiadha, s.cfg.FormulaThreshold) {
		st.istiadha = true
		slog.Debug("isti'adha detected")
	}
	s.refreshTextLocked(st)

	if st.anchor == Anchored {
		s.alignLocked(ctx, st, fresh)
	} else {
		s.locateLocked(ctx, st)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

// refreshTextLocked strips the formulas flagged so far from the transcript.
func (s *Session) refreshTextLocked(st *state) {
	st.text = s.loc.stripFormulas(st.normalized, st.istiadha, st.basmala)
	st.words = strings.Fields(st.text)
}

// locateLocked runs the fast path and arms the fallback when it is
// inconclusive.
func (s *Session) locateLocked(ctx context.Context, st *state) {
	s.fallback.Cancel()
	st.anchor, st.candidates = Unanchored, nil
	if !s.loc.Enough(st.text) {
		return
	}

	candidates, opening := s.loc.FastPath(ctx, st.text)
	if opening && !st.basmala {
		st.basmala = true
		s.refreshTextLocked(st)
		if !s.loc.Enough(st.text) {
			return
		}
		candidates, _ = s.loc.FastPath(ctx, st.text)
	}

	if line, ok := s.loc.Decide(st.text, candidates); ok {
		s.anchorLocked(ctx, st, line, observe.PathFast)
		return
	}

	st.anchor, st.candidates = Searching, candidates
	gen := s.generation
	s.fallback.Schedule(func(token uint64) { s.runFallback(gen, token) })
}

// runFallback is the fallback timer callback. The search runs without the
// lock; its result only applies if the session was neither reset nor
// anchored meanwhile.
func (s *Session) runFallback(gen, token uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.fallback.Fire(token) || s.st.anchor == Anchored {
		s.mu.Unlock()
		return
	}
	st, text := s.st, s.st.text
	s.mu.Unlock()

	ctx := s.ctx
	res := s.loc.Fallback(ctx, text)
	if res.Opening {
		s.mu.Lock()
		if gen != s.generation || st.anchor == Anchored {
			s.mu.Unlock()
			s.metrics.StaleResults.Add(ctx, 1)
			observe.Logger(ctx).Debug("discarding stale opening verdict")
			return
		}
		st.basmala = true
		s.refreshTextLocked(st)
		text = st.text
		s.mu.Unlock()

		res = Result{}
		if s.loc.Enough(text) {
			res = s.loc.Fallback(ctx, text)
		}
	}

	s.mu.Lock()
	if gen != s.generation || st.anchor == Anchored {
		s.mu.Unlock()
		s.metrics.StaleResults.Add(ctx, 1)
		observe.Logger(ctx).Debug("discarding stale fallback result", "line", res.Line)
		return
	}
	if !res.Found {
		// A later update may have armed a new search; its result decides.
		if s.fallback.Pending() {
			s.mu.Unlock()
			return
		}
		st.anchor, st.candidates = Unanchored, nil
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}
	s.anchorLocked(ctx, st, res.Line, res.Path)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// anchorLocked fixes the session on line and aligns what has been said so
// far.
func (s *Session) anchorLocked(ctx context.Context, st *state, line int, path string) {
	s.fallback.Cancel()
	st.anchor, st.line, st.candidates = Anchored, line, nil
	st.anchoredAt = time.Now()
	st.aligner = newAligner(s.idx, line, s.cfg)
	st.pages = NewPageAssembler(s.idx, line)
	s.metrics.RecordAnchor(ctx, path)
	slog.Info("session anchored",
		"line", line,
		"path", path,
		"page", s.idx.PageNumber(line),
		"surah", s.idx.SurahNameForLine(line),
	)
	s.alignLocked(ctx, st, true)
}

func (s *Session) alignLocked(ctx context.Context, st *state, fresh bool) {
	restart, t := st.aligner.align(st.words, fresh)
	t.record(s.metrics, ctx)
	st.pages.Render(st.aligner.committed)
	if restart {
		s.armPeekLocked()
	}
}

func (s *Session) armPeekLocked() {
	gen := s.generation
	s.peek.Schedule(func(token uint64) { s.runPeek(gen, token) })
}

func (s *Session) runPeek(gen, token uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.peek.Fire(token) || !s.recording || s.st.aligner == nil {
		s.mu.Unlock()
		return
	}
	if !s.st.aligner.peek(s.cfg.PeekWords) {
		s.mu.Unlock()
		return
	}
	s.metrics.Peeks.Add(s.ctx, 1)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Reset clears the session back to its initial state and cancels both
// timers. A timer that already fired becomes a no-op.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.fallback.Cancel()
	s.peek.Cancel()
	s.st = newState()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetRecording tells the session whether the microphone is live. Previews
// only appear while recording.
func (s *Session) SetRecording(on bool) {
	s.mu.Lock()
	s.recording = on
	if !on {
		s.peek.Cancel()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Close cancels timers and any fallback search in flight.
func (s *Session) Close() {
	s.mu.Lock()
	s.generation++
	s.fallback.Cancel()
	s.peek.Cancel()
	s.mu.Unlock()
	s.cancel()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// MatchedWords returns the alignment, previews included.
func (s *Session) MatchedWords() []MatchedWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.aligner == nil {
		return nil
	}
	return s.st.aligner.words()
}

// Pages returns the rendered spread.
func (s *Session) Pages() Spread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesLocked()
}

// Anchor returns the anchor line, if any.
func (s *Session) Anchor() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.line, s.st.anchor == Anchored
}

// Stats summarises the session so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	if st.anchor != Anchored {
		return Stats{AnchorLine: -1}
	}
	out := Stats{
		Anchored:   true,
		AnchorLine: st.line,
		AnchoredAt: st.anchoredAt,
		Page:       s.idx.PageNumber(st.line),
		Surah:      s.idx.SurahNameForLine(st.line),
	}
	for _, w := range st.aligner.committed {
		if w.Matched {
			out.Matched++
		} else {
			out.Unmatched++
		}
	}
	return out
}

func (s *Session) pagesLocked() Spread {
	if s.st.pages == nil {
		return Spread{}
	}
	return s.st.pages.Preview(s.st.aligner.peeked)
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.st
	snap := Snapshot{
		State:      st.anchor,
		Anchor:     st.line,
		Candidates: append([]int(nil), st.candidates...),
		Words:      []MatchedWord{},
		Recording:  s.recording,
	}
	if st.aligner != nil {
		snap.Words = st.aligner.words()
		snap.ReferenceCursor = st.aligner.cursor
		snap.TranscriptCursor = st.aligner.watermark
	}
	snap.Pages = s.pagesLocked()
	return snap
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
