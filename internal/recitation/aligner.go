package recitation

import (
	"context"
	"unicode/utf8"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// MatchedWord is one reference word in the running alignment.
type MatchedWord struct {
	// Word is the reference word as written in the corpus.
	Word string `json:"word"`

	// Matched reports whether the reciter said it.
	Matched bool `json:"matched"`

	// Provisional marks a look-ahead preview that has not been recited.
	Provisional bool `json:"provisional,omitempty"`
}

// tally counts alignment outcomes for one update.
type tally struct {
	match, weak, forward, backward, miss int
}

// aligner walks transcript words against the reference window.
//
// cursor is the reference position the next transcript word is compared
// with. It only moves forward, and only when entries are appended. watermark
// is the number of transcript words already consumed in the current segment.
type aligner struct {
	cfg        Config
	reference  []string
	normalized []string
	lineWords  []int

	committed  []MatchedWord
	peeked     []MatchedWord
	cursor     int
	watermark  int
	canAdvance bool
}

// newAligner builds the reference from line anchor and the configured number
// of following lines.
func newAligner(idx *corpus.Index, anchor int, cfg Config) *aligner {
	a := &aligner{cfg: cfg, canAdvance: true}
	for _, line := range idx.Window(anchor, cfg.WindowLines) {
		words := line.Words()
		a.lineWords = append(a.lineWords, len(words))
		for _, w := range words {
			a.reference = append(a.reference, w)
			a.normalized = append(a.normalized, arabic.Normalize(w))
		}
	}
	return a
}

// align consumes the transcript words past the watermark. A fresh segment
// restarts the watermark at zero while keeping the reference position. It
// reports whether the aligner was free to advance at any word, which is when
// the peek timer restarts.
func (a *aligner) align(words []string, freshSegment bool) (restart bool, t tally) {
	if freshSegment || len(words) < a.watermark {
		a.watermark = 0
	}
	defer func() { a.watermark = len(words) }()

	for _, word := range words[a.watermark:] {
		if a.canAdvance {
			restart = true
		}
		if a.cursor >= len(a.normalized) {
			return restart, t
		}

		score := arabic.Similarity(word, a.normalized[a.cursor])
		if score >= a.cfg.MatchThreshold {
			a.commit(a.cursor, a.cursor)
			a.canAdvance = true
			t.match++
			continue
		}
		if a.seekBackward(word) {
			a.canAdvance = false
			t.backward++
			continue
		}
		if step, ok := a.seekForward(word); ok {
			a.commit(a.cursor, a.cursor+step)
			a.canAdvance = true
			t.forward += step + 1
			continue
		}
		if score >= a.cfg.LaxThreshold {
			a.commit(a.cursor, a.cursor)
			a.canAdvance = true
			t.weak++
			continue
		}
		a.canAdvance = false
		t.miss++
	}
	return restart, t
}

// seekBackward reports whether word echoes one of the recently passed
// reference words.
func (a *aligner) seekBackward(word string) bool {
	for step := 1; step <= a.cfg.BackwardWindow && a.cursor-step >= 0; step++ {
		if arabic.Similarity(word, a.normalized[a.cursor-step]) >= a.cfg.SeekThreshold {
			return true
		}
	}
	return false
}

// seekForward looks for word among the upcoming reference words and returns
// how far ahead it is.
func (a *aligner) seekForward(word string) (int, bool) {
	if utf8.RuneCountInString(word) <= a.cfg.ForwardMinRunes {
		return 0, false
	}
	for step := 1; step <= a.cfg.ForwardWindow && a.cursor+step < len(a.normalized); step++ {
		if arabic.Similarity(word, a.normalized[a.cursor+step]) >= a.cfg.SeekThreshold {
			return step, true
		}
	}
	return 0, false
}

// commit appends reference words from through to as matched and moves the
// cursor past them. Any preview is retracted first.
func (a *aligner) commit(from, to int) {
	a.peeked = nil
	for i := from; i <= to; i++ {
		a.committed = append(a.committed, MatchedWord{Word: a.reference[i], Matched: true})
	}
	a.cursor = to + 1
}

// peek previews the next n reference words after the cursor and any earlier
// preview. It does nothing when fewer than n words remain.
func (a *aligner) peek(n int) bool {
	from := a.cursor + len(a.peeked)
	if n <= 0 || from+n > len(a.reference) {
		return false
	}
	for _, w := range a.reference[from : from+n] {
		a.peeked = append(a.peeked, MatchedWord{Word: w, Provisional: true})
	}
	return true
}

// words returns the committed entries followed by the preview.
func (a *aligner) words() []MatchedWord {
	out := make([]MatchedWord, 0, len(a.committed)+len(a.peeked))
	out = append(out, a.committed...)
	return append(out, a.peeked...)
}

func (t tally) record(m *observe.Metrics, ctx context.Context) {
	m.RecordAlignment(ctx, observe.OutcomeMatch, t.match)
	m.RecordAlignment(ctx, observe.OutcomeWeak, t.weak)
	m.RecordAlignment(ctx, observe.OutcomeForward, t.forward)
	m.RecordAlignment(ctx, observe.OutcomeBackward, t.backward)
	m.RecordAlignment(ctx, observe.OutcomeMiss, t.miss)
}
