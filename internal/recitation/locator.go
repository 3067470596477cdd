package recitation

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// openingLine is the basmala header at the top of the corpus. It is never an
// anchor.
const openingLine = 0

// minShard keeps the scan from spawning goroutines for a handful of lines.
const minShard = 256

// Result is the outcome of a locate attempt.
type Result struct {
	// Found reports whether Line is a usable anchor.
	Found bool

	// Line is the anchor line when Found.
	Line int

	// Path is the strategy that produced the anchor (observe.PathFast,
	// observe.PathClassifier or observe.PathScan).
	Path string

	// Score is the prefix similarity of the anchor. It is 1 for the fast path.
	Score float64

	// Candidates are the fast path hits, earliest first.
	Candidates []int

	// Opening reports that the text matched the basmala header line.
	Opening bool
}

// Locator finds the line a transcript starts on. It holds no per-session
// state and is safe for concurrent use.
type Locator struct {
	idx        *corpus.Index
	cfg        Config
	classifier classifier.Classifier
	metrics    *observe.Metrics
}

// NewLocator returns a locator over idx.
func NewLocator(idx *corpus.Index, opts ...Option) *Locator {
	o := buildOptions(opts)
	return newLocator(idx, o)
}

func newLocator(idx *corpus.Index, o options) *Locator {
	return &Locator{
		idx:        idx,
		cfg:        o.cfg,
		classifier: o.classifier,
		metrics:    o.metrics,
	}
}

func (l *Locator) stripFormulas(text string, istiadha, basmala bool) string {
	if istiadha {
		text = arabic.RemoveOpeningFormula(text, arabic.Istiadha, l.cfg.FormulaThreshold)
	}
	if basmala {
		text = arabic.RemoveOpeningFormula(text, arabic.Basmala, l.cfg.FormulaThreshold)
	}
	return strings.TrimSpace(text)
}

// Enough reports whether text is long enough to locate.
func (l *Locator) Enough(text string) bool {
	return utf8.RuneCountInString(text) >= l.cfg.MinLocateRunes
}

// FastPath returns every line that is a prefix of text or has text as a
// prefix. A hit on the opening line is reported separately and never listed.
func (l *Locator) FastPath(ctx context.Context, text string) (candidates []int, opening bool) {
	start := time.Now()
	defer func() {
		l.metrics.RecordLocate(ctx, observe.PathFast, time.Since(start).Seconds())
	}()

	if text == "" {
		return nil, false
	}
	for i := range l.idx.Len() {
		line := l.idx.Line(i).Normalized()
		if !strings.HasPrefix(line, text) && !strings.HasPrefix(text, line) {
			continue
		}
		if i == openingLine {
			opening = true
			continue
		}
		candidates = append(candidates, i)
	}
	return candidates, opening
}

// Decide applies the anchoring rule to fast path candidates: a single hit is
// taken, and so is the earliest of several once the transcript is long
// enough to trust.
func (l *Locator) Decide(text string, candidates []int) (int, bool) {
	switch {
	case len(candidates) == 1:
		return candidates[0], true
	case len(candidates) > 1 && utf8.RuneCountInString(text) >= l.cfg.ConfidentLocateRunes:
		return candidates[0], true
	}
	return 0, false
}

// Fallback runs the slow search: the classifier when one is configured, then
// the exhaustive scan. A classifier verdict for the opening line is returned
// as Opening so the caller can strip the basmala and try again.
func (l *Locator) Fallback(ctx context.Context, text string) Result {
	ctx, span := observe.StartSpan(ctx, "recitation.fallback")
	defer span.End()

	if text == "" {
		return Result{}
	}
	if l.classifier != nil {
		if line, score, ok := l.classify(ctx, text); ok {
			span.SetAttributes(observe.AnchorAttributes(line, observe.PathClassifier)...)
			if line == openingLine {
				return Result{Opening: true}
			}
			return Result{Found: true, Line: line, Path: observe.PathClassifier, Score: score}
		}
	}

	start := time.Now()
	line, score := l.Scan(ctx, text)
	l.metrics.RecordLocate(ctx, observe.PathScan, time.Since(start).Seconds())
	span.SetAttributes(observe.AnchorAttributes(line, observe.PathScan)...)
	if line <= openingLine || score <= 0 || score < l.cfg.ScanAccept || ctx.Err() != nil {
		return Result{}
	}
	return Result{Found: true, Line: line, Path: observe.PathScan, Score: score}
}

// classify asks the classifier and re-scores its top candidates against the
// corpus. Failures are logged and treated as no verdict.
func (l *Locator) classify(ctx context.Context, text string) (line int, score float64, ok bool) {
	if l.cfg.ClassifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ClassifierTimeout)
		defer cancel()
	}

	start := time.Now()
	preds, err := l.classifier.Predict(ctx, text)
	l.metrics.ClassifierDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		l.metrics.ClassifierErrors.Add(ctx, 1)
		observe.Logger(ctx).Debug("classifier failed, scanning corpus", "err", err)
		return 0, 0, false
	}

	best, bestScore := -1, 0.0
	for k, p := range preds {
		if k >= l.cfg.ClassifierTopK {
			break
		}
		cand := l.idx.Line(p.Line)
		if cand == nil {
			continue
		}
		if s := arabic.PrefixSimilarity(cand.Normalized(), text); s > bestScore {
			best, bestScore = p.Line, s
		}
	}
	if best < 0 || bestScore < l.cfg.ClassifierAccept {
		observe.Logger(ctx).Debug("classifier candidates rejected",
			"candidates", len(preds),
			"best_score", bestScore,
		)
		return 0, 0, false
	}
	return best, bestScore, true
}

// Scan scores every line by prefix similarity and returns the best one,
// earliest on ties. It stops at the first line scoring above the early exit
// threshold. The corpus is split into shards scored concurrently; the result
// is the same as a sequential pass.
func (l *Locator) Scan(ctx context.Context, text string) (int, float64) {
	n := l.idx.Len()
	if n == 0 {
		return -1, 0
	}
	shards := min(runtime.GOMAXPROCS(0), max(n/minShard, 1))
	size := (n + shards - 1) / shards

	type shardResult struct {
		best       int
		bestScore  float64
		above      int
		aboveScore float64
	}
	results := make([]shardResult, shards)

	// firstAbove is the lowest line index known to clear the early exit
	// threshold. Shards starting past it have nothing to contribute.
	var firstAbove atomic.Int64
	firstAbove.Store(int64(n))

	g, gctx := errgroup.WithContext(ctx)
	for s := range shards {
		from, to := s*size, min((s+1)*size, n)
		g.Go(func() error {
			r := shardResult{best: -1, above: -1}
			for i := from; i < to; i++ {
				if int64(i) > firstAbove.Load() {
					break
				}
				if i%minShard == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				score := arabic.PrefixSimilarity(l.idx.Line(i).Normalized(), text)
				if score > r.bestScore {
					r.best, r.bestScore = i, score
				}
				if score > l.cfg.EarlyExit {
					r.above, r.aboveScore = i, score
					for {
						cur := firstAbove.Load()
						if int64(i) >= cur || firstAbove.CompareAndSwap(cur, int64(i)) {
							break
						}
					}
					break
				}
			}
			results[s] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -1, 0
	}

	for _, r := range results {
		if r.above >= 0 {
			return r.above, r.aboveScore
		}
	}
	best, bestScore := -1, 0.0
	for _, r := range results {
		if r.best >= 0 && r.bestScore > bestScore {
			best, bestScore = r.best, r.bestScore
		}
	}
	return best, bestScore
}

// Locate runs the whole search on one transcript without debouncing. It is
// meant for one-shot lookups.
func (l *Locator) Locate(ctx context.Context, raw string) Result {
	text := arabic.Normalize(raw)
	istiadha := arabic.HasOpeningFormula(text, arabic.Istiadha, l.cfg.FormulaThreshold)
	text = l.stripFormulas(text, istiadha, false)
	candidates, opening := l.FastPath(ctx, text)
	if opening {
		text = l.stripFormulas(text, false, true)
		candidates, _ = l.FastPath(ctx, text)
	}
	if !l.Enough(text) {
		return Result{Candidates: candidates, Opening: opening}
	}
	if line, ok := l.Decide(text, candidates); ok {
		return Result{Found: true, Line: line, Path: observe.PathFast, Score: 1, Candidates: candidates, Opening: opening}
	}

	res := l.Fallback(ctx, text)
	if res.Opening {
		opening = true
		res = l.Fallback(ctx, l.stripFormulas(text, false, true))
	}
	res.Candidates = candidates
	res.Opening = res.Opening || opening
	if res.Found {
		slog.Debug("located", "line", res.Line, "path", res.Path, "score", res.Score)
	}
	return res
}
