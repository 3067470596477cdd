// Package vector implements classifier.Classifier as a nearest-neighbour
// search over embedded corpus lines.
//
// [Indexer] embeds every normalized line once and stores the vectors in a
// [store.LineIndex]; [Classifier] embeds the transcript and returns the
// closest lines with probability 1 - cosine distance.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

const (
	defaultTopK        = 5
	defaultBatchSize   = 128
	defaultConcurrency = 4
)

var _ classifier.Classifier = (*Classifier)(nil)

// Option configures a [Classifier].
type Option func(*Classifier)

// WithTopK sets how many nearest lines Predict returns. Default: 5.
func WithTopK(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topK = k
		}
	}
}

// Classifier proposes lines whose embeddings are closest to the transcript's.
type Classifier struct {
	embedder embeddings.Provider
	lines    store.LineIndex
	topK     int
}

// New returns a Classifier over an index built by [Indexer.Build] with the
// same embeddings provider.
func New(embedder embeddings.Provider, lines store.LineIndex, opts ...Option) *Classifier {
	c := &Classifier{embedder: embedder, lines: lines, topK: defaultTopK}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Predict implements classifier.Classifier.
func (c *Classifier) Predict(ctx context.Context, text string) ([]classifier.Candidate, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vector classifier: embed: %w", err)
	}
	matches, err := c.lines.Nearest(ctx, vec, c.topK)
	if err != nil {
		return nil, fmt.Errorf("vector classifier: %w", err)
	}
	out := make([]classifier.Candidate, len(matches))
	for i, m := range matches {
		out[i] = classifier.Candidate{Line: m.Line, Probability: min(max(1-m.Distance, 0), 1)}
	}
	return out, nil
}

// IndexerOption configures an [Indexer].
type IndexerOption func(*Indexer)

// WithBatchSize sets how many lines go into one embeddings request.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of in-flight embeddings requests.
func WithConcurrency(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// Indexer embeds corpus lines into a [store.LineIndex].
type Indexer struct {
	embedder    embeddings.Provider
	lines       store.LineIndex
	batchSize   int
	concurrency int
}

// NewIndexer returns an Indexer.
func NewIndexer(embedder embeddings.Provider, lines store.LineIndex, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder:    embedder,
		lines:       lines,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Current reports whether the stored index was built from idx with the
// configured model.
func (ix *Indexer) Current(ctx context.Context, idx *corpus.Index) (bool, error) {
	meta, ok, err := ix.lines.Meta(ctx)
	if err != nil {
		return false, fmt.Errorf("vector indexer: %w", err)
	}
	return ok &&
		meta.Fingerprint == idx.Fingerprint() &&
		meta.Model == ix.embedder.ModelID() &&
		meta.Lines == idx.Len(), nil
}

// Build embeds every line of idx unless the stored index is already current.
// force rebuilds regardless. It reports whether any work was done.
func (ix *Indexer) Build(ctx context.Context, idx *corpus.Index, force bool) (bool, error) {
	if !force {
		current, err := ix.Current(ctx, idx)
		if err != nil {
			return false, err
		}
		if current {
			slog.Info("vector index is current", "lines", idx.Len(), "model", ix.embedder.ModelID())
			return false, nil
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for from := 0; from < idx.Len(); from += ix.batchSize {
		to := min(from+ix.batchSize, idx.Len())
		g.Go(func() error {
			return ix.embedRange(gctx, idx, from, to)
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	meta := store.IndexMeta{
		Fingerprint: idx.Fingerprint(),
		Model:       ix.embedder.ModelID(),
		Dimensions:  ix.embedder.Dimensions(),
		Lines:       idx.Len(),
		BuiltAt:     time.Now().UTC(),
	}
	if err := ix.lines.SetMeta(ctx, meta); err != nil {
		return false, fmt.Errorf("vector indexer: %w", err)
	}
	slog.Info("vector index built",
		"lines", idx.Len(),
		"model", meta.Model,
		"duration", time.Since(start),
	)
	return true, nil
}

func (ix *Indexer) embedRange(ctx context.Context, idx *corpus.Index, from, to int) error {
	texts := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		texts = append(texts, idx.Line(i).Normalized())
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("vector indexer: lines %d-%d: %w", from, to-1, err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("vector indexer: lines %d-%d: got %d vectors", from, to-1, len(vecs))
	}
	batch := make([]store.LineVector, len(texts))
	for k := range texts {
		batch[k] = store.LineVector{Line: from + k, Text: texts[k], Embedding: vecs[k]}
	}
	if err := ix.lines.UpsertLines(ctx, batch); err != nil {
		return fmt.Errorf("vector indexer: %w", err)
	}
	return nil
}
