// Package classifier defines the optional capability that proposes corpus
// lines for a transcript when the locator's prefix search finds nothing.
//
// A classifier is advisory: its candidates are re-scored by the locator and
// a failing or absent classifier only means the locator falls back to a full
// corpus scan.
package classifier

import "context"

// Candidate is one ranked proposal.
type Candidate struct {
	// Line is the 0-based corpus line index.
	Line int

	// Probability is the classifier's confidence in [0, 1].
	Probability float64
}

// Classifier proposes corpus lines for a normalized transcript, best first.
//
// Implementations must be safe for concurrent use and must honour ctx
// cancellation.
type Classifier interface {
	Predict(ctx context.Context, text string) ([]Candidate, error)
}

// Func adapts an ordinary function to [Classifier].
type Func func(ctx context.Context, text string) ([]Candidate, error)

// Predict implements [Classifier].
func (f Func) Predict(ctx context.Context, text string) ([]Candidate, error) {
	return f(ctx, text)
}
