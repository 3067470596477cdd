package recitation

import (
	"time"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
)

// Config holds the matcher tuning. The zero value is not usable; start from
// [DefaultConfig].
type Config struct {
	// MatchThreshold is the word similarity accepted as a match.
	MatchThreshold float64

	// LaxThreshold is the weaker similarity still accepted when neither
	// repair applies.
	LaxThreshold float64

	// SeekThreshold is the similarity required by backward and forward
	// repair.
	SeekThreshold float64

	// BackwardWindow is how many already passed reference words are checked
	// for an echoed word.
	BackwardWindow int

	// ForwardWindow is how many upcoming reference words are checked for a
	// skipped ahead word.
	ForwardWindow int

	// ForwardMinRunes is the length a transcript word must exceed before
	// forward repair is attempted.
	ForwardMinRunes int

	// WindowLines is the number of lines after the anchor that make up the
	// reference.
	WindowLines int

	// MinLocateRunes is the shortest normalized transcript the locator acts
	// on.
	MinLocateRunes int

	// ConfidentLocateRunes is the length at which a prefix hit is trusted
	// even when several lines qualify.
	ConfidentLocateRunes int

	// ClassifierAccept is the prefix similarity a classifier candidate needs.
	ClassifierAccept float64

	// ClassifierTopK caps the classifier candidates considered.
	ClassifierTopK int

	// ClassifierTimeout bounds a single classifier request.
	ClassifierTimeout time.Duration

	// ScanAccept is the lowest prefix similarity the exhaustive scan
	// anchors on. Zero accepts any positive score.
	ScanAccept float64

	// EarlyExit stops the exhaustive scan at the first line scoring above it.
	EarlyExit float64

	// FormulaThreshold is the per-word similarity for opening formulas.
	FormulaThreshold float64

	// FallbackDelay is the quiet period before the fallback search runs.
	FallbackDelay time.Duration

	// PeekDelay is the stall after which upcoming words are previewed.
	PeekDelay time.Duration

	// PeekWords is the number of words a preview reveals.
	PeekWords int
}

// DefaultConfig returns the tuning used by the mobile app the matcher was
// calibrated on.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:       0.7,
		LaxThreshold:         0.6,
		SeekThreshold:        0.95,
		BackwardWindow:       10,
		ForwardWindow:        17,
		ForwardMinRunes:      3,
		WindowLines:          500,
		MinLocateRunes:       10,
		ConfidentLocateRunes: 17,
		ClassifierAccept:     0.7,
		ClassifierTopK:       5,
		ClassifierTimeout:    2 * time.Second,
		EarlyExit:            0.9,
		FormulaThreshold:     arabic.DefaultFormulaThreshold,
		FallbackDelay:        time.Second,
		PeekDelay:            5 * time.Second,
		PeekWords:            2,
	}
}

type options struct {
	cfg        Config
	classifier classifier.Classifier
	metrics    *observe.Metrics
	onChange   func(Snapshot)
}

// Option configures a [Locator] or a [Session].
type Option func(*options)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithClassifier enables the classifier step of the fallback search.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithMetrics records instruments on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithOnChange registers fn to receive a snapshot after every state change,
// including those caused by timers. fn is called without the session lock
// held and must not block for long.
func WithOnChange(fn func(Snapshot)) Option {
	return func(o *options) { o.onChange = fn }
}

func buildOptions(opts []Option) options {
	o := options{cfg: DefaultConfig()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}
