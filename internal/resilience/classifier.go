package resilience

import (
	"context"

	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
)

var _ classifier.Classifier = (*ClassifierFallback)(nil)

// ClassifierFallback asks classifier backends in order, skipping those whose
// breaker is open.
type ClassifierFallback struct {
	group *FallbackGroup[classifier.Classifier]
}

// NewClassifierFallback returns an empty chain. Add at least one backend
// before use.
func NewClassifierFallback(cfg FallbackConfig) *ClassifierFallback {
	return &ClassifierFallback{group: NewFallbackGroup[classifier.Classifier](cfg)}
}

// Add appends a backend.
func (f *ClassifierFallback) Add(name string, c classifier.Classifier) {
	f.group.Add(name, c)
}

// Len returns the number of backends.
func (f *ClassifierFallback) Len() int { return f.group.Len() }

// Predict implements classifier.Classifier.
func (f *ClassifierFallback) Predict(ctx context.Context, text string) ([]classifier.Candidate, error) {
	return Call(ctx, f.group, func(ctx context.Context, c classifier.Classifier) ([]classifier.Candidate, error) {
		return c.Predict(ctx, text)
	})
}
