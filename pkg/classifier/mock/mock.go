// Package mock provides a test double for classifier.Classifier.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
)

var _ classifier.Classifier = (*Classifier)(nil)

// Classifier returns canned candidates and records every request.
type Classifier struct {
	mu sync.Mutex

	// Candidates is returned by Predict.
	Candidates []classifier.Candidate

	// ByText overrides Candidates for specific texts.
	ByText map[string][]classifier.Candidate

	// Err, when set, is returned by Predict.
	Err error

	// Delay makes Predict block for the given duration or until ctx is done.
	Delay time.Duration

	// Texts records the text of every call.
	Texts []string
}

// Predict implements classifier.Classifier.
func (c *Classifier) Predict(ctx context.Context, text string) ([]classifier.Candidate, error) {
	c.mu.Lock()
	c.Texts = append(c.Texts, text)
	delay := c.Delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if got, ok := c.ByText[text]; ok {
		return got, nil
	}
	return c.Candidates, nil
}

// Calls returns the number of Predict calls so far.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Texts)
}
