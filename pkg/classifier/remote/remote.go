// Package remote provides a [classifier.Classifier] backed by an HTTP
// prediction service, typically the exported line classifier model served
// next to muhaffez.
//
// The service receives a POST with a JSON body {"text": "...", "top_k": N}
// and answers with a JSON array of {"line": int, "probability": float}.
//
//	c := remote.New("http://localhost:8501/predict", remote.WithTimeout(time.Second))
//	candidates, err := c.Predict(ctx, text)
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
)

var _ classifier.Classifier = (*Classifier)(nil)

const (
	defaultTimeout = 2 * time.Second
	defaultTopK    = 5

	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

// Option configures a [Classifier].
type Option func(*Classifier)

// WithTimeout sets the per-request HTTP timeout. Defaults to 2 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTopK sets how many candidates are requested. Defaults to 5.
func WithTopK(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithHTTPClient replaces the HTTP client. The timeout option still applies
// when given after this one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Classifier) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) Option {
	return func(c *Classifier) {
		c.headers.Set(key, value)
	}
}

// Classifier calls a remote prediction endpoint.
type Classifier struct {
	url        string
	topK       int
	headers    http.Header
	httpClient *http.Client
}

// New returns a Classifier posting to url.
func New(url string, opts ...Option) *Classifier {
	c := &Classifier{
		url:        url,
		topK:       defaultTopK,
		headers:    make(http.Header),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type prediction struct {
	Line        int     `json:"line"`
	Probability float64 `json:"probability"`
}

// Predict implements [classifier.Classifier]. Candidates are returned best
// first regardless of the order the service used; entries with a negative
// line are dropped.
func (c *Classifier) Predict(ctx context.Context, text string) ([]classifier.Candidate, error) {
	body, err := json.Marshal(request{Text: text, TopK: c.topK})
	if err != nil {
		return nil, fmt.Errorf("remote classifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote classifier: predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("remote classifier: predict: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var preds []prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("remote classifier: decode response: %w", err)
	}

	out := make([]classifier.Candidate, 0, len(preds))
	for _, p := range preds {
		if p.Line < 0 {
			continue
		}
		out = append(out, classifier.Candidate{Line: p.Line, Probability: p.Probability})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if len(out) > c.topK {
		out = out[:c.topK]
	}
	return out, nil
}
