// Package mock provides a deterministic test double for embeddings.Provider.
//
// Vectors are looked up by exact text in Vectors; unknown texts get
// Fallback (or a zero vector of length Dims).
package mock

import (
	"context"
	"sync"

	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Dims is returned by Dimensions.
	Dims int

	// Model is returned by ModelID.
	Model string

	// Vectors maps an input text to the vector returned for it.
	Vectors map[string][]float32

	// Fallback is returned for texts missing from Vectors.
	Fallback []float32

	// Err, when set, fails every Embed and EmbedBatch call.
	Err error

	// Texts records every text submitted, in order.
	Texts []string

	// BatchCalls counts EmbedBatch invocations.
	BatchCalls int
}

func (p *Provider) vector(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return v
	}
	if p.Fallback != nil {
		return p.Fallback
	}
	return make([]float32, p.Dims)
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BatchCalls++
	p.Texts = append(p.Texts, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vector(text)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.Dims }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.Model == "" {
		return "mock-embed"
	}
	return p.Model
}
