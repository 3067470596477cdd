// Package embeddings defines the Provider interface for text embedding
// backends used by the vector classifier.
//
// A provider maps normalized verse lines and transcripts to dense float32
// vectors. Lines are embedded once when the vector index is built; transcripts
// are embedded per classification request.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider share the length reported by
// Dimensions. Vectors from different models must not be compared; the vector
// index records ModelID so that a model change forces a rebuild.
type Provider interface {
	// Embed computes the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for texts in one request. The i-th result
	// belongs to texts[i]. On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length.
	Dimensions() int

	// ModelID returns the backend model identifier.
	ModelID() string
}
