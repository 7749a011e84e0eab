// Package embed provides text embedding generation for semantic search.
//
// Three providers are supported: ollama (local HTTP API), openai (hosted
// API), and static (deterministic hash-based vectors, no network). All
// providers return L2-normalized vectors so the vector index can treat
// cosine distance as a simple dot-product complement.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultMaxRetries is the default number of attempts per request.
	DefaultMaxRetries = 3

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the embedding dimension of the static provider.
	StaticDimensions = 256
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length (L2 normalization).
// Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
