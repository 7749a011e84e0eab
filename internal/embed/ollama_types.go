package embed

import "time"

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model. all-minilm is small
	// enough to run on CPU and good enough for prose retrieval.
	DefaultOllamaModel = "all-minilm"

	// ollamaPoolSize bounds the HTTP connection pool. Indexing runs a handful
	// of embedding workers, so a small pool is sufficient.
	ollamaPoolSize = 4
)

// OllamaOptions configures the Ollama embedder.
type OllamaOptions struct {
	// Host is the Ollama API endpoint (e.g. http://localhost:11434).
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension. Zero means detect
	// from a probe embedding at construction.
	Dimensions int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// BatchSize is the maximum number of texts per API call.
	BatchSize int

	// MaxRetries is the number of attempts per request.
	MaxRetries int

	// SkipProbe skips the construction-time reachability check and
	// dimension detection. Dimensions must be set when probing is skipped.
	SkipProbe bool
}

// OllamaEmbedRequest is the request body for POST /api/embed.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	// Input is either a single string or a []string batch.
	Input any `json:"input"`
}

// OllamaEmbedResponse is the response body from POST /api/embed.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaTagsResponse is the response body from GET /api/tags.
type OllamaTagsResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes a model known to the Ollama daemon.
type OllamaModelInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}
