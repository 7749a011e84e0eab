package embed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lorekeep/lorekeep/internal/config"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
)

// New creates the embedder selected by cfg.Embeddings.Provider and wraps it
// in an LRU cache when cfg.Embeddings.CacheSize is positive. The returned
// embedder has its dimensions resolved; callers can size the vector index
// from Dimensions() immediately.
//
// Construction failures for remote providers come back as
// ERR_302_BACKEND_UNAVAILABLE so runs abort instead of failing every
// document individually.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var (
		inner Embedder
		err   error
	)

	provider := strings.ToLower(cfg.Embeddings.Provider)
	switch provider {
	case "ollama":
		inner, err = NewOllamaEmbedder(ctx, OllamaOptions{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.EmbedTimeout(),
		})
		if err != nil {
			return nil, lkerrors.BackendUnavailable(
				fmt.Sprintf("Ollama embedder unavailable: %v", err), err).
				WithDetail("host", cfg.Embeddings.OllamaHost).
				WithSuggestion("Check that Ollama is running and the model is pulled.")
		}

	case "openai":
		inner, err = NewOpenAIEmbedder(OpenAIOptions{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    cfg.Embeddings.OpenAIBaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.EmbedTimeout(),
		})
		if err != nil {
			return nil, lkerrors.BackendUnavailable(
				fmt.Sprintf("OpenAI embedder unavailable: %v", err), err)
		}

	case "static":
		inner = NewStaticEmbedder()

	default:
		return nil, lkerrors.ConfigError(
			fmt.Sprintf("unknown embeddings provider %q (supported: ollama, openai, static)", cfg.Embeddings.Provider), nil)
	}

	if cfg.Embeddings.CacheSize > 0 {
		cached, err := NewCachedEmbedder(inner, cfg.Embeddings.CacheSize)
		if err != nil {
			_ = inner.Close()
			return nil, err
		}
		return cached, nil
	}

	return inner, nil
}
