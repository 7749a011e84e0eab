package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/config"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
)

func TestNew_StaticProvider(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Default cache size wraps the provider in the LRU cache.
	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
	assert.Equal(t, "static", e.ModelName())
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestNew_CacheDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.CacheSize = 0

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "hugot"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, lkerrors.ErrCodeConfigInvalid, lkerrors.GetCode(err))
}

func TestNew_OllamaUnreachableIsBackendUnavailable(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "ollama"
	cfg.Embeddings.OllamaHost = "http://127.0.0.1:1"
	cfg.Embeddings.Timeout = "1s"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, lkerrors.ErrCodeBackendUnavailable, lkerrors.GetCode(err))
	assert.True(t, lkerrors.IsFatal(err))
}

func TestNew_OpenAIWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.Model = "text-embedding-3-small"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, lkerrors.ErrCodeBackendUnavailable, lkerrors.GetCode(err))
}

func TestNew_OpenAIResolvesKnownModelDims(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.Model = "text-embedding-3-small"

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 1536, e.Dimensions())
	assert.Equal(t, "text-embedding-3-small", e.ModelName())
}

func TestNew_OpenAIUnknownModelNeedsExplicitDims(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.Model = "my-custom-model"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)

	cfg.Embeddings.Dimensions = 768
	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, 768, e.Dimensions())
}
