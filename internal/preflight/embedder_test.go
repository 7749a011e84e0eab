package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorekeep/lorekeep/internal/embed"
)

// fakeEmbedder is a controllable embed.Embedder for check tests.
type fakeEmbedder struct {
	dims      int
	model     string
	available bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                  { return f.dims }
func (f *fakeEmbedder) ModelName() string                { return f.model }
func (f *fakeEmbedder) Available(_ context.Context) bool { return f.available }
func (f *fakeEmbedder) Close() error                     { return nil }

func TestCheckEmbedder_Available(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg)

	result := c.CheckEmbedder(context.Background(), embed.NewStaticEmbedder(), nil)
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "static")
	assert.Contains(t, result.Message, "256 dimensions")
	assert.False(t, result.Required)
}

func TestCheckEmbedder_Unreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embeddings.Provider = "ollama"
	c := New(cfg)

	emb := &fakeEmbedder{dims: 384, model: "all-minilm", available: false}
	result := c.CheckEmbedder(context.Background(), emb, nil)

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "ollama (all-minilm) is unreachable")
	assert.False(t, result.IsCritical())
}

func TestCheckEmbedder_BuildError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embeddings.Provider = "ollama"
	c := New(cfg)

	result := c.CheckEmbedder(context.Background(), nil, errors.New("connection refused"))

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "cannot initialize ollama provider")
	assert.Contains(t, result.Message, "connection refused")
}
