package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/lorekeep/lorekeep/internal/embed"
)

// embedderProbeTimeout bounds the reachability probe so a hung provider
// doesn't stall the whole doctor run.
const embedderProbeTimeout = 5 * time.Second

// CheckEmbedder verifies the configured embedding provider is reachable.
// Not required: an offline provider breaks new searches and indexing but
// says nothing about the index on disk.
func (c *Checker) CheckEmbedder(ctx context.Context, emb embed.Embedder, buildErr error) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	if buildErr != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot initialize %s provider: %v",
			c.cfg.Embeddings.Provider, buildErr)
		result.Details = "Searches and indexing will fail; the static provider works offline."
		return result
	}
	if emb == nil {
		result.Status = StatusWarn
		result.Message = "no embedder configured"
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	if !emb.Available(probeCtx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s (%s) is unreachable",
			c.cfg.Embeddings.Provider, emb.ModelName())
		result.Details = "Searches and indexing will fail until the provider returns."
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s, %d dimensions)",
		c.cfg.Embeddings.Provider, emb.ModelName(), emb.Dimensions())
	return result
}
