package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lorekeep/lorekeep/internal/embed"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/store"
)

// CheckDatabase verifies the document database exists, passes SQLite's
// integrity check, and has the expected schema. The database is never
// created here; an absent index is reported, not initialized.
func (c *Checker) CheckDatabase(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "database",
		Required: true,
	}

	path := c.cfg.DatabasePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Status = StatusFail
		result.Message = "no index database (run 'lorekeep rebuild')"
		result.Details = "Expected at " + path
		return result
	}

	st, err := store.Open(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open database: %v", err)
		return result
	}
	defer st.Close()

	if err := st.CheckIntegrity(ctx); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("integrity check failed: %v", err)
		result.Details = "Run 'lorekeep rebuild' to recreate the index."
		return result
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read index stats: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("ok (%d documents, %d chunks)", stats.Documents, stats.Chunks)
	return result
}

// CheckDimensions verifies the persisted vector index was built with the
// same dimensionality the configured embedder produces.
func (c *Checker) CheckDimensions(_ context.Context, emb embed.Embedder) CheckResult {
	result := CheckResult{
		Name:     "dimensions",
		Required: true,
	}

	if emb == nil {
		result.Status = StatusWarn
		result.Message = "cannot verify: embedder unavailable"
		result.Required = false
		return result
	}

	path := store.VectorIndexPath(c.cfg.DataDir(), c.cfg.Vector.Backend)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "no vector index to verify"
		result.Required = false
		return result
	}

	vectors, err := store.NewVectorIndex(c.cfg.Vector.Backend, c.cfg.DataDir(), emb.Dimensions())
	if err != nil {
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) {
			result.Status = StatusFail
			result.Message = fmt.Sprintf(
				"index built with %d dimensions, embedder %s produces %d",
				dimErr.Expected, emb.ModelName(), dimErr.Got)
			result.Details = "Run 'lorekeep rebuild' after changing the embedding model."
			return result
		}
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open vector index: %v", err)
		return result
	}
	defer vectors.Close()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d dimensions", vectors.Dimensions())
	return result
}

// CheckConsistency verifies every stored chunk has a vector and every
// vector belongs to a stored chunk. A divergence means a flush was
// interrupted; the index still works but results silently miss documents.
func (c *Checker) CheckConsistency(ctx context.Context, emb embed.Embedder) CheckResult {
	result := CheckResult{
		Name:     "consistency",
		Required: true,
	}

	if _, err := os.Stat(c.cfg.DatabasePath()); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "no index to verify"
		result.Required = false
		return result
	}
	if emb == nil {
		result.Status = StatusWarn
		result.Message = "cannot verify: embedder unavailable"
		result.Required = false
		return result
	}

	st, err := store.Open(c.cfg.DatabasePath())
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open database: %v", err)
		return result
	}
	defer st.Close()

	vectors, err := store.NewVectorIndex(c.cfg.Vector.Backend, c.cfg.DataDir(), emb.Dimensions())
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open vector index: %v", err)
		return result
	}
	defer vectors.Close()

	check, err := index.CheckConsistency(ctx, st, vectors)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot compare chunks and vectors: %v", err)
		return result
	}

	if check.Consistent() {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("chunks and vectors agree (%d)", check.ChunkCount)
		return result
	}

	var missing, orphaned int
	for _, f := range check.Findings {
		switch f.Type {
		case index.MissingVector:
			missing++
		case index.OrphanVector:
			orphaned++
		}
	}
	result.Status = StatusFail
	result.Message = fmt.Sprintf(
		"%d chunks without vectors, %d vectors without chunks (chunks %d, vectors %d)",
		missing, orphaned, check.ChunkCount, check.VectorCount)
	result.Details = "Run 'lorekeep rebuild' to realign the index."
	return result
}
