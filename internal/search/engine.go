package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gopath "path"
	"strings"
	"time"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
	"github.com/lorekeep/lorekeep/internal/store"
)

// MaxLimit caps the number of hits a single search may request.
const MaxLimit = 100

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine answers semantic queries over one library. It owns no resources;
// callers close the store, vector index, and embedder.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	vectors  store.VectorIndex
	embedder embed.Embedder
	logger   *slog.Logger
}

// Option configures optional engine behavior.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a search engine.
func New(cfg *config.Config, st *store.Store, vectors store.VectorIndex, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if cfg == nil || st == nil || vectors == nil || embedder == nil {
		return nil, ErrNilDependency
	}

	e := &Engine{
		cfg:      cfg,
		store:    st,
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search embeds the query and returns the nearest chunks within the distance
// threshold, ordered by ascending distance. An empty result is valid. A query
// embedding failure fails the whole search; there are never partial results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, lkerrors.New(lkerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	limit := e.resolveLimit(opts.Limit)
	threshold := e.resolveThreshold(opts.DistanceThreshold)
	start := time.Now()

	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, lkerrors.EmbeddingError("failed to embed query", err)
	}

	matches, err := e.vectors.Query(ctx, qvec, limit)
	if err != nil {
		return nil, lkerrors.New(lkerrors.ErrCodeSearchFailed, "vector query failed", err)
	}

	// Query returns ascending distance; filtering preserves the order.
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		if threshold >= 0 && float64(m.Distance) > threshold {
			continue
		}

		c, err := e.store.GetChunkByID(ctx, m.ChunkID)
		if errors.Is(err, store.ErrNotFound) {
			// The chunk vanished between the vector hit and hydration,
			// e.g. a concurrent update removed it. Skip the hit.
			continue
		}
		if err != nil {
			return nil, lkerrors.New(lkerrors.ErrCodeSearchFailed, "failed to load chunk", err)
		}

		doc, err := e.store.GetDocumentForChunk(ctx, m.ChunkID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, lkerrors.New(lkerrors.ErrCodeSearchFailed, "failed to load document", err)
		}

		hits = append(hits, Hit{
			ChunkID:       m.ChunkID,
			Distance:      m.Distance,
			Content:       c.Content,
			Ordinal:       c.Ordinal,
			DocumentPath:  doc.Path,
			DocumentTitle: doc.Title,
		})
	}

	e.logger.Debug("search_complete",
		"limit", limit,
		"matches", len(matches),
		"hits", len(hits),
		"duration", time.Since(start).Round(time.Microsecond).String(),
	)
	return hits, nil
}

// FetchDocument returns the full document at a library-relative path.
// Missing documents return store.ErrNotFound, a response condition rather
// than a failure.
func (e *Engine) FetchDocument(ctx context.Context, path string) (*store.Document, error) {
	clean, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	return e.store.GetDocumentByPath(ctx, clean)
}

// FetchByHit returns the full document owning a search hit's chunk.
func (e *Engine) FetchByHit(ctx context.Context, chunkID int64) (*store.Document, error) {
	if chunkID <= 0 {
		return nil, lkerrors.ValidationError(fmt.Sprintf("invalid chunk id %d", chunkID), nil)
	}
	return e.store.GetDocumentForChunk(ctx, chunkID)
}

// Status reports index statistics and health.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, lkerrors.InternalError("failed to read store stats", err)
	}

	st := &Status{
		Documents:         stats.Documents,
		Chunks:            stats.Chunks,
		Images:            stats.Images,
		LastIndexed:       stats.LastIndexed,
		VectorBackend:     e.cfg.Vector.Backend,
		VectorCount:       e.vectors.Count(),
		VectorDimensions:  e.vectors.Dimensions(),
		EmbedderModel:     e.embedder.ModelName(),
		EmbedderAvailable: e.embedder.Available(ctx),
		Healthy:           true,
	}

	if err := e.store.CheckIntegrity(ctx); err != nil {
		st.Healthy = false
		st.Problems = append(st.Problems, fmt.Sprintf("store integrity: %v", err))
	}
	if st.Chunks != st.VectorCount {
		st.Healthy = false
		st.Problems = append(st.Problems,
			fmt.Sprintf("chunk count %d does not match vector count %d (run 'lorekeep rebuild')",
				st.Chunks, st.VectorCount))
	}

	return st, nil
}

func (e *Engine) resolveLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.Search.DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func (e *Engine) resolveThreshold(threshold float64) float64 {
	if threshold == 0 {
		return e.cfg.Search.DistanceThreshold
	}
	return threshold
}

// normalizePath cleans a user-supplied document path. Stored paths are
// library-relative and slash-separated, so absolute paths and paths escaping
// the root are invalid rather than not-found.
func normalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", lkerrors.New(lkerrors.ErrCodeInvalidPath, "path must not be empty", nil)
	}

	clean := gopath.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == "." || gopath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", lkerrors.New(lkerrors.ErrCodeInvalidPath,
			fmt.Sprintf("path %q must be relative to the library root", p), nil)
	}
	return clean, nil
}
