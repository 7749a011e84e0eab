package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/chunk"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
	"github.com/lorekeep/lorekeep/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires a real store, vector index, and static embedder around a
// temporary library root.
type harness struct {
	cfg      *config.Config
	store    *store.Store
	vectors  store.VectorIndex
	embedder embed.Embedder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Library.Root = t.TempDir()
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.Workers = 2
	cfg.Embeddings.CacheSize = 0

	require.NoError(t, os.MkdirAll(cfg.DataDir(), 0o755))

	st, err := store.Open(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := embed.NewStaticEmbedder()
	vectors, err := store.NewVectorIndex(cfg.Vector.Backend, cfg.DataDir(), emb.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	return &harness{cfg: cfg, store: st, vectors: vectors, embedder: emb}
}

func (h *harness) indexer(t *testing.T) *Indexer {
	t.Helper()
	ix, err := New(Dependencies{
		Config:   h.cfg,
		Store:    h.store,
		Vectors:  h.vectors,
		Embedder: h.embedder,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return ix
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(h.cfg.Library.Root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(h.cfg.Library.Root, filepath.FromSlash(rel))))
}

// countingEmbedder counts EmbedBatch calls on top of a real embedder.
type countingEmbedder struct {
	embed.Embedder
	batchCalls atomic.Int64
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls.Add(1)
	return c.Embedder.EmbedBatch(ctx, texts)
}

// failingEmbedder fails EmbedBatch while the flag is set.
type failingEmbedder struct {
	embed.Embedder
	failing atomic.Bool
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failing.Load() {
		return nil, errors.New("embedding request failed")
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}

// unavailableEmbedder reports its backend as unreachable.
type unavailableEmbedder struct {
	embed.Embedder
}

func (u *unavailableEmbedder) Available(context.Context) bool { return false }

func TestNew_MissingDependencies(t *testing.T) {
	h := newHarness(t)
	full := Dependencies{Config: h.cfg, Store: h.store, Vectors: h.vectors, Embedder: h.embedder}

	tests := []struct {
		name   string
		mutate func(*Dependencies)
	}{
		{"nil config", func(d *Dependencies) { d.Config = nil }},
		{"nil store", func(d *Dependencies) { d.Store = nil }},
		{"nil vectors", func(d *Dependencies) { d.Vectors = nil }},
		{"nil embedder", func(d *Dependencies) { d.Embedder = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := full
			tc.mutate(&deps)
			_, err := New(deps)
			require.Error(t, err)
		})
	}
}

func TestIndexer_RebuildIndexesLibrary(t *testing.T) {
	h := newHarness(t)
	h.write(t, "guide.md", "# Guide\n\nLanterns are lit at dusk and carried along the harbor wall.\n")
	h.write(t, "notes/setup.md", "# Setup\n\nInstall the tools before the first expedition.\n")
	h.write(t, "notes/usage.md", "# Usage\n\nRun the survey and archive the results.\n")

	ix := h.indexer(t)
	sum, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeRebuild, sum.Mode)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.FilesScanned)
	assert.Equal(t, 3, sum.Added)
	assert.Equal(t, 3, sum.Indexed)
	assert.Empty(t, sum.Failed)
	assert.Positive(t, sum.Chunks)
	assert.Equal(t, sum.Chunks, sum.Vectors)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, stats.Chunks, h.vectors.Count())

	check, err := CheckConsistency(context.Background(), h.store, h.vectors)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestIndexer_EmptyLibrary(t *testing.T) {
	h := newHarness(t)

	sum, err := h.indexer(t).Rebuild(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sum.FilesScanned)
	assert.Zero(t, sum.Indexed)
	assert.Empty(t, sum.Failed)
}

func TestIndexer_UpdateSkipsUnchanged(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nFirst document body.\n")
	h.write(t, "b.md", "# B\n\nSecond document body.\n")

	counting := &countingEmbedder{Embedder: h.embedder}
	h.embedder = counting
	ix := h.indexer(t)

	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	counting.batchCalls.Store(0)

	sum, err := ix.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeUpdate, sum.Mode)
	assert.Equal(t, 2, sum.Unchanged)
	assert.Zero(t, sum.Added)
	assert.Zero(t, sum.Modified)
	assert.Zero(t, sum.Removed)
	assert.Zero(t, sum.Indexed)

	// Unchanged documents are never re-embedded.
	assert.Zero(t, counting.batchCalls.Load())
}

func TestIndexer_UpdateIndexesModified(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nOriginal body.\n")
	h.write(t, "b.md", "# B\n\nUntouched body.\n")

	ix := h.indexer(t)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	h.write(t, "a.md", "# Revised\n\nCompletely new content after the edit.\n")

	sum, err := ix.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Modified)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Indexed)

	doc, err := h.store.GetDocumentByPath(context.Background(), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "Revised", doc.Title)
	assert.Contains(t, doc.Content, "new content after the edit")

	check, err := CheckConsistency(context.Background(), h.store, h.vectors)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestIndexer_UpdateAddsNew(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	ix := h.indexer(t)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	h.write(t, "fresh.md", "# Fresh\n\nA document added after the first run.\n")

	sum, err := ix.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Indexed)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
}

func TestIndexer_UpdateRemovesDeleted(t *testing.T) {
	h := newHarness(t)
	h.write(t, "keep.md", "# Keep\n\nThis one stays.\n")
	h.write(t, "drop.md", "# Drop\n\nThis one goes away.\n")

	ix := h.indexer(t)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	h.remove(t, "drop.md")

	sum, err := ix.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Removed)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Empty(t, sum.Failed)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	_, err = h.store.GetDocumentByPath(context.Background(), "drop.md")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Vectors for the removed document are gone too.
	check, err := CheckConsistency(context.Background(), h.store, h.vectors)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestIndexer_RebuildDropsStaleState(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")
	h.write(t, "b.md", "# B\n\nBody.\n")

	ix := h.indexer(t)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	h.remove(t, "b.md")
	h.write(t, "c.md", "# C\n\nBody.\n")

	sum, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Added)
	assert.Equal(t, 2, sum.Indexed)

	_, err = h.store.GetDocumentByPath(context.Background(), "b.md")
	require.ErrorIs(t, err, store.ErrNotFound)

	check, err := CheckConsistency(context.Background(), h.store, h.vectors)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestIndexer_EmbedFailureKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	h.write(t, "doc.md", "# One\n\nOriginal body.\n")

	failing := &failingEmbedder{Embedder: h.embedder}
	h.embedder = failing
	ix := h.indexer(t)

	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	orig, err := h.store.GetDocumentByPath(context.Background(), "doc.md")
	require.NoError(t, err)

	h.write(t, "doc.md", "# One\n\nRewritten body.\n")
	failing.failing.Store(true)

	sum, err := ix.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "doc.md", sum.Failed[0].Path)
	assert.Equal(t, FailureEmbed, sum.Failed[0].Stage)
	assert.True(t, lkerrors.IsRetryable(sum.Failed[0].Err))
	assert.Zero(t, sum.Indexed)

	// Embedding happens before any store write, so the document's prior
	// indexed state survives the failure.
	kept, err := h.store.GetDocumentByPath(context.Background(), "doc.md")
	require.NoError(t, err)
	assert.Equal(t, orig.Content, kept.Content)
	assert.Equal(t, orig.Fingerprint, kept.Fingerprint)

	// Once the backend recovers, the next update picks the document up again.
	failing.failing.Store(false)
	sum, err = ix.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Modified)
	assert.Equal(t, 1, sum.Indexed)

	fixed, err := h.store.GetDocumentByPath(context.Background(), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, fixed.Content, "Rewritten body")
}

func TestIndexer_ReadFailureRecordedPerDocument(t *testing.T) {
	h := newHarness(t)
	h.write(t, "keep.md", "# Keep\n\nReadable content.\n")
	h.write(t, "gone.md", "# Gone\n\nDeleted between scan and read.\n")

	var once sync.Once
	ix, err := New(Dependencies{
		Config:   h.cfg,
		Store:    h.store,
		Vectors:  h.vectors,
		Embedder: h.embedder,
		Logger:   testLogger(),
		Progress: func(stage string, done, total int) {
			if stage == StageScan && done == total {
				once.Do(func() {
					_ = os.Remove(filepath.Join(h.cfg.Library.Root, "gone.md"))
				})
			}
		},
	})
	require.NoError(t, err)

	sum, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "gone.md", sum.Failed[0].Path)
	assert.Equal(t, FailureRead, sum.Failed[0].Stage)
	assert.Equal(t, 1, sum.Indexed)
}

func TestIndexer_UnavailableBackendAborts(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	h.embedder = &unavailableEmbedder{Embedder: h.embedder}
	ix := h.indexer(t)

	sum, err := ix.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, lkerrors.ErrCodeBackendUnavailable, lkerrors.GetCode(err))
	assert.True(t, lkerrors.IsFatal(err))
	assert.Zero(t, sum.Indexed)

	// Nothing was touched.
	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

func TestIndexer_DimensionMismatchAborts(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	// Vector index opened with a different dimensionality than the embedder.
	small, err := store.NewVectorIndex("sqlite", t.TempDir(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { small.Close() })
	h.vectors = small

	ix := h.indexer(t)
	_, err = ix.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, lkerrors.ErrCodeDimensionMismatch, lkerrors.GetCode(err))
	assert.True(t, lkerrors.IsFatal(err))
}

func TestIndexer_LockedLibraryRejected(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	lock := NewLock(h.cfg.LockPath())
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	_, err := h.indexer(t).Update(context.Background())
	require.ErrorIs(t, err, ErrIndexBusy)
}

func TestIndexer_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.indexer(t).Rebuild(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIndexer_ImageScopedToContainingChunk(t *testing.T) {
	h := newHarness(t)
	h.write(t, "doc.md", "# Pictures\n\nSome prose before the figure.\n\n![harbor diagram](assets/harbor.png)\n")

	ix := h.indexer(t)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	doc, err := h.store.GetDocumentByPath(context.Background(), "doc.md")
	require.NoError(t, err)

	images, err := h.store.ImagesForDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "assets/harbor.png", images[0].SourcePath)
	assert.Equal(t, "harbor diagram", images[0].AltText)
	assert.NotZero(t, images[0].ChunkID)
}

func TestIndexer_ProgressReportsStages(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# A\n\nBody.\n")

	var mu sync.Mutex
	seen := map[string]bool{}

	ix, err := New(Dependencies{
		Config:   h.cfg,
		Store:    h.store,
		Vectors:  h.vectors,
		Embedder: h.embedder,
		Logger:   testLogger(),
		Progress: func(stage string, done, total int) {
			mu.Lock()
			seen[stage] = true
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	_, err = ix.Rebuild(context.Background())
	require.NoError(t, err)

	for _, stage := range []string{StageScan, StageClean, StageIndex, StageFlush} {
		assert.True(t, seen[stage], "stage %s not reported", stage)
	}
}

func TestOrdinalAt(t *testing.T) {
	pieces := []chunk.Piece{
		{Ordinal: 0, StartChar: 0, EndChar: 100},
		{Ordinal: 1, StartChar: 80, EndChar: 180}, // overlaps piece 0
	}

	assert.Equal(t, 0, ordinalAt(pieces, 0))
	assert.Equal(t, 0, ordinalAt(pieces, 99))
	assert.Equal(t, 0, ordinalAt(pieces, 90), "overlap resolves to the lower ordinal")
	assert.Equal(t, 1, ordinalAt(pieces, 100))
	assert.Equal(t, 1, ordinalAt(pieces, 179))
	assert.Equal(t, -1, ordinalAt(pieces, 180))
	assert.Equal(t, -1, ordinalAt(nil, 0))
}
