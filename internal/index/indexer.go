package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lorekeep/lorekeep/internal/chunk"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
	"github.com/lorekeep/lorekeep/internal/scanner"
	"github.com/lorekeep/lorekeep/internal/store"
)

// Dependencies are the injected collaborators for an Indexer.
type Dependencies struct {
	// Config is the loaded library configuration (required).
	Config *config.Config

	// Store is the document store (required).
	Store *store.Store

	// Vectors is the vector index, already opened with the embedder's
	// dimensionality (required).
	Vectors store.VectorIndex

	// Embedder produces chunk embeddings (required).
	Embedder embed.Embedder

	// Logger receives structured run logs; nil uses slog.Default().
	Logger *slog.Logger

	// Progress receives stage updates; nil disables reporting.
	Progress ProgressFunc
}

func (d Dependencies) validate() error {
	if d.Config == nil {
		return fmt.Errorf("config is required")
	}
	if d.Store == nil {
		return fmt.Errorf("document store is required")
	}
	if d.Vectors == nil {
		return fmt.Errorf("vector index is required")
	}
	if d.Embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	return nil
}

// Indexer executes rebuild and update runs over a single library. It does
// not own its collaborators; callers close the store, vector index, and
// embedder after the last run.
type Indexer struct {
	cfg      *config.Config
	store    *store.Store
	vectors  store.VectorIndex
	embedder embed.Embedder
	chunker  *chunk.Chunker
	logger   *slog.Logger
	progress ProgressFunc
}

// New creates an Indexer from its dependencies.
func New(deps Dependencies) (*Indexer, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	chunker, err := chunk.NewChunker(deps.Config.Chunking.Size, deps.Config.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := deps.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}

	return &Indexer{
		cfg:      deps.Config,
		store:    deps.Store,
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		chunker:  chunker,
		logger:   logger,
		progress: progress,
	}, nil
}

// Rebuild drops all indexed state and reindexes the entire library.
func (ix *Indexer) Rebuild(ctx context.Context) (*Summary, error) {
	return ix.run(ctx, ModeRebuild)
}

// Update reindexes only documents whose fingerprints changed since the last
// run and removes documents that no longer exist on disk.
func (ix *Indexer) Update(ctx context.Context) (*Summary, error) {
	return ix.run(ctx, ModeUpdate)
}

// plan is the work list derived from diffing a snapshot against the store.
type plan struct {
	index  []scanner.File // added and modified files, in path order
	remove []string       // stored paths no longer on disk, sorted
}

func (ix *Indexer) run(ctx context.Context, mode Mode) (*Summary, error) {
	lock := NewLock(ix.cfg.LockPath())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			ix.logger.Warn("lock_release_failed", "path", lock.Path(), "error", err)
		}
	}()

	summary := &Summary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	logger := ix.logger.With("run_id", summary.RunID, "mode", string(mode))

	// An unreachable backend would fail every document identically, so it
	// aborts before any state is touched. Mid-run embedding errors stay
	// per-document.
	if !ix.embedder.Available(ctx) {
		return summary, lkerrors.BackendUnavailable(
			fmt.Sprintf("embedding backend for model %q is not reachable", ix.embedder.ModelName()), nil).
			WithSuggestion("Check that the embedding provider is running, or change embeddings.provider.")
	}

	logger.Info("index_run_started", "root", ix.cfg.Library.Root)

	snap, err := ix.stageScan(ctx, summary)
	if err != nil {
		return summary, err
	}

	work, err := ix.buildPlan(ctx, mode, snap, summary)
	if err != nil {
		return summary, err
	}

	if err := ix.stageClean(ctx, mode, work, summary, logger); err != nil {
		return summary, err
	}

	if err := ix.stageIndex(ctx, work, summary); err != nil {
		return summary, err
	}

	if err := ix.stageFlush(ctx, summary); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(summary.StartedAt)
	logger.Info("index_run_complete",
		"files_scanned", summary.FilesScanned,
		"files_skipped", summary.FilesSkipped,
		"added", summary.Added,
		"modified", summary.Modified,
		"removed", summary.Removed,
		"unchanged", summary.Unchanged,
		"indexed", summary.Indexed,
		"chunks", summary.Chunks,
		"failed", len(summary.Failed),
		"duration", summary.Duration.Round(time.Millisecond).String(),
	)
	return summary, nil
}

// stageScan walks the library and snapshots every matching document.
func (ix *Indexer) stageScan(ctx context.Context, summary *Summary) (*scanner.Snapshot, error) {
	start := time.Now()
	ix.progress(StageScan, 0, 1)

	sc, err := scanner.New(ix.cfg.Library, ix.logger)
	if err != nil {
		return nil, err
	}
	snap, err := sc.Scan(ctx)
	if err != nil {
		return nil, err
	}

	summary.FilesScanned = len(snap.Files)
	summary.FilesSkipped = len(snap.Skipped)
	summary.Stages = append(summary.Stages, StageTiming{StageScan, time.Since(start)})
	ix.progress(StageScan, 1, 1)
	return snap, nil
}

// buildPlan diffs the snapshot against the store. Rebuilds index everything;
// updates compare fingerprints so unchanged documents are never reprocessed.
func (ix *Indexer) buildPlan(ctx context.Context, mode Mode, snap *scanner.Snapshot, summary *Summary) (*plan, error) {
	work := &plan{}

	if mode == ModeRebuild {
		for _, f := range snap.Files {
			work.index = append(work.index, f)
		}
		summary.Added = len(work.index)
		sortByPath(work.index)
		return work, nil
	}

	stored, err := ix.store.ListDocuments(ctx)
	if err != nil {
		return nil, lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to list indexed documents", err)
	}

	byPath := make(map[string]store.DocumentInfo, len(stored))
	for _, d := range stored {
		byPath[d.Path] = d
	}

	for path, f := range snap.Files {
		prev, ok := byPath[path]
		switch {
		case !ok:
			summary.Added++
			work.index = append(work.index, f)
		case prev.Fingerprint != f.Fingerprint:
			summary.Modified++
			work.index = append(work.index, f)
		default:
			summary.Unchanged++
		}
	}

	for path := range byPath {
		if _, ok := snap.Files[path]; !ok {
			work.remove = append(work.remove, path)
		}
	}
	summary.Removed = len(work.remove)

	sortByPath(work.index)
	sort.Strings(work.remove)
	return work, nil
}

// stageClean wipes everything on a rebuild, or deletes removed documents and
// their vectors on an update. Removal failures are recorded per document.
func (ix *Indexer) stageClean(ctx context.Context, mode Mode, work *plan, summary *Summary, logger *slog.Logger) error {
	start := time.Now()
	defer func() {
		summary.Stages = append(summary.Stages, StageTiming{StageClean, time.Since(start)})
	}()

	if mode == ModeRebuild {
		ix.progress(StageClean, 0, 1)
		if err := ix.store.DeleteAllDocuments(ctx); err != nil {
			return lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to clear document store", err)
		}
		if err := ix.vectors.DeleteAll(ctx); err != nil {
			return lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to clear vector index", err)
		}
		ix.progress(StageClean, 1, 1)
		return nil
	}

	total := len(work.remove)
	for i, path := range work.remove {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunkIDs, err := ix.store.DeleteDocument(ctx, path)
		if err != nil {
			logger.Warn("document_remove_failed", "path", path, "error", err)
			summary.Failed = append(summary.Failed, DocumentFailure{
				Path:  path,
				Stage: FailureStore,
				Err:   lkerrors.New(lkerrors.ErrCodeIndexFailed, fmt.Sprintf("failed to remove %s", path), err),
			})
			continue
		}
		for _, id := range chunkIDs {
			if err := ix.vectors.Delete(ctx, id); err != nil {
				logger.Warn("vector_remove_failed", "path", path, "chunk_id", id, "error", err)
				summary.Failed = append(summary.Failed, DocumentFailure{
					Path:  path,
					Stage: FailureVector,
					Err:   lkerrors.New(lkerrors.ErrCodeIndexFailed, fmt.Sprintf("failed to remove vectors for %s", path), err),
				})
				break
			}
		}
		ix.progress(StageClean, i+1, total)
	}
	return nil
}

// stageIndex runs the per-document pipeline for every added or modified file,
// bounded by the configured embedding worker count.
func (ix *Indexer) stageIndex(ctx context.Context, work *plan, summary *Summary) error {
	start := time.Now()
	defer func() {
		summary.Stages = append(summary.Stages, StageTiming{StageIndex, time.Since(start)})
	}()

	total := len(work.index)
	if total == 0 {
		return nil
	}
	ix.progress(StageIndex, 0, total)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Embeddings.Workers)

	for _, f := range work.index {
		g.Go(func() error {
			res, err := ix.processDocument(gctx, f)
			if err != nil {
				return err
			}

			mu.Lock()
			if res.failure != nil {
				summary.Failed = append(summary.Failed, *res.failure)
			} else {
				summary.Indexed++
				summary.Chunks += res.chunks
				summary.Vectors += res.vectors
			}
			done++
			d := done
			mu.Unlock()

			ix.progress(StageIndex, d, total)
			return nil
		})
	}

	return g.Wait()
}

// stageFlush persists the vector index so a crash after the run loses nothing.
func (ix *Indexer) stageFlush(ctx context.Context, summary *Summary) error {
	start := time.Now()
	ix.progress(StageFlush, 0, 1)

	if err := ix.vectors.Flush(ctx); err != nil {
		return lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to persist vector index", err)
	}

	summary.Stages = append(summary.Stages, StageTiming{StageFlush, time.Since(start)})
	ix.progress(StageFlush, 1, 1)
	return nil
}

// docResult is the outcome of one document pipeline.
type docResult struct {
	chunks  int
	vectors int
	failure *DocumentFailure
}

// processDocument runs the pipeline for one file: read, chunk, embed, store,
// vectors. Embedding happens before any store write, so an embedding failure
// leaves the document's prior indexed state intact. Failures after the store
// write clear the fingerprint so the next update retries the document.
func (ix *Indexer) processDocument(ctx context.Context, f scanner.File) (docResult, error) {
	var res docResult

	content, err := f.ReadContent()
	if err != nil {
		ix.logger.Warn("document_read_failed", "path", f.Path, "error", err)
		res.failure = &DocumentFailure{
			Path:  f.Path,
			Stage: FailureRead,
			Err:   lkerrors.ParseError(fmt.Sprintf("failed to read %s", f.Path), err),
		}
		return res, nil
	}

	text := string(content)
	pieces := ix.chunker.Split(text)
	title := chunk.ExtractTitle(text)
	images := chunk.ExtractImages(text, f.AbsPath, ix.cfg.Library.Root)

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}

	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		ix.logger.Warn("document_embed_failed", "path", f.Path, "error", err)
		res.failure = &DocumentFailure{
			Path:  f.Path,
			Stage: FailureEmbed,
			Err:   lkerrors.EmbeddingError(fmt.Sprintf("failed to embed %s", f.Path), err),
		}
		return res, nil
	}
	if len(vecs) != len(pieces) {
		res.failure = &DocumentFailure{
			Path:  f.Path,
			Stage: FailureEmbed,
			Err: lkerrors.EmbeddingError(
				fmt.Sprintf("embedder returned %d vectors for %d chunks of %s", len(vecs), len(pieces), f.Path), nil),
		}
		return res, nil
	}

	chunks := make([]store.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.Chunk{
			Ordinal:   p.Ordinal,
			Content:   p.Content,
			StartChar: p.StartChar,
			EndChar:   p.EndChar,
		}
	}

	doc := &store.Document{
		Path:        f.Path,
		Title:       title,
		Content:     text,
		Fingerprint: f.Fingerprint,
		Size:        f.Size,
		ModifiedAt:  f.ModTime,
		IndexedAt:   time.Now(),
	}

	// Document row and chunk set commit together; a failure rolls both back
	// and leaves the prior state queryable. The prior chunk ids come back so
	// their stale vectors can be dropped.
	oldIDs, newIDs, err := ix.store.ReplaceDocument(ctx, doc, chunks, imageRows(images, pieces))
	if err != nil {
		res.failure = ix.storeFailure(f.Path, fmt.Sprintf("failed to store %s", f.Path), err)
		return res, nil
	}
	docID := doc.ID

	for _, id := range oldIDs {
		if err := ix.vectors.Delete(ctx, id); err != nil {
			ix.clearFingerprint(ctx, docID, f.Path)
			res.failure = ix.vectorFailure(f.Path, fmt.Sprintf("failed to delete stale vector %d", id), err)
			return res, nil
		}
	}
	for i, id := range newIDs {
		if err := ix.vectors.Upsert(ctx, id, vecs[i]); err != nil {
			var mismatch store.ErrDimensionMismatch
			if errors.As(err, &mismatch) {
				// Wrong-size vectors would fail for every document.
				return res, lkerrors.New(lkerrors.ErrCodeDimensionMismatch, mismatch.Error(), err)
			}
			ix.clearFingerprint(ctx, docID, f.Path)
			res.failure = ix.vectorFailure(f.Path, fmt.Sprintf("failed to store vector for chunk %d", id), err)
			return res, nil
		}
	}

	res.chunks = len(newIDs)
	res.vectors = len(newIDs)
	return res, nil
}

func (ix *Indexer) storeFailure(path, msg string, err error) *DocumentFailure {
	ix.logger.Warn("document_store_failed", "path", path, "error", err)
	return &DocumentFailure{
		Path:  path,
		Stage: FailureStore,
		Err:   lkerrors.New(lkerrors.ErrCodeIndexFailed, msg, err),
	}
}

func (ix *Indexer) vectorFailure(path, msg string, err error) *DocumentFailure {
	ix.logger.Warn("document_vector_failed", "path", path, "error", err)
	return &DocumentFailure{
		Path:  path,
		Stage: FailureVector,
		Err:   lkerrors.New(lkerrors.ErrCodeIndexFailed, msg, err),
	}
}

// clearFingerprint marks a document dirty after a partial failure so the
// next update reprocesses it regardless of file changes.
func (ix *Indexer) clearFingerprint(ctx context.Context, docID int64, path string) {
	if err := ix.store.ClearFingerprint(ctx, docID); err != nil {
		ix.logger.Error("fingerprint_clear_failed", "path", path, "doc_id", docID, "error", err)
	}
}

// imageRows converts extracted image references into store rows, scoping
// each reference to the chunk whose character range contains it.
func imageRows(refs []chunk.ImageRef, pieces []chunk.Piece) []store.Image {
	if len(refs) == 0 {
		return nil
	}
	rows := make([]store.Image, len(refs))
	for i, r := range refs {
		rows[i] = store.Image{
			ChunkOrdinal: ordinalAt(pieces, r.CharOffset),
			SourcePath:   r.SourcePath,
			ResolvedPath: r.ResolvedPath,
			AltText:      r.AltText,
		}
	}
	return rows
}

// ordinalAt returns the ordinal of the first piece whose half-open character
// range contains offset, or -1 when none does. Overlapping pieces can both
// contain an offset; the lower ordinal wins.
func ordinalAt(pieces []chunk.Piece, offset int) int {
	for _, p := range pieces {
		if offset >= p.StartChar && offset < p.EndChar {
			return p.Ordinal
		}
	}
	return -1
}

func sortByPath(files []scanner.File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
}
