package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/internal/ui"
	"github.com/lorekeep/lorekeep/pkg/version"
)

// statusProbeTimeout bounds the embedding provider reachability check so an
// unresponsive host cannot stall the status command.
const statusProbeTimeout = 5 * time.Second

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show index health and statistics",
		Long: `Display the state of the library index:
  - document, chunk, and image counts
  - last indexing time and on-disk sizes
  - vector backend, dimensions, and vector count
  - embedding provider reachability
  - health problems, if any

The embedding provider is probed but never required; status works while
Ollama is down.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, argPath(args), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, path string, jsonOutput bool) error {
	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}
	if err := requireIndex(cfg); err != nil {
		return err
	}

	info, err := collectStatus(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// collectStatus assembles the status report from the store, the persisted
// vector index, and a best-effort embedder probe. Only the store is
// required; everything else degrades into the problems list.
func collectStatus(ctx context.Context, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		Version:          version.Short(),
		LibraryRoot:      cfg.Library.Root,
		VectorBackend:    cfg.Vector.Backend,
		EmbedderProvider: cfg.Embeddings.Provider,
		EmbedderModel:    cfg.Embeddings.Model,
		EmbedderStatus:   "offline",
		Healthy:          true,
	}

	// On-disk sizes. The SQLite vector backend shares the library database,
	// so don't count that file twice.
	dbPath := cfg.DatabasePath()
	vecPath := store.VectorIndexPath(cfg.DataDir(), cfg.Vector.Backend)
	info.DatabaseSize = fileSize(dbPath)
	if vecPath != dbPath {
		info.VectorSize = fileSize(vecPath)
	}
	info.TotalSize = info.DatabaseSize + info.VectorSize

	st, err := store.Open(dbPath)
	if err != nil {
		return info, fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read store stats: %w", err)
	}
	info.Documents = stats.Documents
	info.Chunks = stats.Chunks
	info.Images = stats.Images
	info.LastIndexed = stats.LastIndexed

	if err := st.CheckIntegrity(ctx); err != nil {
		info.Healthy = false
		info.Problems = append(info.Problems, fmt.Sprintf("store integrity: %v", err))
	}

	// The vector index is sized from its own persisted metadata rather than
	// the embedder, so this works with the provider unreachable.
	dims, err := store.ReadVectorIndexDimensions(cfg.DataDir(), cfg.Vector.Backend)
	switch {
	case err != nil:
		info.Healthy = false
		info.Problems = append(info.Problems, fmt.Sprintf("vector index: %v", err))
	case dims > 0:
		vectors, err := store.NewVectorIndex(cfg.Vector.Backend, cfg.DataDir(), dims)
		if err != nil {
			info.Healthy = false
			info.Problems = append(info.Problems, fmt.Sprintf("vector index: %v", err))
		} else {
			info.Dimensions = vectors.Dimensions()
			info.VectorCount = vectors.Count()
			_ = vectors.Close()
		}
	}

	if info.Chunks != info.VectorCount {
		info.Healthy = false
		info.Problems = append(info.Problems,
			fmt.Sprintf("chunk count %d does not match vector count %d (run 'lorekeep rebuild')",
				info.Chunks, info.VectorCount))
	}

	// Embedder reachability is reported, never fatal.
	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()
	if emb, err := embed.New(probeCtx, cfg); err == nil {
		info.EmbedderModel = emb.ModelName()
		if emb.Available(probeCtx) {
			info.EmbedderStatus = "ready"
		}
		_ = emb.Close()
	}

	return info, nil
}

// fileSize returns the size of a file in bytes, zero when absent.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
