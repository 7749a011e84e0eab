package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/ui"
)

func newRebuildCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "rebuild [path]",
		Short: "Index the library from scratch",
		Long: `Wipe the document store and vector index, then index every document
under the library root.

Use this for the first index of a library, after changing the embedding
model or vector backend, or when 'lorekeep doctor' reports the index and
vectors have drifted apart. For day-to-day refreshes 'lorekeep update' is
much faster.`,
		Example: `  # Rebuild the library containing the working directory
  lorekeep rebuild

  # Rebuild a specific library
  lorekeep rebuild ~/notes

  # Plain progress output (for scripts and logs)
  lorekeep rebuild --no-tui`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndexRun(ctx, cmd, index.ModeRebuild, argPath(args), noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress display")

	return cmd
}

// argPath returns the optional positional library path.
func argPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// runIndexRun executes one indexing run with progress rendering. Shared by
// the rebuild and update commands; the indexer itself serializes concurrent
// runs through the library lock file.
func runIndexRun(ctx context.Context, cmd *cobra.Command, mode index.Mode, path string, noTUI bool) error {
	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}
	if mode == index.ModeUpdate {
		if err := requireIndex(cfg); err != nil {
			return err
		}
	}

	logger, cleanup := setupLogging(cfg)
	defer cleanup()

	// The embedder probes its provider at construction, so an unreachable
	// Ollama fails here with a suggestion instead of failing per document.
	sess, err := openSession(ctx, cfg, logger, mode == index.ModeRebuild)
	if err != nil {
		return err
	}
	defer sess.Close()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithLibraryDir(cfg.Library.Root)))
	if err := renderer.Start(ctx); err != nil {
		logger.Warn("failed to start progress renderer", "error", err)
	}
	defer func() { _ = renderer.Stop() }()

	indexer, err := sess.newIndexer(func(stage string, done, total int) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageFromName(stage),
			Current: done,
			Total:   total,
		})
	})
	if err != nil {
		return err
	}

	var summary *index.Summary
	if mode == index.ModeRebuild {
		summary, err = indexer.Rebuild(ctx)
	} else {
		summary, err = indexer.Update(ctx)
	}
	if err != nil {
		return err
	}

	for _, f := range summary.Failed {
		renderer.AddError(ui.ErrorEvent{File: f.Path, Err: f.Err})
	}
	renderer.Complete(completionStats(cfg, sess.embedder, summary))

	return nil
}

// completionStats maps a run summary onto the renderer's display model.
func completionStats(cfg *config.Config, embedder embed.Embedder, summary *index.Summary) ui.CompletionStats {
	stats := ui.CompletionStats{
		Mode:      string(summary.Mode),
		Documents: summary.Indexed,
		Chunks:    summary.Chunks,
		Added:     summary.Added,
		Modified:  summary.Modified,
		Removed:   summary.Removed,
		Unchanged: summary.Unchanged,
		Duration:  summary.Duration,
		Errors:    len(summary.Failed),
		Warnings:  summary.FilesSkipped,
		Embedder: ui.EmbedderInfo{
			Provider:   cfg.Embeddings.Provider,
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		},
	}

	for _, st := range summary.Stages {
		switch st.Stage {
		case index.StageScan:
			stats.Stages.Scan = st.Duration
		case index.StageClean:
			stats.Stages.Clean = st.Duration
		case index.StageIndex:
			stats.Stages.Index = st.Duration
		case index.StageFlush:
			stats.Stages.Flush = st.Duration
		}
	}

	return stats
}
