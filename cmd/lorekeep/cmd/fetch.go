package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/output"
	"github.com/lorekeep/lorekeep/internal/store"
)

func newFetchCmd() *cobra.Command {
	var (
		chunkID    int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [path]",
		Short: "Print a document from the index",
		Long: `Print the full text of an indexed document, addressed either by its
library-relative path or, with --chunk, by a chunk id from a search hit.

The text comes from the index, not the filesystem, so it reflects the
last indexing run.`,
		Example: `  lorekeep fetch docs/ops/runbook.md

  # Fetch the document behind a search hit
  lorekeep fetch --chunk 42

  # Full metadata as JSON
  lorekeep fetch docs/ops/runbook.md --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := argPath(args)
			if path == "" && chunkID == 0 {
				return fmt.Errorf("provide a document path or --chunk <id>")
			}
			if path != "" && chunkID != 0 {
				return fmt.Errorf("provide either a document path or --chunk, not both")
			}
			return runFetch(cmd, path, chunkID, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&chunkID, "chunk", 0, "Fetch the document owning this chunk id")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output document with metadata as JSON")

	return cmd
}

func runFetch(cmd *cobra.Command, path string, chunkID int64, jsonOutput bool) error {
	ctx := cmd.Context()

	cfg, err := loadLibrary("")
	if err != nil {
		return err
	}
	if err := requireIndex(cfg); err != nil {
		return err
	}

	logger, cleanup := setupLogging(cfg)
	defer cleanup()

	sess, err := openSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	engine, err := sess.newEngine()
	if err != nil {
		return err
	}

	var doc *store.Document
	if chunkID != 0 {
		doc, err = engine.FetchByHit(ctx, chunkID)
	} else {
		doc, err = engine.FetchDocument(ctx, path)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		out := output.New(cmd.OutOrStdout())
		return out.JSON(documentJSON{
			Path:      doc.Path,
			Title:     doc.Title,
			Content:   doc.Content,
			Size:      doc.Size,
			IndexedAt: doc.IndexedAt,
		})
	}

	// Raw content only, so output pipes cleanly into pagers and other tools.
	content := doc.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), content)
	return err
}

type documentJSON struct {
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Size      int64     `json:"size_bytes"`
	IndexedAt time.Time `json:"indexed_at"`
}
