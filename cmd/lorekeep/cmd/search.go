package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/output"
	"github.com/lorekeep/lorekeep/internal/search"
)

// snippetLength is the truncation point for chunk text in list output.
const snippetLength = 160

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		threshold  float64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the library semantically",
		Long: `Embed the query and return the closest chunks from the vector index,
hydrated with their document path and title. Results are ordered by
ascending cosine distance; lower is more similar.

The query goes to the configured embedding provider, so searching against
an Ollama- or OpenAI-built index needs that provider reachable.`,
		Example: `  lorekeep search "deployment runbook"
  lorekeep search "how do retries work" --limit 5
  lorekeep search "error budgets" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, limit, threshold, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of hits (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Drop hits with cosine distance above this (default from config, negative disables)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output hits as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int, threshold float64, jsonOutput bool) error {
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

	hits, err := engine.Search(ctx, query, search.Options{
		Limit:             limit,
		DistanceThreshold: threshold,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(searchResponse(query, hits))
	}

	renderHits(out, query, hits)
	return nil
}

// searchJSON is the machine-readable shape of a search response.
type searchJSON struct {
	Query string          `json:"query"`
	Count int             `json:"count"`
	Hits  []searchJSONHit `json:"hits"`
}

type searchJSONHit struct {
	ChunkID  int64   `json:"chunk_id"`
	Distance float32 `json:"distance"`
	Path     string  `json:"path"`
	Title    string  `json:"title,omitempty"`
	Ordinal  int     `json:"ordinal"`
	Content  string  `json:"content"`
}

func searchResponse(query string, hits []search.Hit) searchJSON {
	resp := searchJSON{Query: query, Count: len(hits), Hits: make([]searchJSONHit, 0, len(hits))}
	for _, h := range hits {
		resp.Hits = append(resp.Hits, searchJSONHit{
			ChunkID:  h.ChunkID,
			Distance: h.Distance,
			Path:     h.DocumentPath,
			Title:    h.DocumentTitle,
			Ordinal:  h.Ordinal,
			Content:  h.Content,
		})
	}
	return resp
}

func renderHits(out *output.Writer, query string, hits []search.Hit) {
	if len(hits) == 0 {
		out.Plainf("no results for %q", query)
		return
	}

	out.Plainf("%d results for %q", len(hits), query)
	out.Newline()
	for i, h := range hits {
		title := h.DocumentTitle
		if title == "" {
			title = h.DocumentPath
		}
		out.Plainf("%d. %s", i+1, title)
		out.Plainf("   %s#%d  (distance %.3f, chunk %d)", h.DocumentPath, h.Ordinal, h.Distance, h.ChunkID)
		out.Plainf("   %s", snippet(h.Content))
		out.Newline()
	}
	out.Plainf("fetch a full document with 'lorekeep fetch <path>' or 'lorekeep fetch --chunk <id>'")
}

// snippet collapses whitespace and truncates chunk text for list display.
func snippet(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= snippetLength {
		return collapsed
	}
	return fmt.Sprintf("%s…", string(runes[:snippetLength]))
}
