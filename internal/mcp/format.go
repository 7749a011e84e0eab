package mcp

import (
	"time"

	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/repos"
	"github.com/lorekeep/lorekeep/internal/search"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/pkg/version"
)

func toSearchOutput(hits []search.Hit) SearchOutput {
	out := SearchOutput{
		Hits:  make([]HitOutput, 0, len(hits)),
		Count: len(hits),
	}
	for _, h := range hits {
		out.Hits = append(out.Hits, HitOutput{
			ChunkID:  h.ChunkID,
			Distance: float64(h.Distance),
			Path:     h.DocumentPath,
			Title:    h.DocumentTitle,
			Ordinal:  h.Ordinal,
			Content:  h.Content,
		})
	}
	return out
}

func toDocumentOutput(doc *store.Document) DocumentOutput {
	return DocumentOutput{
		Path:        doc.Path,
		Title:       doc.Title,
		Content:     doc.Content,
		Fingerprint: doc.Fingerprint,
		SizeBytes:   doc.Size,
		ModifiedAt:  formatTime(doc.ModifiedAt),
		IndexedAt:   formatTime(doc.IndexedAt),
	}
}

func toSummaryOutput(sum *index.Summary) SummaryOutput {
	out := SummaryOutput{
		RunID:        sum.RunID,
		Mode:         string(sum.Mode),
		DurationMs:   sum.Duration.Milliseconds(),
		FilesScanned: sum.FilesScanned,
		FilesSkipped: sum.FilesSkipped,
		Added:        sum.Added,
		Modified:     sum.Modified,
		Removed:      sum.Removed,
		Unchanged:    sum.Unchanged,
		Indexed:      sum.Indexed,
		Chunks:       sum.Chunks,
		Vectors:      sum.Vectors,
	}
	for _, f := range sum.Failed {
		out.Failures = append(out.Failures, FailureOutput{
			Path:  f.Path,
			Stage: f.Stage,
			Error: f.Err.Error(),
		})
	}
	return out
}

func toPullAllOutput(results []repos.PullResult) PullAllOutput {
	out := PullAllOutput{Results: make([]PullResultOutput, 0, len(results))}
	for _, r := range results {
		pr := PullResultOutput{
			Name:       r.Name,
			Path:       r.Path,
			Updated:    r.Updated,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			pr.Error = r.Err.Error()
		}
		out.Results = append(out.Results, pr)
	}
	return out
}

func toStatusOutput(st *search.Status) StatusOutput {
	out := StatusOutput{
		Version:           version.Short(),
		Documents:         st.Documents,
		Chunks:            st.Chunks,
		Images:            st.Images,
		VectorBackend:     st.VectorBackend,
		VectorCount:       st.VectorCount,
		VectorDimensions:  st.VectorDimensions,
		EmbedderModel:     st.EmbedderModel,
		EmbedderAvailable: st.EmbedderAvailable,
		Healthy:           st.Healthy,
		Problems:          st.Problems,
	}
	if !st.LastIndexed.IsZero() {
		out.LastIndexed = formatTime(st.LastIndexed)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
