package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// StatusInfo is the display model for the status command. The CLI fills it
// from the search engine's status report plus on-disk sizes.
type StatusInfo struct {
	Version     string    `json:"version"`
	LibraryRoot string    `json:"library_root"`
	Documents   int       `json:"documents"`
	Chunks      int       `json:"chunks"`
	Images      int       `json:"images"`
	LastIndexed time.Time `json:"last_indexed"`

	DatabaseSize int64 `json:"database_size_bytes"`
	VectorSize   int64 `json:"vector_size_bytes"`
	TotalSize    int64 `json:"total_size_bytes"`

	EmbedderProvider string `json:"embedder_provider"`
	EmbedderModel    string `json:"embedder_model"`
	EmbedderStatus   string `json:"embedder_status"`
	Dimensions       int    `json:"dimensions"`

	VectorBackend string `json:"vector_backend"`
	VectorCount   int    `json:"vector_count"`

	Healthy  bool     `json:"healthy"`
	Problems []string `json:"problems,omitempty"`
}

// StatusRenderer writes StatusInfo in human or JSON form.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer returns a renderer writing to out.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor || DetectNoColor())}
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// Render writes a human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	s := r.styles
	var b strings.Builder

	b.WriteString(s.Header.Render("Lorekeep Status"))
	b.WriteString("\n")
	if info.Version != "" {
		b.WriteString(s.Label.Render("  version:      ") + info.Version + "\n")
	}
	if info.LibraryRoot != "" {
		b.WriteString(s.Label.Render("  library:      ") + info.LibraryRoot + "\n")
	}
	b.WriteString("\n")

	b.WriteString(s.Header.Render("Index") + "\n")
	b.WriteString(s.Label.Render("  documents:    ") + fmt.Sprintf("%d", info.Documents) + "\n")
	b.WriteString(s.Label.Render("  chunks:       ") + fmt.Sprintf("%d", info.Chunks) + "\n")
	if info.Images > 0 {
		b.WriteString(s.Label.Render("  images:       ") + fmt.Sprintf("%d", info.Images) + "\n")
	}
	b.WriteString(s.Label.Render("  last indexed: ") + formatTimeAgo(info.LastIndexed) + "\n")
	b.WriteString(s.Label.Render("  on disk:      ") + fmt.Sprintf("%s (db %s, vectors %s)",
		FormatBytes(info.TotalSize), FormatBytes(info.DatabaseSize), FormatBytes(info.VectorSize)) + "\n")
	b.WriteString("\n")

	b.WriteString(s.Header.Render("Embeddings") + "\n")
	b.WriteString(s.Label.Render("  provider:     ") + info.EmbedderProvider + "\n")
	b.WriteString(s.Label.Render("  model:        ") + info.EmbedderModel + "\n")
	b.WriteString(s.Label.Render("  dimensions:   ") + fmt.Sprintf("%d", info.Dimensions) + "\n")
	b.WriteString(s.Label.Render("  status:       ") + r.renderState(info.EmbedderStatus) + "\n")
	b.WriteString("\n")

	b.WriteString(s.Header.Render("Vector Index") + "\n")
	b.WriteString(s.Label.Render("  backend:      ") + info.VectorBackend + "\n")
	b.WriteString(s.Label.Render("  vectors:      ") + fmt.Sprintf("%d", info.VectorCount) + "\n")
	b.WriteString("\n")

	if info.Healthy {
		b.WriteString(s.Success.Render("Healthy") + "\n")
	} else {
		b.WriteString(s.Error.Render("Unhealthy") + "\n")
		for _, p := range info.Problems {
			b.WriteString(s.Error.Render("  - "+p) + "\n")
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// renderState colors a component state word.
func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "ready", "running":
		return r.styles.Success.Render(state)
	case "offline", "stopped":
		return r.styles.Warning.Render(state)
	case "error":
		return r.styles.Error.Render(state)
	default:
		return state
	}
}

// formatTimeAgo renders a timestamp relative to now ("3m ago"), falling
// back to the date for anything older than a week.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
