package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress suitable for pipes, CI logs,
// and terminals without TTY support. Every update is a complete line, so
// output remains readable when interleaved with other log streams.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer

	lastStage   Stage
	lastPercent int
	errors      []ErrorEvent
}

var _ Renderer = (*PlainRenderer)(nil)

// NewPlainRenderer returns a renderer that writes plain lines to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:         cfg.Output,
		lastStage:   StageComplete,
		lastPercent: -1,
	}
}

// Start resets per-run state. The plain renderer has no background work.
func (r *PlainRenderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastStage = StageComplete
	r.lastPercent = -1
	r.errors = nil
	return nil
}

// UpdateProgress prints a line when the stage changes or progress advances
// by at least ten percent, keeping scrollback short on large libraries.
func (r *PlainRenderer) UpdateProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	percent := 0
	if ev.Total > 0 {
		percent = ev.Current * 100 / ev.Total
	}

	stageChanged := ev.Stage != r.lastStage
	bucket := percent / 10
	lastBucket := r.lastPercent / 10
	if !stageChanged && bucket == lastBucket && ev.Message == "" {
		return
	}
	r.lastStage = ev.Stage
	r.lastPercent = percent

	line := fmt.Sprintf("[%s] %d/%d", ev.Stage.Icon(), ev.Current, ev.Total)
	if ev.Message != "" {
		line += " - " + ev.Message
	} else if ev.CurrentFile != "" {
		line += " - " + ev.CurrentFile
	}
	fmt.Fprintln(r.out, line)
}

// AddError records and reports a per-document failure.
func (r *PlainRenderer) AddError(ev ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ev)
	label := "error"
	if ev.IsWarn {
		label = "warning"
	}
	fmt.Fprintf(r.out, "[%s] %s: %v\n", label, ev.File, ev.Err)
}

// Complete prints the run summary.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Indexed %d documents (%d chunks) in %s\n",
		stats.Documents, stats.Chunks, formatDuration(stats.Duration))

	if stats.Mode == "update" {
		fmt.Fprintf(r.out, "  added %d, modified %d, removed %d, unchanged %d\n",
			stats.Added, stats.Modified, stats.Removed, stats.Unchanged)
	}

	if !stats.Stages.isZero() {
		fmt.Fprintf(r.out, "  scan %s | clean %s | index %s | flush %s\n",
			formatDuration(stats.Stages.Scan),
			formatDuration(stats.Stages.Clean),
			formatDuration(stats.Stages.Index),
			formatDuration(stats.Stages.Flush))
	}

	if stats.Embedder.Model != "" {
		fmt.Fprintf(r.out, "  embeddings: %s/%s (%d dims)\n",
			stats.Embedder.Provider, stats.Embedder.Model, stats.Embedder.Dimensions)
	}

	if stats.Errors > 0 || stats.Warnings > 0 {
		fmt.Fprintf(r.out, "  %d errors, %d warnings\n", stats.Errors, stats.Warnings)
	}
}

// Stop is a no-op for the plain renderer; nothing runs in the background.
func (r *PlainRenderer) Stop() error { return nil }

func (t StageTimings) isZero() bool {
	return t.Scan == 0 && t.Clean == 0 && t.Index == 0 && t.Flush == 0
}

// formatDuration renders a duration with sensible precision for humans:
// milliseconds below a second, tenths of a second below a minute, then
// minutes and seconds.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%ds", m, s)
	}
}
