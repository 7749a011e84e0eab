// Package ui provides terminal progress and status rendering for indexing
// runs: a plain renderer for pipes and CI, and a bubbletea TUI for
// interactive terminals.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies a phase of an indexing run for display.
type Stage int

const (
	// StageScanning walks the library tree.
	StageScanning Stage = iota
	// StageCleaning removes deleted and superseded documents.
	StageCleaning
	// StageIndexing chunks, embeds, and stores changed documents.
	StageIndexing
	// StageFlushing persists the vector index.
	StageFlushing
	// StageComplete marks the run as finished.
	StageComplete
)

// StageFromName maps an index run's stage name to its display stage.
func StageFromName(name string) Stage {
	switch name {
	case "scan":
		return StageScanning
	case "clean":
		return StageCleaning
	case "index":
		return StageIndexing
	case "flush":
		return StageFlushing
	default:
		return StageComplete
	}
}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageCleaning:
		return "Cleaning"
	case StageIndexing:
		return "Indexing"
	case StageFlushing:
		return "Flushing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageCleaning:
		return "CLEAN"
	case StageIndexing:
		return "INDEX"
	case StageFlushing:
		return "FLUSH"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update within a stage.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is a per-document failure surfaced during a run.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings is the wall-clock breakdown of a run.
type StageTimings struct {
	Scan  time.Duration
	Clean time.Duration
	Index time.Duration
	Flush time.Duration
}

// EmbedderInfo identifies the embedding backend a run used.
type EmbedderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// CompletionStats is the final summary a renderer displays.
type CompletionStats struct {
	Mode      string
	Documents int
	Chunks    int
	Added     int
	Modified  int
	Removed   int
	Unchanged int
	Duration  time.Duration
	Errors    int
	Warnings  int
	Stages    StageTimings
	Embedder  EmbedderInfo
}

// Renderer displays indexing progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates the progress display.
	UpdateProgress(event ProgressEvent)

	// AddError records a failure for display.
	AddError(event ErrorEvent)

	// Complete renders the final summary.
	Complete(stats CompletionStats)

	// Stop tears the renderer down. Safe to call twice.
	Stop() error
}

// Config configures renderer selection and appearance.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	LibraryDir string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces the plain text renderer.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithLibraryDir sets the library path shown in the header.
func WithLibraryDir(dir string) ConfigOption {
	return func(c *Config) { c.LibraryDir = dir }
}

// NewConfig creates a Config for the given output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a renderer for the environment: the TUI for interactive
// terminals, plain text for pipes, CI, or when forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process runs in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
