package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
)

// CheckStatus is the outcome of a single doctor check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the display form of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its lowercase name.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// CheckResult holds the outcome of one check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs doctor checks against a configured library. Checks open the
// index read-only and close it again; the checker holds no state between
// runs.
type Checker struct {
	cfg      *config.Config
	embedder embed.Embedder // injected for tests; built from cfg when nil
	verbose  bool
	output   io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose includes check details in printed output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// WithEmbedder supplies a pre-built embedder instead of constructing one
// from the config.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *Checker) { c.embedder = e }
}

// New creates a Checker for the given library configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check and returns the results in display order.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	results := []CheckResult{
		c.CheckDataDir(),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
		c.CheckDatabase(ctx),
	}

	emb, embErr := c.resolveEmbedder(ctx)
	if emb != nil && c.embedder == nil {
		defer emb.Close()
	}

	results = append(results,
		c.CheckEmbedder(ctx, emb, embErr),
		c.CheckDimensions(ctx, emb),
		c.CheckConsistency(ctx, emb),
	)
	return results
}

// resolveEmbedder returns the injected embedder or builds one from the
// config. Construction failure is not fatal here; CheckEmbedder reports it.
func (c *Checker) resolveEmbedder(ctx context.Context) (embed.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	return embed.New(ctx, c.cfg)
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus reduces the results to one word: ready,
// ready_with_warnings, or failed.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes a human-readable report to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	fmt.Fprintln(c.output, "Lorekeep Doctor")
	fmt.Fprintln(c.output, "===============")
	fmt.Fprintln(c.output)

	for _, r := range results {
		fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	fmt.Fprintln(c.output)
	fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errors = append(errors, r.Name+": "+r.Message)
		case r.Status == StatusWarn || r.Status == StatusFail:
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// PrintJSON writes the report as indented JSON to the configured output.
func (c *Checker) PrintJSON(results []CheckResult) error {
	report := struct {
		Status string        `json:"status"`
		Checks []CheckResult `json:"checks"`
	}{
		Status: c.SummaryStatus(results),
		Checks: results,
	}
	enc := json.NewEncoder(c.output)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// CheckDataDir verifies the data directory (or, before first index, the
// library root) is writable.
func (c *Checker) CheckDataDir() CheckResult {
	result := CheckResult{
		Name:     "data_dir",
		Required: true,
	}

	dir := c.cfg.DataDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Nothing indexed yet; the root must accept the data directory.
		dir = c.cfg.Library.Root
	}

	probe := filepath.Join(dir, ".lorekeep-doctor-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		return result
	}
	f.Close()
	os.Remove(probe)

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s is writable", dir)
	return result
}
