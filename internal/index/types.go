// Package index drives indexing runs: scanning the library, diffing it
// against the document store, and pushing changed documents through the
// chunk-embed-store pipeline. Runs are single-writer per library, enforced
// by a cross-process lock.
package index

import "time"

// Mode selects how a run treats existing indexed state.
type Mode string

const (
	// ModeRebuild wipes the document store and vector index, then indexes
	// every scanned file from scratch.
	ModeRebuild Mode = "rebuild"

	// ModeUpdate diffs the scanned tree against the store by fingerprint and
	// only touches added, modified, and removed documents.
	ModeUpdate Mode = "update"
)

// Stage names reported through ProgressFunc, in run order.
const (
	StageScan  = "scan"
	StageClean = "clean"
	StageIndex = "index"
	StageFlush = "flush"
)

// Pipeline stages recorded on DocumentFailure.
const (
	FailureRead   = "read"
	FailureEmbed  = "embed"
	FailureStore  = "store"
	FailureVector = "vector"
)

// ProgressFunc receives progress updates during a run: done units completed
// out of total for the named stage. Called inline from worker goroutines, so
// implementations must be fast and safe for concurrent use.
type ProgressFunc func(stage string, done, total int)

// DocumentFailure records a single document that could not be processed.
// Document failures never abort the run; only backend-level errors do.
type DocumentFailure struct {
	// Path is the document's library-relative path.
	Path string

	// Stage is the pipeline stage that failed: read, embed, store, or vector.
	Stage string

	// Err is the underlying error.
	Err error
}

// StageTiming records wall-clock duration for one run stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Summary reports the outcome of one indexing run.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string

	// Mode is the run mode, rebuild or update.
	Mode Mode

	// StartedAt and Duration bracket the run.
	StartedAt time.Time
	Duration  time.Duration

	// FilesScanned counts documents found on disk; FilesSkipped counts files
	// the scanner rejected (too large, unreadable).
	FilesScanned int
	FilesSkipped int

	// Diff outcome relative to the stored state. A rebuild reports every
	// scanned file as Added.
	Added     int
	Modified  int
	Removed   int
	Unchanged int

	// Indexed counts documents committed this run; Chunks and Vectors count
	// what was produced for them.
	Indexed int
	Chunks  int
	Vectors int

	// Failed lists documents that could not be processed.
	Failed []DocumentFailure

	// Stages records per-stage wall-clock timings.
	Stages []StageTiming
}

// HasFailures reports whether any document failed during the run.
func (s *Summary) HasFailures() bool {
	return len(s.Failed) > 0
}
