// Package scanner walks a library tree and produces a point-in-time
// snapshot of its markdown documents. The snapshot carries content
// fingerprints but not contents; the indexer diffs fingerprints against the
// store and reads only the files it actually needs to re-index.
package scanner

import (
	"fmt"
	"os"
	"time"
)

// File describes one document found during a scan.
type File struct {
	// Path is relative to the library root, slash-separated. It is the
	// stable document identity across scans and platforms.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the file modification time.
	ModTime time.Time

	// Fingerprint is the SHA-256 hex digest of the file content.
	Fingerprint string
}

// ReadContent reads the file's current content from disk. A file modified
// between scan and read is picked up by the next incremental run.
func (f File) ReadContent() ([]byte, error) {
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return data, nil
}

// SkipReason explains why a file was left out of a snapshot.
type SkipReason string

const (
	// SkipTooLarge marks files over the configured size cap.
	SkipTooLarge SkipReason = "too_large"

	// SkipUnreadable marks files that could not be opened or read.
	SkipUnreadable SkipReason = "unreadable"
)

// SkippedFile records a document that was seen but not snapshotted.
type SkippedFile struct {
	Path   string
	Reason SkipReason
	Err    error
}

// Snapshot is the result of scanning a library tree.
type Snapshot struct {
	// Root is the absolute library root the scan ran against.
	Root string

	// Files maps relative paths to their scan records.
	Files map[string]File

	// Skipped lists files excluded by size or read errors. Files excluded
	// by extension, directory, or ignore rules are not recorded.
	Skipped []SkippedFile

	// ScannedAt is when the scan started.
	ScannedAt time.Time
}
