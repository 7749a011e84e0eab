package mcp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/index"
)

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", formatTime(time.Time{}))

	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, loc)
	assert.Equal(t, "2026-03-14T13:09:26Z", formatTime(ts))
}

func TestToSummaryOutput(t *testing.T) {
	sum := &index.Summary{
		RunID:        "run-1",
		Mode:         index.ModeUpdate,
		Duration:     1500 * time.Millisecond,
		FilesScanned: 12,
		FilesSkipped: 2,
		Added:        3,
		Modified:     1,
		Removed:      1,
		Unchanged:    7,
		Indexed:      4,
		Chunks:       19,
		Vectors:      19,
		Failed: []index.DocumentFailure{
			{Path: "bad.md", Stage: index.FailureEmbed, Err: errors.New("backend hiccup")},
		},
	}

	out := toSummaryOutput(sum)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "update", out.Mode)
	assert.Equal(t, int64(1500), out.DurationMs)
	assert.Equal(t, 12, out.FilesScanned)
	assert.Equal(t, 4, out.Indexed)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "bad.md", out.Failures[0].Path)
	assert.Equal(t, index.FailureEmbed, out.Failures[0].Stage)
	assert.Equal(t, "backend hiccup", out.Failures[0].Error)
}
