package cmd

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCmd_ByPath(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	out, err := runCommand(t, "fetch", "notes/beacons.md")
	require.NoError(t, err, "output:\n%s", out)

	assert.Contains(t, out, "# Harbor Beacons")
	assert.Contains(t, out, "lamp oil consumption")
}

func TestFetchCmd_UnknownPath(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	_, err := runCommand(t, "fetch", "notes/missing.md")
	require.Error(t, err)
}

func TestFetchCmd_RequiresTarget(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	_, err := runCommand(t, "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide a document path")
}

func TestFetchCmd_RejectsPathAndChunk(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	_, err := runCommand(t, "fetch", "notes/beacons.md", "--chunk", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestFetchCmd_JSONOutput(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	out, err := runCommand(t, "fetch", "notes/tides.md", "--json")
	require.NoError(t, err)

	var doc documentJSON
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "notes/tides.md", doc.Path)
	assert.Equal(t, "Tide Tables", doc.Title)
	assert.Contains(t, doc.Content, "Spring tides peak twice a month.")
	assert.Positive(t, doc.Size)
	assert.False(t, doc.IndexedAt.IsZero())
}

func TestFetchCmd_ByChunkID(t *testing.T) {
	root := newLibrary(t, sampleDocs())
	rebuildLibrary(t, root)
	chdir(t, root)

	searchOut, err := runCommand(t, "search", "harbor beacons", "--threshold=-1", "--json")
	require.NoError(t, err)

	var resp searchJSON
	require.NoError(t, json.Unmarshal([]byte(searchOut), &resp))
	require.NotEmpty(t, resp.Hits)

	var chunkID int64
	for _, h := range resp.Hits {
		if h.Path == "notes/beacons.md" {
			chunkID = h.ChunkID
			break
		}
	}
	require.NotZero(t, chunkID, "expected a hit from notes/beacons.md")

	out, err := runCommand(t, "fetch", "--chunk", strconv.FormatInt(chunkID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "# Harbor Beacons")
}
