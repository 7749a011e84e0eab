package chunk

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle_H1Heading(t *testing.T) {
	content := "# My Document\n\nBody text.\n"
	assert.Equal(t, "My Document", ExtractTitle(content))
}

func TestExtractTitle_H1NotOnFirstLine(t *testing.T) {
	// The first H1 anywhere in the document wins over the first line.
	content := "intro paragraph\n\n# Real Title\n\nmore text\n"
	assert.Equal(t, "Real Title", ExtractTitle(content))
}

func TestExtractTitle_TrimsHeadingWhitespace(t *testing.T) {
	assert.Equal(t, "Spaced", ExtractTitle("#   Spaced   \n"))
}

func TestExtractTitle_FallsBackToFirstNonEmptyLine(t *testing.T) {
	content := "\n\n  The opening line  \nsecond line\n"
	assert.Equal(t, "The opening line", ExtractTitle(content))
}

func TestExtractTitle_TruncatesLongFallback(t *testing.T) {
	// Truncation counts runes, not bytes.
	content := strings.Repeat("é", 150)
	title := ExtractTitle(content)
	assert.Equal(t, strings.Repeat("é", 100), title)
	assert.Equal(t, 100, len([]rune(title)))
}

func TestExtractTitle_EmptyDocument(t *testing.T) {
	assert.Equal(t, "Untitled", ExtractTitle(""))
	assert.Equal(t, "Untitled", ExtractTitle("\n  \n\t\n"))
}

func TestExtractImages_InlineLocalPath(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "docs", "guide.md")

	images := ExtractImages("![architecture](images/arch.png)", docPath, root)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, "images/arch.png", img.SourcePath)
	assert.Equal(t, "architecture", img.AltText)
	assert.Equal(t, filepath.Join(root, "docs", "images", "arch.png"), img.ResolvedPath)
	assert.Equal(t, 0, img.CharOffset)
	assert.False(t, img.IsRemote())
}

func TestExtractImages_InlineWithTitle(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	images := ExtractImages(`![alt](images/x.png "Caption text")`, docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, "images/x.png", images[0].SourcePath)
	assert.Equal(t, filepath.Join(root, "images", "x.png"), images[0].ResolvedPath)
}

func TestExtractImages_EmptyAltText(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	images := ExtractImages("![](images/x.png)", docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, "", images[0].AltText)
}

func TestExtractImages_RemoteURLsRecordedWithoutResolution(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	content := "![logo](https://example.com/logo.png)\n" +
		"![badge](http://example.com/badge.svg)\n" +
		"![dot](data:image/png;base64,iVBORw0KGgo=)\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 3)

	assert.Equal(t, "https://example.com/logo.png", images[0].SourcePath)
	assert.Equal(t, "http://example.com/badge.svg", images[1].SourcePath)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", images[2].SourcePath)

	for _, img := range images {
		assert.True(t, img.IsRemote())
		assert.Empty(t, img.ResolvedPath)
	}
}

func TestExtractImages_DropsPathEscapingLibraryRoot(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "docs", "guide.md")

	content := "![ok](images/a.png)\n![evil](../../secrets.txt)\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, "images/a.png", images[0].SourcePath)
}

func TestExtractImages_NoSandboxWithoutLibraryRoot(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "docs", "guide.md")

	content := "![evil](../../secrets.txt)\n"

	images := ExtractImages(content, docPath, "")
	require.Len(t, images, 1)

	expected := filepath.Clean(filepath.Join(filepath.Dir(docPath), "../../secrets.txt"))
	assert.Equal(t, expected, images[0].ResolvedPath)
}

func TestExtractImages_ReferenceStyle(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	content := "See the diagram:\n\n![system diagram][Fig-1]\n\n[fig-1]: images/fig1.png\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, "images/fig1.png", img.SourcePath)
	assert.Equal(t, "system diagram", img.AltText)
	assert.Equal(t, filepath.Join(root, "images", "fig1.png"), img.ResolvedPath)
}

func TestExtractImages_CollapsedReference(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	content := "![hero][]\n\n[hero]: images/hero.png\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, "hero", images[0].AltText)
	assert.Equal(t, "images/hero.png", images[0].SourcePath)
}

func TestExtractImages_UndefinedLabelSkipped(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	images := ExtractImages("![x][missing]\n", docPath, root)
	assert.Empty(t, images)
}

func TestExtractImages_FirstDefinitionWins(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	content := "![x][dup]\n\n[dup]: images/one.png\n[dup]: images/two.png\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, "images/one.png", images[0].SourcePath)
}

func TestExtractImages_DocumentOrder(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	// A reference usage before an inline image; both must come back in
	// document order despite being matched by separate patterns.
	content := "![first][one]\n\nSome text.\n\n![second](images/second.png)\n\n[one]: images/first.png\n"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 2)

	assert.Equal(t, "images/first.png", images[0].SourcePath)
	assert.Equal(t, "images/second.png", images[1].SourcePath)
	assert.Less(t, images[0].CharOffset, images[1].CharOffset)
}

func TestExtractImages_CharOffsetCountsRunes(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "guide.md")

	// "héllo wörld" is 11 runes but 13 bytes.
	content := "héllo wörld\n\n![x](a.png)"

	images := ExtractImages(content, docPath, root)
	require.Len(t, images, 1)
	assert.Equal(t, 13, images[0].CharOffset)
}

func TestExtractImages_NoImages(t *testing.T) {
	images := ExtractImages("Just prose with [a link](https://example.com).\n", "/tmp/doc.md", "")
	assert.Empty(t, images)
}
