package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 1000, -1},
		{"overlap equals size", 1000, 1000},
		{"overlap exceeds size", 1000, 1500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewChunker(tc.size, tc.overlap)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestNewChunker_AcceptsValidConfig(t *testing.T) {
	c, err := NewChunker(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Equal(t, 1000, c.Size)
	assert.Equal(t, 200, c.Overlap)
}

func TestChunker_Split_EmptyText(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestChunker_Split_TextSmallerThanSize(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	pieces := c.Split("hello world")
	require.Len(t, pieces, 1)
	assert.Equal(t, Piece{Ordinal: 0, Content: "hello world", StartChar: 0, EndChar: 11}, pieces[0])
}

func TestChunker_Split_TextExactlySize(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("x", 1000)
	pieces := c.Split(text)
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 1000, pieces[0].EndChar)
	assert.Equal(t, text, pieces[0].Content)
}

func TestChunker_Split_LongTextWithoutBoundaries(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	// 2400 characters with no paragraph or sentence breaks.
	text := strings.Repeat("abcdefgh", 300)

	pieces := c.Split(text)
	require.Len(t, pieces, 3)

	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 1000, pieces[0].EndChar)
	assert.Equal(t, 800, pieces[1].StartChar)
	assert.Equal(t, 1800, pieces[1].EndChar)
	assert.Equal(t, 1600, pieces[2].StartChar)
	assert.Equal(t, 2400, pieces[2].EndChar)

	// Consecutive pieces share exactly Overlap characters.
	assert.Equal(t, pieces[0].EndChar-c.Overlap, pieces[1].StartChar)
	assert.Equal(t, pieces[1].EndChar-c.Overlap, pieces[2].StartChar)

	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.Equal(t, text[p.StartChar:p.EndChar], p.Content)
	}
}

func TestChunker_Split_PrefersParagraphBoundary(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	// Paragraph break at 700, inside the second half of the first window.
	text := strings.Repeat("a", 700) + "\n\n" + strings.Repeat("b", 1698)

	pieces := c.Split(text)
	require.Len(t, pieces, 4)

	// First piece ends just after the paragraph break.
	assert.Equal(t, 702, pieces[0].EndChar)
	assert.True(t, strings.HasSuffix(pieces[0].Content, "\n\n"))

	assert.Equal(t, 502, pieces[1].StartChar)
	assert.Equal(t, 1502, pieces[1].EndChar)
	assert.Equal(t, 1302, pieces[2].StartChar)
	assert.Equal(t, 2302, pieces[2].EndChar)
	assert.Equal(t, 2102, pieces[3].StartChar)
	assert.Equal(t, 2400, pieces[3].EndChar)
}

func TestChunker_Split_PrefersSentenceBoundary(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	// No paragraph break; sentence end at 650.
	text := strings.Repeat("x", 650) + ". " + strings.Repeat("y", 1000)

	pieces := c.Split(text)
	require.Len(t, pieces, 3)

	assert.Equal(t, 652, pieces[0].EndChar)
	assert.True(t, strings.HasSuffix(pieces[0].Content, ". "))
	assert.Equal(t, 452, pieces[1].StartChar)
}

func TestChunker_Split_SentenceSeparatorOrder(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	// ". " at 600 and ".\n" at 800; ". " wins even though ".\n" is later.
	text := strings.Repeat("x", 600) + ". " + strings.Repeat("y", 198) + ".\n" + strings.Repeat("z", 900)

	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	assert.Equal(t, 602, pieces[0].EndChar)
}

func TestChunker_Split_IgnoresBoundaryInFirstHalf(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	// Paragraph break at 300 is before the window midpoint, so the first
	// piece keeps its full size.
	text := strings.Repeat("a", 300) + "\n\n" + strings.Repeat("b", 1500)

	pieces := c.Split(text)
	require.Len(t, pieces, 3)
	assert.Equal(t, 1000, pieces[0].EndChar)
}

func TestChunker_Split_MergesShortTail(t *testing.T) {
	// Overlap above half the size makes a boundary-shortened window unable
	// to advance; the trailing remainder folds into the last piece instead
	// of becoming a fragment shorter than the overlap.
	c, err := NewChunker(100, 60)
	require.NoError(t, err)

	text := strings.Repeat("a", 55) + ". " + strings.Repeat("b", 53)
	require.Equal(t, 110, len(text))

	pieces := c.Split(text)
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 110, pieces[0].EndChar)
	assert.Equal(t, text, pieces[0].Content)
}

func TestChunker_Split_UnicodeOffsetsAreRunes(t *testing.T) {
	c, err := NewChunker(200, 50)
	require.NoError(t, err)

	// 300 runes, 900 bytes. Offsets and sizes must count runes.
	text := strings.Repeat("界", 300)

	pieces := c.Split(text)
	require.Len(t, pieces, 2)

	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, 200, pieces[0].EndChar)
	assert.Equal(t, 200, len([]rune(pieces[0].Content)))

	assert.Equal(t, 150, pieces[1].StartChar)
	assert.Equal(t, 300, pieces[1].EndChar)
	assert.Equal(t, 150, len([]rune(pieces[1].Content)))

	assert.Equal(t, strings.Repeat("界", 200), pieces[0].Content)
}

func TestChunker_Split_CoversTextWithoutGaps(t *testing.T) {
	c, err := NewChunker(500, 100)
	require.NoError(t, err)

	paragraph := strings.Repeat("lorem ipsum ", 10)
	text := strings.TrimSpace(strings.Repeat(paragraph+"\n\n", 40))
	runes := []rune(text)

	pieces := c.Split(text)
	require.NotEmpty(t, pieces)

	assert.Equal(t, 0, pieces[0].StartChar)
	assert.Equal(t, len(runes), pieces[len(pieces)-1].EndChar)

	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.Equal(t, string(runes[p.StartChar:p.EndChar]), p.Content)
		assert.LessOrEqual(t, p.Len(), c.Size)
		assert.Greater(t, p.Len(), 0)

		if i > 0 {
			prev := pieces[i-1]
			// No gap between consecutive pieces, and the window advances.
			assert.LessOrEqual(t, p.StartChar, prev.EndChar)
			assert.Greater(t, p.StartChar, prev.StartChar)
		}
	}
}
