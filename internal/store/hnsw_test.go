package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHNSWIndex_RejectsNonPositiveDimensions(t *testing.T) {
	_, err := NewHNSWIndex("", 0)
	assert.Error(t, err)

	_, err = NewHNSWIndex("", -3)
	assert.Error(t, err)
}

func TestHNSWIndex_FlushAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	// Given: three vectors persisted to disk
	idx, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, 2, []float32{0, 1, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, 3, []float32{0, 0, 1, 0}))
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	// When: reopening the index
	reopened, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then: all vectors survive and queries still resolve
	assert.Equal(t, 3, reopened.Count())

	ids, err := reopened.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	matches, err := reopened.Query(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].ChunkID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-5)
}

func TestHNSWIndex_ReloadPreservesDeletes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	idx, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, 2, []float32{0, 1, 0, 0}))
	require.NoError(t, idx.Delete(ctx, 1))
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	reopened, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, 1, reopened.Count())

	matches, err := reopened.Query(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].ChunkID)
}

func TestHNSWIndex_OpenDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	// Given: an index persisted with 4 dimensions
	idx, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	// When: reopening with an embedder producing 8 dimensions
	_, err = NewHNSWIndex(path, 8)

	// Then: opening fails fast with the typed mismatch
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 8, mismatch.Got)
}

func TestHNSWIndex_FlushWithoutPathIsNoop(t *testing.T) {
	idx, err := NewHNSWIndex("", 4)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	assert.NoError(t, idx.Flush(context.Background()))
}

func TestReadHNSWDimensions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	// Given: no index on disk
	dims, err := ReadHNSWDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	// When: an index is persisted
	idx, err := NewHNSWIndex(path, 4)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	// Then: the persisted dimensionality is readable without opening
	dims, err = ReadHNSWDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}
