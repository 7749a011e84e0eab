package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorIndex_SelectsBackend(t *testing.T) {
	hnswIdx, err := NewVectorIndex("hnsw", "", 4)
	require.NoError(t, err)
	defer func() { _ = hnswIdx.Close() }()
	assert.IsType(t, &HNSWIndex{}, hnswIdx)

	sqliteIdx, err := NewVectorIndex("sqlite", "", 4)
	require.NoError(t, err)
	defer func() { _ = sqliteIdx.Close() }()
	assert.IsType(t, &SQLiteVectorIndex{}, sqliteIdx)
}

func TestNewVectorIndex_DefaultsToHNSW(t *testing.T) {
	idx, err := NewVectorIndex("", "", 4)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	assert.IsType(t, &HNSWIndex{}, idx)
}

func TestNewVectorIndex_UnknownBackend(t *testing.T) {
	_, err := NewVectorIndex("faiss", "", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector backend")
}

func TestNewVectorIndex_PersistsUnderDataDir(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	idx, err := NewVectorIndex("hnsw", dataDir, 4)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	// Reopening through the factory finds the same data.
	reopened, err := NewVectorIndex("hnsw", dataDir, 4)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, 1, reopened.Count())
}

func TestVectorIndexPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "vectors.hnsw"), VectorIndexPath("data", "hnsw"))
	assert.Equal(t, filepath.Join("data", "library.db"), VectorIndexPath("data", "sqlite"))
	assert.Equal(t, filepath.Join("data", "vectors.hnsw"), VectorIndexPath("data", ""))
}
