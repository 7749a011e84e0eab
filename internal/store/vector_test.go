package store

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runForEachBackend runs a test against every vector index backend through
// the VectorIndex interface. The backends must be interchangeable.
func runForEachBackend(t *testing.T, fn func(t *testing.T, idx VectorIndex)) {
	backends := []struct {
		name string
		open func(t *testing.T) VectorIndex
	}{
		{"hnsw", func(t *testing.T) VectorIndex {
			idx, err := NewHNSWIndex("", 4)
			require.NoError(t, err)
			return idx
		}},
		{"sqlite", func(t *testing.T) VectorIndex {
			idx, err := NewSQLiteVectorIndex("", 4)
			require.NoError(t, err)
			return idx
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			idx := b.open(t)
			defer func() { _ = idx.Close() }()
			fn(t, idx)
		})
	}
}

func TestVectorIndex_UpsertAndQuery(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		// Given: vectors 1=[1,0,0,0], 2=[0,1,0,0], 3=[0.9,0.1,0,0]
		require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 2, []float32{0, 1, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 3, []float32{0.9, 0.1, 0, 0}))

		// When: querying [1,0,0,0] with k=2
		matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 2)
		require.NoError(t, err)

		// Then: the exact match comes first, the near match second
		require.Len(t, matches, 2)
		assert.Equal(t, int64(1), matches[0].ChunkID)
		assert.Equal(t, int64(3), matches[1].ChunkID)
		assert.InDelta(t, 0, matches[0].Distance, 1e-5)
		assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	})
}

func TestVectorIndex_UpsertReplacesExisting(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		// Given: chunk 1 stored as [1,0,0,0]
		require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))

		// When: upserting chunk 1 again as [0,1,0,0]
		require.NoError(t, idx.Upsert(ctx, 1, []float32{0, 1, 0, 0}))

		// Then: only one vector is stored and it matches the new value
		assert.Equal(t, 1, idx.Count())

		matches, err := idx.Query(ctx, []float32{0, 1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, int64(1), matches[0].ChunkID)
		assert.InDelta(t, 0, matches[0].Distance, 1e-5)
	})
}

func TestVectorIndex_Delete(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 2, []float32{0, 1, 0, 0}))

		// When: deleting chunk 1
		require.NoError(t, idx.Delete(ctx, 1))

		// Then: only chunk 2 remains
		assert.Equal(t, 1, idx.Count())
		ids, err := idx.AllIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids)

		// And: deleting an absent id is a no-op
		assert.NoError(t, idx.Delete(ctx, 99))
	})
}

func TestVectorIndex_DeletedVectorNotReturned(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 2, []float32{0.9, 0.1, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 3, []float32{0, 1, 0, 0}))

		require.NoError(t, idx.Delete(ctx, 2))

		// When: querying with k covering everything
		matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 3)
		require.NoError(t, err)

		// Then: the deleted chunk never appears
		require.Len(t, matches, 2)
		for _, m := range matches {
			assert.NotEqual(t, int64(2), m.ChunkID)
		}
	})
}

func TestVectorIndex_QueryAscendingWithinLimit(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		vecs := map[int64][]float32{
			1: {1, 0, 0, 0},
			2: {0.8, 0.2, 0, 0},
			3: {0.5, 0.5, 0, 0},
			4: {0, 1, 0, 0},
			5: {0, 0, 1, 0},
		}
		for id, v := range vecs {
			require.NoError(t, idx.Upsert(ctx, id, v))
		}

		matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 3)
		require.NoError(t, err)

		require.LessOrEqual(t, len(matches), 3)
		assert.True(t, sort.SliceIsSorted(matches, func(i, j int) bool {
			return matches[i].Distance < matches[j].Distance
		}))
		assert.Equal(t, int64(1), matches[0].ChunkID)
	})
}

func TestVectorIndex_DimensionMismatchRejected(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		// When: upserting a 3-dimensional vector into a 4-dimensional index
		err := idx.Upsert(ctx, 1, []float32{1, 0, 0})

		// Then: the typed mismatch error reports both sizes
		var mismatch ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 4, mismatch.Expected)
		assert.Equal(t, 3, mismatch.Got)

		// And: queries with the wrong length fail the same way
		_, err = idx.Query(ctx, []float32{1, 0}, 1)
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 2, mismatch.Got)
	})
}

func TestVectorIndex_DeleteAll(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, 1, []float32{1, 0, 0, 0}))
		require.NoError(t, idx.Upsert(ctx, 2, []float32{0, 1, 0, 0}))

		require.NoError(t, idx.DeleteAll(ctx))

		assert.Equal(t, 0, idx.Count())
		ids, err := idx.AllIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestVectorIndex_QueryEmptyIndex(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		matches, err := idx.Query(context.Background(), []float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestVectorIndex_AllIDsAscending(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()

		for _, id := range []int64{5, 1, 3} {
			require.NoError(t, idx.Upsert(ctx, id, []float32{1, 0, 0, 0}))
		}

		ids, err := idx.AllIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3, 5}, ids)
	})
}

func TestVectorIndex_Dimensions(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		assert.Equal(t, 4, idx.Dimensions())
	})
}

func TestVectorIndex_ErrorsAfterClose(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, idx VectorIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Close())

		err := idx.Upsert(ctx, 1, []float32{1, 0, 0, 0})
		assert.Error(t, err)
		_, err = idx.Query(ctx, []float32{1, 0, 0, 0}, 1)
		assert.Error(t, err)
		assert.Equal(t, 0, idx.Count())

		// Close is idempotent
		assert.NoError(t, idx.Close())
	})
}

func TestErrDimensionMismatch_Message(t *testing.T) {
	err := ErrDimensionMismatch{Expected: 384, Got: 768}
	assert.Contains(t, err.Error(), "384")
	assert.Contains(t, err.Error(), "768")

	var target ErrDimensionMismatch
	assert.True(t, errors.As(err, &target))
}
