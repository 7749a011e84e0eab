package index

import (
	"context"
	"sort"

	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
	"github.com/lorekeep/lorekeep/internal/store"
)

// FindingType classifies a discrepancy between the document store and the
// vector index.
type FindingType int

const (
	// OrphanVector is a vector whose chunk row no longer exists.
	OrphanVector FindingType = iota

	// MissingVector is a chunk row that has no vector.
	MissingVector
)

func (t FindingType) String() string {
	switch t {
	case OrphanVector:
		return "orphan_vector"
	case MissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Finding is a single store/vector discrepancy.
type Finding struct {
	Type    FindingType
	ChunkID int64
}

// CheckResult reports the outcome of a consistency check.
type CheckResult struct {
	ChunkCount  int
	VectorCount int
	Findings    []Finding
}

// Consistent reports whether the store and vector index agree.
func (r *CheckResult) Consistent() bool {
	return len(r.Findings) == 0
}

// CheckConsistency compares chunk ids in the document store against vector
// ids in the vector index. It only reports discrepancies; the remediation
// for an inconsistent index is a rebuild, never an in-place repair.
func CheckConsistency(ctx context.Context, st *store.Store, vectors store.VectorIndex) (*CheckResult, error) {
	chunkIDs, err := st.ChunkIDs(ctx)
	if err != nil {
		return nil, lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to enumerate chunks", err)
	}
	vectorIDs, err := vectors.AllIDs(ctx)
	if err != nil {
		return nil, lkerrors.New(lkerrors.ErrCodeIndexFailed, "failed to enumerate vectors", err)
	}

	result := &CheckResult{
		ChunkCount:  len(chunkIDs),
		VectorCount: len(vectorIDs),
	}

	chunkSet := make(map[int64]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		chunkSet[id] = true
	}
	vectorSet := make(map[int64]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
	}

	for _, id := range vectorIDs {
		if !chunkSet[id] {
			result.Findings = append(result.Findings, Finding{Type: OrphanVector, ChunkID: id})
		}
	}
	for _, id := range chunkIDs {
		if !vectorSet[id] {
			result.Findings = append(result.Findings, Finding{Type: MissingVector, ChunkID: id})
		}
	}

	sort.Slice(result.Findings, func(i, j int) bool {
		if result.Findings[i].ChunkID != result.Findings[j].ChunkID {
			return result.Findings[i].ChunkID < result.Findings[j].ChunkID
		}
		return result.Findings[i].Type < result.Findings[j].Type
	})

	return result, nil
}
