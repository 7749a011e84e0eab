package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// VectorBackend identifies a vector index implementation.
type VectorBackend string

const (
	// VectorBackendHNSW uses a coder/hnsw graph with approximate
	// nearest-neighbor search (default).
	VectorBackendHNSW VectorBackend = "hnsw"

	// VectorBackendSQLite uses an exact brute-force scan over BLOB rows in
	// the library database (legacy fallback).
	VectorBackendSQLite VectorBackend = "sqlite"
)

// NewVectorIndex creates the vector index selected by backend, persisted
// under dataDir. This is the only place backend identity is consulted;
// callers use the VectorIndex interface. An empty dataDir creates an
// in-memory index for testing. Switching backends requires a full rebuild.
func NewVectorIndex(backend string, dataDir string, dims int) (VectorIndex, error) {
	switch backend {
	case string(VectorBackendHNSW), "":
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "vectors.hnsw")
		}
		return NewHNSWIndex(path, dims)

	case string(VectorBackendSQLite):
		// Rows live in the library database alongside the document tables;
		// WAL mode keeps the extra connection safe.
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "library.db")
		}
		return NewSQLiteVectorIndex(path, dims)

	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: hnsw, sqlite)", backend)
	}
}

// VectorIndexPath returns where the given backend persists its data under
// dataDir.
func VectorIndexPath(dataDir, backend string) string {
	switch backend {
	case string(VectorBackendSQLite):
		return filepath.Join(dataDir, "library.db")
	default:
		return filepath.Join(dataDir, "vectors.hnsw")
	}
}

// ReadVectorIndexDimensions reads the dimensionality the persisted index
// was built with, without opening it for writes. Returns (0, nil) when no
// index exists yet, so callers can tell "never built" from a read failure.
func ReadVectorIndexDimensions(dataDir, backend string) (int, error) {
	path := VectorIndexPath(dataDir, backend)
	switch backend {
	case string(VectorBackendSQLite):
		return ReadSQLiteVectorDimensions(path)
	default:
		return ReadHNSWDimensions(path)
	}
}

// RemoveVectorIndex deletes the persisted index so a rebuild can recreate
// it with different dimensions. For the HNSW backend this removes the graph
// and meta files; for the SQLite backend it drops the vector tables and
// leaves the document tables untouched. Removing an absent index is a no-op.
func RemoveVectorIndex(dataDir, backend string) error {
	path := VectorIndexPath(dataDir, backend)
	switch backend {
	case string(VectorBackendSQLite):
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		for _, stmt := range []string{`DROP TABLE IF EXISTS vectors`, `DROP TABLE IF EXISTS vector_meta`} {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to drop vector tables: %w", err)
			}
		}
		return nil

	default:
		for _, p := range []string{path, path + ".meta"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	}
}
