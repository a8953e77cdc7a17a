package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend represents the BM25 index backend type.
type BM25Backend string

const (
	// BM25BackendOkapi uses the hand-rolled Okapi BM25 index (default):
	// no SQLite, no Bleve, just postings maintained directly so k1/b are
	// the literal textbook formula.
	BM25BackendOkapi BM25Backend = "okapi"

	// BM25BackendSQLite uses SQLite FTS5 for BM25 search (legacy).
	// Enables concurrent multi-process access via WAL mode.
	BM25BackendSQLite BM25Backend = "sqlite"

	// BM25BackendBleve uses Bleve v2 for BM25 search (repurposed as the
	// phrase pre-filter ahead of AST search, not the primary lexical index).
	// Has exclusive file locking via BoltDB - single process only.
	BM25BackendBleve BM25Backend = "bleve"
)

// NewBM25IndexWithBackend creates a BM25Index using the specified backend.
// The path should be the base path without extension - the extension will be
// added based on the backend type (.json for Okapi, .db for SQLite, .bleve
// for Bleve).
//
// backend options:
//   - "okapi" (default): hand-rolled Okapi BM25, JSON persistence
//   - "sqlite": SQLite FTS5 with WAL mode for concurrent access
//   - "bleve": Bleve v2 with BoltDB (single-process only)
//
// If path is empty, creates an in-memory index for testing.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch backend {
	case string(BM25BackendOkapi), "":
		idx := NewOkapiBM25Index(config)
		if basePath != "" {
			if err := idx.Load(basePath); err != nil {
				return nil, err
			}
		}
		return idx, nil

	case string(BM25BackendSQLite):
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	case string(BM25BackendBleve):
		// Legacy Bleve backend (single process due to BoltDB lock)
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: okapi, sqlite, bleve)", backend)
	}
}

// DetectBM25Backend detects which backend an existing index uses based on file existence.
// Returns the detected backend or an empty string if no index exists.
// This is useful for backwards compatibility when opening existing indexes.
func DetectBM25Backend(basePath string) BM25Backend {
	// Check for the hand-rolled Okapi index first (current default)
	okapiPath := basePath + ".json"
	if fileExists(okapiPath) {
		return BM25BackendOkapi
	}

	// Check for SQLite (legacy)
	sqlitePath := basePath + ".db"
	if fileExists(sqlitePath) {
		return BM25BackendSQLite
	}

	// Check for Bleve (legacy)
	blevePath := basePath + ".bleve"
	if dirExists(blevePath) {
		return BM25BackendBleve
	}

	// No existing index
	return ""
}

// GetBM25IndexPath returns the full path to the BM25 index file/directory
// based on the backend type.
func GetBM25IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "bm25")
	switch backend {
	case string(BM25BackendBleve):
		return basePath + ".bleve"
	case string(BM25BackendSQLite):
		return basePath + ".db"
	default:
		return basePath + ".json"
	}
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
