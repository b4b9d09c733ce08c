//go:build !sqlite_vec

package store

import (
	_ "modernc.org/sqlite"
)

// Default build: pure-Go SQLite, no cgo required. Similarity ranking runs
// in-memory over decoded embeddings.
const driverName = "sqlite"
