//go:build sqlite_vec && cgo

package store

import (
	_ "github.com/mattn/go-sqlite3"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Opt-in build: cgo SQLite with the sqlite-vec extension auto-loaded, for
// knowledge bases large enough that in-memory cosine ranking hurts.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
