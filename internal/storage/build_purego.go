//go:build purego || !sqlite_vec

package storage

// Compiled by default. Uses the pure Go SQLite driver; vector similarity is
// computed in Go over the candidate embeddings.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vec_distance_cosine can be called
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
