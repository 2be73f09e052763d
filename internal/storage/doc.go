// Package storage provides SQLite-based persistence for indexed Lua chunks.
//
// # Database Schema
//
// Tables:
//   - files: one row per indexed path with its SHA-256 content hash
//   - chunks: ordered chunks of a file; deleting the file cascades
//   - embeddings: one vector per chunk and model; deleting the chunk cascades
//   - schema_version: applied migrations, compared with semver
//
// chunks.parent_chunk_id points at the enclosing chunk of the same file. It
// carries no foreign key and is never followed on delete.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(filepath.Join(home, ".luarag", "index.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	chunks, err := store.TextSearch(ctx, "addEventHandler", 20)
//
// # Transactions
//
// A file is replaced inside one transaction so readers never see a mix of
// old and new chunks:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if _, err := tx.DeleteChunksForFile(ctx, file.ID); err != nil {
//	    return err
//	}
//	id, err := tx.InsertChunk(ctx, &chunk)
//	...
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and ranks vectors in Go. Building
// with the sqlite_vec tag links github.com/mattn/go-sqlite3 with the sqlite-vec
// extension and ranks vectors in SQL with vec_distance_cosine:
//
//	CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// Both modes report similarity as 1 - cosine distance and break ties by
// chunk id.
package storage
