// Package indexer keeps the chunk store in step with Lua sources on disk.
//
// # Basic Usage
//
//	idx := indexer.New(store, chunk, emb, indexer.Config{Workers: 4})
//
//	res, err := idx.IndexDirectory(ctx, "/missions/XSAF", indexer.DirectoryOptions{
//	    Recursive: true,
//	    Pattern:   "*.lua",
//	})
//	fmt.Printf("indexed %d, unchanged %d, failed %d\n", res.Indexed, res.Unchanged, res.Failed)
//
// # Per-file pipeline
//
//  1. Hash: SHA-256 of the raw content
//  2. Skip: a stored file with the same hash is left alone
//  3. Chunk: run the configured chunker strategy
//  4. Embed: one GenerateBatch call over every chunk
//  5. Store: one transaction replaces the file row, its chunks and their embeddings
//
// Embedding happens before the transaction opens, so a provider outage never
// leaves a file half-written: the previous version stays intact.
//
// # Concurrency
//
// Calls for the same path are serialised by a keyed mutex; different paths
// run in parallel. Directory runs use an errgroup limited to Config.Workers
// and at most one directory run is active per Indexer. FileLock adds a
// cross-process lock beside the database for CLI commands that write.
//
// # Exclusions
//
// Directory names in Config.ExcludeDirs match any whole path segment and
// are pruned from walks. File names in Config.ExcludeFiles match the base
// name. The defaults skip the XSAF.DB and Moose trees and Mist.lua.
package indexer
