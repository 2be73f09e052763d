// Package types provides shared type definitions for luarag.
//
// # Core Types
//
// Chunk is a line-addressed region of a Lua source file and the unit of
// retrieval. Chunkers return drafts; the store assigns IDs on insert:
//
//	chunk := types.Chunk{
//	    OrdinalIndex: 0,
//	    ChunkType:    types.ChunkFunction,
//	    Content:      "function foo(a, b)\n  return a+b\nend",
//	    LineStart:    1,
//	    LineEnd:      3,
//	}
//
// Metadata is a tagged union: exactly one of Function, Comment, Block,
// Table, Assignment or File is set depending on the chunk type. It encodes
// to a flat JSON object such as
//
//	{"function_name": "foo", "parameters": ["a", "b"], "file_path": "init.lua"}
//
// # Search Results
//
// SearchResult is the wire shape shared with HTTP and MCP consumers:
//
//	{"id": 1, "file_path": "...", "chunk_type": "function", "content": "...",
//	 "metadata": {...}, "line_start": 1, "line_end": 3, "score": 0.63}
//
// Hybrid results additionally carry text_score and vector_score.
//
// # Errors
//
// Failures are classified with errors.Is against ErrParseFailure,
// ErrProviderFailure, ErrStoreFailure and ErrNotFound.
package types
