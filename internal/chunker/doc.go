// Package chunker splits Lua source into line-addressed chunks for
// embedding and search.
//
// Two strategies implement the Chunker interface:
//
//   - structural walks a tree-sitter syntax tree and keeps every function,
//     table, comment, control block and assignment node of at least
//     MinNodeBytes bytes. Nested nodes record the ordinal of their nearest
//     kept ancestor in ParentIndex.
//   - regex approximates functions and control blocks with line patterns and
//     a keyword/bracket balance scan for the closing "end". It is used when no
//     grammar should be loaded or to compare chunk boundaries.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.StrategyStructural, chunker.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	for _, ch := range c.Chunk(ctx, src, "scripts/init.lua") {
//	    fmt.Printf("%s %d-%d %s\n", ch.ChunkType, ch.LineStart, ch.LineEnd,
//	        ch.Metadata.FunctionName())
//	}
//
// # Fallbacks
//
// Chunk never returns an error. Input with no recognizable structure becomes
// a single "file" chunk covering every line, with metadata.parse_error set
// when the grammar reported a syntax error. The regex strategy instead
// partitions structureless files into SegmentLines-sized "code_segment"
// chunks.
//
// Every chunk carries metadata.file_path and, when the text mentions any of
// the configured vocabulary, metadata.domain_keywords.
package chunker
