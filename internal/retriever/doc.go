// Package retriever answers queries against the chunk store.
//
// Three modes share one result shape:
//
//   - text: case-insensitive substring match, every hit scores 1.0, ordered
//     functions first, then tables, then the rest, by start line
//   - vector: the query is embedded with the index's model and ranked by
//     cosine similarity
//   - hybrid: both modes run concurrently with 2x the limit and Fuse merges
//     them by chunk id with weighted scores (0.3 text, 0.7 vector by default)
//
// A failing mode never fails the search. It is logged, listed in
// SearchResponse.Degraded and contributes no results, so hybrid search keeps
// working on lexical matches while the embedding provider is down.
//
// FormatContext renders ranked hits as fenced Lua blocks for an LLM prompt,
// dropping whole chunks once the len/4 token estimate would pass the budget.
//
// An optional LRU query cache keeps recent non-degraded responses; callers
// that modify the index must call InvalidateCache.
package retriever
