// Package enhancer rewrites user prompts about mission scripting into
// prompts that carry relevant code snippets from the index.
//
// A prompt is enhanced only when it mentions the domain vocabulary. Related
// prompts get the snippets from a five-result hybrid search, or a generic
// domain prompt when nothing matched. A retrieval failure returns the
// original prompt untouched.
package enhancer
