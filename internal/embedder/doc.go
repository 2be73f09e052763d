// Package embedder turns chunk and query text into vectors.
//
// Providers:
//
//   - ollama: POST {base}/api/embed, the default (nomic-embed-text, 768 dims)
//   - openai: the OpenAI embeddings API through go-openai
//   - local: any OpenAI-compatible server reached through a custom base URL
//   - jina: the Jina AI embeddings API
//   - mock: a deterministic bag-of-words vector for offline use and tests
//
// Basic usage:
//
//	emb, err := embedder.New(embedder.Config{Provider: "ollama"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunkA.Content, chunkB.Content},
//	})
//
// New wraps the provider in a CachedEmbedder, an LRU keyed by the hash of
// model and text, so a repeated search query costs a single provider call.
//
// Every transport failure, non-2xx response or dimension mismatch is
// reported as types.ErrProviderFailure. Providers do not retry; the indexer
// leaves the store untouched when embedding fails, so re-running the index
// is always safe.
package embedder
