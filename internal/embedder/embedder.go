package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/luarag/pkg/types"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = types.ErrProviderFailure
	ErrUnsupportedModel  = errors.New("unsupported provider")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // cache key of the source text
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds one embedding per input text, in input order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Vectors returns the raw vectors of the response in input order
func (r *BatchEmbeddingResponse) Vectors() [][]float32 {
	out := make([][]float32, len(r.Embeddings))
	for i, e := range r.Embeddings {
		out[i] = e.Vector
	}
	return out
}

// Embedder interface defines methods for generating embeddings.
// Failures are reported as types.ErrProviderFailure; providers never retry.
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Info reports the provider identity used in index stats
func Info(e Embedder) *types.ProviderInfo {
	return &types.ProviderInfo{
		Provider:  e.Provider(),
		Model:     e.Model(),
		Dimension: e.Dimension(),
	}
}

// Cache provides in-memory LRU caching of embeddings by key
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a copy of a cached embedding so callers cannot mutate it
func (c *Cache) Get(key string) (*Embedding, bool) {
	emb, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}

	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding in cache with automatic LRU eviction
func (c *Cache) Set(key string, emb *Embedding) {
	c.cache.Add(key, emb)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// CacheKey derives the cache key for text embedded with model
func CacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// CachedEmbedder wraps an Embedder with an LRU cache so repeated texts,
// typically search queries, cost one provider call.
type CachedEmbedder struct {
	inner Embedder
	cache *Cache
}

// NewCachedEmbedder wraps inner with a cache of size entries
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewCache(size)}
}

func (c *CachedEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	key := CacheKey(c.inner.Model(), req.Text)
	if emb, ok := c.cache.Get(key); ok {
		return emb, nil
	}

	emb, err := c.inner.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	emb.Hash = key
	c.cache.Set(key, emb)
	return emb, nil
}

// GenerateBatch serves cached texts locally and sends the rest to the
// provider in one call.
func (c *CachedEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := c.inner.Model()
	out := make([]*Embedding, len(req.Texts))
	var missing []string
	var missingIdx []int
	for i, text := range req.Texts {
		if emb, ok := c.cache.Get(CacheKey(model, text)); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		resp, err := c.inner.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: missing})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(missing) {
			return nil, types.ProviderError("embed batch",
				fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(missing)))
		}
		for j, emb := range resp.Embeddings {
			key := CacheKey(model, missing[j])
			emb.Hash = key
			c.cache.Set(key, emb)
			out[missingIdx[j]] = emb
		}
	}

	return &BatchEmbeddingResponse{Embeddings: out, Provider: c.inner.Provider(), Model: model}, nil
}

func (c *CachedEmbedder) Dimension() int   { return c.inner.Dimension() }
func (c *CachedEmbedder) Provider() string { return c.inner.Provider() }
func (c *CachedEmbedder) Model() string    { return c.inner.Model() }
func (c *CachedEmbedder) Close() error     { return c.inner.Close() }

// CacheSize returns the number of cached embeddings
func (c *CachedEmbedder) CacheSize() int {
	return c.cache.Size()
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}

// checkVectors verifies the provider returned one vector of the expected
// dimension per text. A zero dimension accepts any consistent width.
func checkVectors(vectors [][]float32, texts, dimension int) error {
	if len(vectors) != texts {
		return fmt.Errorf("got %d embeddings for %d texts", len(vectors), texts)
	}
	for i, v := range vectors {
		want := dimension
		if want == 0 {
			want = len(vectors[0])
		}
		if len(v) == 0 || len(v) != want {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), want)
		}
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
