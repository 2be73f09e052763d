package retriever

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/luarag/pkg/types"
)

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *types.SearchResponse
	expiresAt time.Time
}

// queryCache holds recent non-degraded search responses. It is purged
// whenever the index changes.
type queryCache struct {
	mu    sync.Mutex
	cache *lru.Cache[[32]byte, *cacheEntry]
	ttl   time.Duration
}

func newQueryCache(size int, ttl time.Duration) *queryCache {
	cache, err := lru.New[[32]byte, *cacheEntry](size)
	if err != nil {
		return nil
	}
	return &queryCache{cache: cache, ttl: ttl}
}

func (c *queryCache) get(req SearchRequest, now time.Time) (*types.SearchResponse, bool) {
	if c == nil {
		return nil, false
	}
	key := queryKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if now.After(entry.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return copyResponse(entry.response), true
}

func (c *queryCache) put(req SearchRequest, resp *types.SearchResponse, now time.Time) {
	if c == nil || len(resp.Degraded) > 0 {
		return
	}
	c.mu.Lock()
	c.cache.Add(queryKey(req), &cacheEntry{response: copyResponse(resp), expiresAt: now.Add(c.ttl)})
	c.mu.Unlock()
}

func (c *queryCache) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
}

func (c *queryCache) size() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// queryKey hashes every request field that changes the response
func queryKey(req SearchRequest) [32]byte {
	data := fmt.Sprintf("%s|%s|%d|%.4f|%.4f", req.Query, req.Mode, req.Limit, req.Weights.Text, req.Weights.Vector)
	return sha256.Sum256([]byte(data))
}

// copyResponse deep copies the result slice and score pointers
func copyResponse(src *types.SearchResponse) *types.SearchResponse {
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		if r.TextScore != nil {
			v := *r.TextScore
			r.TextScore = &v
		}
		if r.VectorScore != nil {
			v := *r.VectorScore
			r.VectorScore = &v
		}
		dst.Results[i] = r
	}
	if src.Degraded != nil {
		dst.Degraded = append([]types.ModeFailure(nil), src.Degraded...)
	}
	return &dst
}
