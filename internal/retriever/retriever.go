package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/storage"
	"github.com/dshills/luarag/pkg/types"
)

// Limits
const (
	DefaultLimit        = 10
	MaxLimit            = 100
	DefaultRelatedLimit = 5
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query   string
	Limit   int
	Mode    types.SearchMode
	Weights Weights // zero means the configured weights
}

// Config tunes the retriever
type Config struct {
	DefaultLimit int
	MaxTokens    int
	Weights      Weights
	CacheSize    int           // 0 disables the query cache
	CacheTTL     time.Duration // default 5m
	Logger       *slog.Logger
}

// Retriever coordinates lexical, vector and hybrid search over the store
type Retriever struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cfg      Config
	cache    *queryCache
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Retriever
func New(store storage.Storage, emb embedder.Embedder, cfg Config) *Retriever {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.DefaultLimit > MaxLimit {
		cfg.DefaultLimit = MaxLimit
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Weights.IsZero() {
		cfg.Weights = DefaultWeights()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Retriever{
		storage:  store,
		embedder: emb,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "retriever"),
		now:      time.Now,
	}
	if cfg.CacheSize > 0 {
		r.cache = newQueryCache(cfg.CacheSize, cfg.CacheTTL)
	}
	return r
}

// MaxTokens returns the configured context budget
func (r *Retriever) MaxTokens() int {
	return r.cfg.MaxTokens
}

// InvalidateCache drops cached responses; call it after the index changes
func (r *Retriever) InvalidateCache() {
	r.cache.purge()
}

// TextSearch returns chunks containing q, case-insensitively. Every match
// scores 1.0; order comes from the store's type priority.
func (r *Retriever) TextSearch(ctx context.Context, q string, limit int) ([]types.SearchResult, error) {
	chunks, err := r.storage.TextSearch(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	results := make([]types.SearchResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, types.NewSearchResult(c, 1.0))
	}
	return results, nil
}

// VectorSearch embeds q with the configured embedder and returns the nearest
// chunks embedded under the same model.
func (r *Retriever) VectorSearch(ctx context.Context, q string, limit int) ([]types.SearchResult, error) {
	if r.embedder == nil {
		return nil, types.ProviderError("vector search", fmt.Errorf("embedder not initialized"))
	}
	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: q})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	hits, err := r.storage.VectorSearch(ctx, emb.Vector, r.embedder.Model(), limit)
	if err != nil {
		return nil, err
	}
	results := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, types.NewSearchResult(h.Chunk, h.Similarity))
	}
	return results, nil
}

// searchResult holds results from concurrent search operations
type searchResult struct {
	results []types.SearchResult
	err     error
}

// HybridSearch runs both modes concurrently, each with 2*limit candidates,
// and fuses them. A failing mode is logged, reported in Degraded and
// contributes nothing.
func (r *Retriever) HybridSearch(ctx context.Context, q string, limit int, w Weights) *types.SearchResponse {
	start := time.Now()
	if w.IsZero() {
		w = r.cfg.Weights
	}
	resp := &types.SearchResponse{Query: q, Mode: types.SearchModeHybrid, Results: []types.SearchResult{}}
	if strings.TrimSpace(q) == "" || limit <= 0 {
		return resp
	}

	textChan := make(chan searchResult, 1)
	vectorChan := make(chan searchResult, 1)

	go func() {
		res, err := r.TextSearch(ctx, q, limit*2)
		textChan <- searchResult{results: res, err: err}
	}()
	go func() {
		res, err := r.VectorSearch(ctx, q, limit*2)
		vectorChan <- searchResult{results: res, err: err}
	}()

	textRes := <-textChan
	vectorRes := <-vectorChan

	if textRes.err != nil {
		r.degrade(resp, types.SearchModeText, textRes.err)
		textRes.results = nil
	}
	if vectorRes.err != nil {
		r.degrade(resp, types.SearchModeVector, vectorRes.err)
		vectorRes.results = nil
	}

	resp.Results = Fuse(textRes.results, vectorRes.results, w, limit)
	resp.Count = len(resp.Results)
	resp.Duration = time.Since(start)
	return resp
}

func (r *Retriever) degrade(resp *types.SearchResponse, mode types.SearchMode, err error) {
	r.logger.Warn("search mode failed", "mode", mode, "query", resp.Query, "error", err)
	resp.Degraded = append(resp.Degraded, types.ModeFailure{Mode: mode, Error: err.Error()})
}

// Search performs a search based on the request parameters. An empty
// query is the only error; mode failures degrade to empty results.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	if err := r.validateRequest(&req); err != nil {
		return nil, err
	}

	if cached, ok := r.cache.get(req, r.now()); ok {
		return cached, nil
	}

	var resp *types.SearchResponse
	switch req.Mode {
	case types.SearchModeHybrid:
		resp = r.HybridSearch(ctx, req.Query, req.Limit, req.Weights)
	case types.SearchModeText, types.SearchModeVector:
		resp = &types.SearchResponse{Query: req.Query, Mode: req.Mode}
		var (
			results []types.SearchResult
			err     error
		)
		if req.Mode == types.SearchModeText {
			results, err = r.TextSearch(ctx, req.Query, req.Limit)
		} else {
			results, err = r.VectorSearch(ctx, req.Query, req.Limit)
		}
		if err != nil {
			r.degrade(resp, req.Mode, err)
			results = nil
		}
		if results == nil {
			results = []types.SearchResult{}
		}
		resp.Results = results
		resp.Count = len(results)
	}

	resp.Duration = time.Since(start)
	r.cache.put(req, resp, r.now())
	return resp, nil
}

// validateRequest applies defaults and rejects what cannot be searched
func (r *Retriever) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = r.cfg.DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Mode == "" {
		req.Mode = types.SearchModeHybrid
	}
	switch req.Mode {
	case types.SearchModeText, types.SearchModeVector, types.SearchModeHybrid:
	default:
		return fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	if req.Weights.IsZero() {
		req.Weights = r.cfg.Weights
	}
	return req.Weights.Validate()
}

// GetContext runs a hybrid search and formats the hits for an LLM prompt
func (r *Retriever) GetContext(ctx context.Context, q string, limit, maxTokens int) (*types.ContextResponse, error) {
	if maxTokens <= 0 {
		maxTokens = r.cfg.MaxTokens
	}
	resp, err := r.Search(ctx, SearchRequest{Query: q, Limit: limit, Mode: types.SearchModeHybrid})
	if err != nil {
		return nil, err
	}

	text, n := FormatContext(resp.Results, maxTokens)
	return &types.ContextResponse{
		Context:      text,
		SnippetCount: n,
		Results:      resp.Results[:n],
	}, nil
}

// GetRelatedChunks returns chunks from the same file as chunkID, nearest
// start line first. An unknown chunk yields no results.
func (r *Retriever) GetRelatedChunks(ctx context.Context, chunkID int64, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	chunks, err := r.storage.RelatedChunks(ctx, chunkID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]types.SearchResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, types.NewSearchResult(c, 1.0))
	}
	return results, nil
}
