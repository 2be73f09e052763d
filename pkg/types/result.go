package types

import "time"

// SearchMode selects which retrieval strategy runs
type SearchMode string

const (
	SearchModeText   SearchMode = "text"
	SearchModeVector SearchMode = "vector"
	SearchModeHybrid SearchMode = "hybrid"
)

// SearchResult is a chunk projection with its relevance score.
// The JSON field names form the wire contract shared with HTTP consumers.
type SearchResult struct {
	ID          int64     `json:"id"`
	FilePath    string    `json:"file_path"`
	ChunkType   ChunkType `json:"chunk_type"`
	Content     string    `json:"content"`
	Metadata    Metadata  `json:"metadata"`
	LineStart   int       `json:"line_start"`
	LineEnd     int       `json:"line_end"`
	Score       float64   `json:"score"`
	TextScore   *float64  `json:"text_score,omitempty"`
	VectorScore *float64  `json:"vector_score,omitempty"`
}

// NewSearchResult projects a stored chunk into a result with the given score
func NewSearchResult(c *Chunk, score float64) SearchResult {
	return SearchResult{
		ID:        c.ID,
		FilePath:  c.FilePath,
		ChunkType: c.ChunkType,
		Content:   c.Content,
		Metadata:  c.Metadata,
		LineStart: c.LineStart,
		LineEnd:   c.LineEnd,
		Score:     score,
	}
}

// ModeFailure records a search mode that failed and was skipped
type ModeFailure struct {
	Mode  SearchMode `json:"mode"`
	Error string     `json:"error"`
}

// SearchResponse is the outcome of a search. Degraded lists the modes whose
// failure was absorbed; Results hold whatever the remaining modes returned.
type SearchResponse struct {
	Query    string         `json:"query"`
	Mode     SearchMode     `json:"search_type"`
	Results  []SearchResult `json:"results"`
	Count    int            `json:"count"`
	Degraded []ModeFailure  `json:"degraded,omitempty"`
	Duration time.Duration  `json:"-"`
}

// ContextResponse is a formatted LLM context block with its source results
type ContextResponse struct {
	Context      string         `json:"context"`
	SnippetCount int            `json:"snippet_count"`
	Results      []SearchResult `json:"results,omitempty"`
}

// IndexStatus is the outcome of indexing one file
type IndexStatus string

const (
	StatusIndexed   IndexStatus = "indexed"
	StatusUnchanged IndexStatus = "unchanged"
	StatusExcluded  IndexStatus = "excluded"
)

// IndexResult reports the outcome of indexing one file
type IndexResult struct {
	Path        string      `json:"file_path"`
	Status      IndexStatus `json:"status"`
	Chunks      int         `json:"chunks"`
	ContentHash string      `json:"content_hash,omitempty"`
}

// FileError records a file that failed to index during a directory run
type FileError struct {
	Path  string `json:"file_path"`
	Error string `json:"error"`
}

// DirectoryResult aggregates a directory indexing run
type DirectoryResult struct {
	RunID     string        `json:"run_id"`
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Excluded  int           `json:"excluded"`
	Removed   int           `json:"removed"`
	Errors    []FileError   `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Succeeded counts every file that ended in a consistent indexed state,
// whether it was rewritten or already up to date.
func (r *DirectoryResult) Succeeded() int {
	return r.Indexed + r.Unchanged
}

// ProviderInfo identifies the embedding provider behind an index
type ProviderInfo struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Stats summarizes the contents of the index
type Stats struct {
	TotalFiles           int            `json:"unique_files"`
	TotalChunks          int            `json:"total_chunks"`
	ChunksWithEmbeddings int            `json:"chunks_with_embeddings"`
	ChunksByType         map[string]int `json:"chunks_by_type"`
	EmbeddingModels      map[string]int `json:"embedding_models"`
	Provider             *ProviderInfo  `json:"embedding_provider,omitempty"`
}
