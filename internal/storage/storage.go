package storage

import (
	"context"
	"time"

	"github.com/dshills/luarag/pkg/types"
)

// ErrNotFound is returned when a requested file or chunk doesn't exist
var ErrNotFound = types.ErrNotFound

// Storage defines the interface for persisting and querying indexed Lua chunks
type Storage interface {
	// File operations
	FindFileByPath(ctx context.Context, path string) (*types.SourceFile, error)
	UpsertFile(ctx context.Context, file *types.SourceFile) error
	DeleteFile(ctx context.Context, path string) (bool, error)
	ListFiles(ctx context.Context) ([]*types.SourceFile, error)

	// Chunk operations
	DeleteChunksForFile(ctx context.Context, fileID int64) (int, error)
	InsertChunk(ctx context.Context, chunk *types.Chunk) (int64, error)
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	FindChunksByFile(ctx context.Context, path string) ([]*types.Chunk, error)
	RelatedChunks(ctx context.Context, chunkID int64, limit int) ([]*types.Chunk, error)

	// Embedding operations
	InsertEmbedding(ctx context.Context, embedding *Embedding) error

	// Search operations
	TextSearch(ctx context.Context, pattern string, limit int) ([]*types.Chunk, error)
	VectorSearch(ctx context.Context, vector []float32, model string, limit int) ([]VectorResult, error)

	// Status operations
	GetStats(ctx context.Context) (*types.Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Embedding is the vector for one chunk under one model
type Embedding struct {
	ID        int64
	ChunkID   int64
	Model     string
	Dimension int
	Vector    []float32
	CreatedAt time.Time
}

// VectorResult is a chunk ranked by cosine similarity to a query vector
type VectorResult struct {
	Chunk      *types.Chunk
	Similarity float64
}
