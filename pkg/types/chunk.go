package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ChunkType represents the kind of source region a chunk covers
type ChunkType string

const (
	ChunkFunction     ChunkType = "function"
	ChunkTable        ChunkType = "table"
	ChunkComment      ChunkType = "comment"
	ChunkControlBlock ChunkType = "control_block"
	ChunkAssignment   ChunkType = "assignment"

	// Fallback types produced when no structural unit could be extracted
	ChunkFile        ChunkType = "file"
	ChunkCodeSegment ChunkType = "code_segment"
)

// AllChunkTypes lists every valid chunk type in declaration order
var AllChunkTypes = []ChunkType{
	ChunkFunction, ChunkTable, ChunkComment, ChunkControlBlock,
	ChunkAssignment, ChunkFile, ChunkCodeSegment,
}

// IsValid reports whether t is a known chunk type
func (t ChunkType) IsValid() bool {
	for _, known := range AllChunkTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SourceFile is an indexed file tracked by content hash
type SourceFile struct {
	ID           int64
	Path         string
	ContentHash  string // hex SHA-256 of the raw bytes
	SizeBytes    int64
	LastModified time.Time
	IndexedAt    time.Time
}

// Chunk is a line-addressed region of a source file.
//
// Chunks produced by a chunker are drafts: ID, FileID and ParentChunkID are
// zero and ParentIndex refers to the ordinal of the enclosing chunk.
// Stored chunks carry the store-assigned identifiers instead.
type Chunk struct {
	// Identification
	ID       int64
	FileID   int64
	FilePath string

	// Position among the chunks of the same file
	OrdinalIndex int

	// Hierarchy. Weak references only: never used for deletion.
	ParentIndex   *int
	ParentChunkID *int64

	// Content
	ChunkType ChunkType
	Content   string
	LineStart int
	LineEnd   int
	Metadata  Metadata
}

// ValidateContent checks the line span of the chunk
func (c *Chunk) ValidateContent() error {
	if c.LineStart <= 0 || c.LineEnd <= 0 {
		return fmt.Errorf("%w: line numbers must be positive", ErrInvalidChunk)
	}

	if c.LineStart > c.LineEnd {
		return fmt.Errorf("%w: line_start %d after line_end %d", ErrInvalidChunk, c.LineStart, c.LineEnd)
	}

	if c.OrdinalIndex < 0 {
		return fmt.Errorf("%w: negative ordinal index", ErrInvalidChunk)
	}

	return nil
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if !c.ChunkType.IsValid() {
		return fmt.Errorf("%w: unknown chunk type %q", ErrInvalidChunk, c.ChunkType)
	}

	if c.ParentIndex != nil && *c.ParentIndex >= c.OrdinalIndex {
		return errors.Join(ErrInvalidChunk, errors.New("parent must precede child"))
	}

	return nil
}

// TokenCount estimates the number of tokens in the chunk content.
// Uses the characters / 4 heuristic.
func (c *Chunk) TokenCount() int {
	return EstimateTokens(c.Content)
}

// LineCount returns the number of lines the chunk spans
func (c *Chunk) LineCount() int {
	return c.LineEnd - c.LineStart + 1
}

// Contains reports whether other lies entirely within the line range of c
func (c *Chunk) Contains(other *Chunk) bool {
	return other.LineStart >= c.LineStart && other.LineEnd <= c.LineEnd
}

// EstimateTokens approximates the token count of text as len/4
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ComputeContentHash returns the hex SHA-256 digest of content
func ComputeContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
