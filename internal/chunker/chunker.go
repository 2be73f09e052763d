package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/luarag/pkg/types"
)

const (
	// DefaultMinNodeBytes is the smallest syntax node kept as a chunk
	DefaultMinNodeBytes = 10

	// DefaultSpanLines is the function span assumed when no terminator is found
	DefaultSpanLines = 30

	// DefaultSegmentLines is the size of code_segment fallback chunks
	DefaultSegmentLines = 50

	// DefaultMinBlockLines is the smallest control block the regex strategy keeps
	DefaultMinBlockLines = 4

	// DefaultMaxScanLines bounds the forward scan for a block terminator
	DefaultMaxScanLines = 500
)

// Strategy names a chunking implementation
type Strategy string

const (
	StrategyStructural Strategy = "structural"
	StrategyRegex      Strategy = "regex"
)

// Chunker splits Lua source into ordered, line-addressed chunk drafts.
//
// Implementations never fail: unparseable input degrades to a single
// whole-file chunk with the reason recorded in metadata.parse_error.
// The returned slice always has at least one element.
type Chunker interface {
	Chunk(ctx context.Context, content, filePath string) []types.Chunk
	Name() Strategy
}

// Options tunes both strategies
type Options struct {
	MinNodeBytes  int
	SpanLines     int
	SegmentLines  int
	MinBlockLines int
	MaxScanLines  int
	Keywords      []string
}

// DefaultOptions returns the default chunking options
func DefaultOptions() Options {
	return Options{
		MinNodeBytes:  DefaultMinNodeBytes,
		SpanLines:     DefaultSpanLines,
		SegmentLines:  DefaultSegmentLines,
		MinBlockLines: DefaultMinBlockLines,
		MaxScanLines:  DefaultMaxScanLines,
		Keywords:      DefaultKeywords,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinNodeBytes <= 0 {
		o.MinNodeBytes = d.MinNodeBytes
	}
	if o.SpanLines <= 0 {
		o.SpanLines = d.SpanLines
	}
	if o.SegmentLines <= 0 {
		o.SegmentLines = d.SegmentLines
	}
	if o.MinBlockLines <= 0 {
		o.MinBlockLines = d.MinBlockLines
	}
	if o.MaxScanLines <= 0 {
		o.MaxScanLines = d.MaxScanLines
	}
	if o.Keywords == nil {
		o.Keywords = d.Keywords
	}
	return o
}

// New returns the chunker for the named strategy
func New(strategy Strategy, opts Options) (Chunker, error) {
	switch strategy {
	case StrategyStructural, "":
		return NewStructural(opts), nil
	case StrategyRegex:
		return NewRegex(opts), nil
	default:
		return nil, fmt.Errorf("unknown chunker strategy %q", strategy)
	}
}

// countLines returns the number of lines in content. A trailing newline
// does not start a new line; empty content has one line.
func countLines(content string) int {
	if content == "" {
		return 1
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// fileChunk builds the whole-file fallback chunk
func fileChunk(content, reason string) types.Chunk {
	return types.Chunk{
		ChunkType: types.ChunkFile,
		Content:   content,
		LineStart: 1,
		LineEnd:   countLines(content),
		Metadata: types.Metadata{
			File:       &types.FileMeta{},
			ParseError: reason,
		},
	}
}

// finalize assigns ordinals and the shared metadata every chunk carries
func finalize(chunks []types.Chunk, filePath string, keywords []string) []types.Chunk {
	for i := range chunks {
		c := &chunks[i]
		c.OrdinalIndex = i
		c.FilePath = filePath
		c.Metadata.FilePath = filePath
		if kws := ScanKeywords(c.Content, keywords); len(kws) > 0 {
			c.Metadata.DomainKeywords = kws
		}
	}
	return chunks
}
