package retriever

import (
	"fmt"
	"strings"

	"github.com/dshills/luarag/pkg/types"
)

// DefaultMaxTokens is the context budget when none is given
const DefaultMaxTokens = 8000

// EstimateTokens is the cheap four-characters-per-token estimate
func EstimateTokens(s string) int {
	return len(s) / 4
}

// formatBlock renders one result as a header plus fenced Lua block
func formatBlock(r types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (lines %d-%d)\n", r.FilePath, r.LineStart, r.LineEnd)
	fmt.Fprintf(&b, "Type: %s\n", r.ChunkType)
	if len(r.Metadata.DomainKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(r.Metadata.DomainKeywords, ", "))
	}
	b.WriteString("```lua\n")
	b.WriteString(r.Content)
	if !strings.HasSuffix(r.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```")
	return b.String()
}

// FormatContext renders results in rank order into one context string whose
// token estimate stays within maxTokens. Whole chunks are dropped once the
// budget would be exceeded; a chunk is never cut. It also returns how many
// results were included.
func FormatContext(results []types.SearchResult, maxTokens int) (string, int) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var b strings.Builder
	count := 0
	for _, r := range results {
		block := formatBlock(r)
		sep := ""
		if count > 0 {
			sep = "\n\n"
		}
		if (b.Len()+len(sep)+len(block))/4 > maxTokens {
			break
		}
		b.WriteString(sep)
		b.WriteString(block)
		count++
	}
	return b.String(), count
}
