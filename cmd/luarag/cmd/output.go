package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/luarag/pkg/types"
)

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResults writes a compact human listing of search results
func printResults(w io.Writer, results []types.SearchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "%d. %s:%d-%d [%s] score=%.3f id=%d\n",
			i+1, r.FilePath, r.LineStart, r.LineEnd, r.ChunkType, r.Score, r.ID)
		if name := r.Metadata.FunctionName(); name != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", name)
		} else if line := firstLine(r.Content); line != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", line)
		}
	}
}

func printDegraded(w io.Writer, degraded []types.ModeFailure) {
	for _, d := range degraded {
		_, _ = fmt.Fprintf(w, "warning: %s search failed: %s\n", d.Mode, d.Error)
	}
}

func printStats(w io.Writer, s *types.Stats) {
	_, _ = fmt.Fprintf(w, "Files:                 %d\n", s.TotalFiles)
	_, _ = fmt.Fprintf(w, "Chunks:                %d\n", s.TotalChunks)
	_, _ = fmt.Fprintf(w, "Chunks with embeddings: %d\n", s.ChunksWithEmbeddings)
	if s.Provider != nil {
		_, _ = fmt.Fprintf(w, "Provider:              %s (%s, %d dims)\n", s.Provider.Provider, s.Provider.Model, s.Provider.Dimension)
	}
	if len(s.ChunksByType) > 0 {
		_, _ = fmt.Fprintln(w, "By type:")
		for _, k := range sortedKeys(s.ChunksByType) {
			_, _ = fmt.Fprintf(w, "  %-14s %d\n", k, s.ChunksByType[k])
		}
	}
	if len(s.EmbeddingModels) > 0 {
		_, _ = fmt.Fprintln(w, "Embedding models:")
		for _, k := range sortedKeys(s.EmbeddingModels) {
			_, _ = fmt.Fprintf(w, "  %-24s %d\n", k, s.EmbeddingModels[k])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
