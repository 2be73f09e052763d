package chunker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     []string
	}{
		{name: "empty text", text: "", keywords: DefaultKeywords, want: nil},
		{name: "no vocabulary", text: "unit", keywords: nil, want: nil},
		{name: "case insensitive", text: "Spawn a GROUP in the Zone", keywords: DefaultKeywords, want: []string{"group", "zone"}},
		{name: "vocabulary order", text: "zone then unit", keywords: []string{"unit", "zone"}, want: []string{"unit", "zone"}},
		{name: "duplicates dropped", text: "unit", keywords: []string{"unit", "UNIT"}, want: []string{"unit"}},
		{name: "camel case keyword", text: "missioncommands.addCommand()", keywords: []string{"missionCommands"}, want: []string{"missionCommands"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanKeywords(tt.text, tt.keywords))
		})
	}
}

func TestChunkKeywordsCustomVocabulary(t *testing.T) {
	opts := DefaultOptions()
	opts.Keywords = []string{"escort"}

	for _, c := range []Chunker{NewStructural(opts), NewRegex(opts)} {
		chunks := c.Chunk(context.Background(), "function escortFlight(unit)\n  return unit\nend\n", "e.lua")
		assert.Equal(t, []string{"escort"}, chunks[0].Metadata.DomainKeywords, c.Name())
	}
}
