package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkValidate(t *testing.T) {
	parent := 0
	tests := []struct {
		name    string
		chunk   Chunk
		wantErr bool
	}{
		{
			name:  "valid function",
			chunk: Chunk{ChunkType: ChunkFunction, LineStart: 1, LineEnd: 3},
		},
		{
			name:  "single line",
			chunk: Chunk{ChunkType: ChunkComment, LineStart: 4, LineEnd: 4},
		},
		{
			name:    "inverted span",
			chunk:   Chunk{ChunkType: ChunkFunction, LineStart: 5, LineEnd: 3},
			wantErr: true,
		},
		{
			name:    "zero line",
			chunk:   Chunk{ChunkType: ChunkFunction, LineStart: 0, LineEnd: 3},
			wantErr: true,
		},
		{
			name:    "unknown type",
			chunk:   Chunk{ChunkType: "widget", LineStart: 1, LineEnd: 1},
			wantErr: true,
		},
		{
			name:    "parent after child",
			chunk:   Chunk{ChunkType: ChunkTable, LineStart: 1, LineEnd: 1, OrdinalIndex: 0, ParentIndex: &parent},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChunk)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))

	c := Chunk{Content: "function foo() end"}
	assert.Equal(t, 4, c.TokenCount())
}

func TestComputeContentHash(t *testing.T) {
	a := ComputeContentHash([]byte("local x = 1"))
	b := ComputeContentHash([]byte("local x = 1"))
	c := ComputeContentHash([]byte("local x = 2"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMetadataJSON_Function(t *testing.T) {
	m := Metadata{
		Function:       &FunctionMeta{Name: "foo", Parameters: []string{"a", "b"}, Local: true},
		DomainKeywords: []string{"unit"},
		NodeType:       "function_declaration",
		FilePath:       "scripts/init.lua",
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "foo", flat["function_name"])
	assert.Equal(t, []any{"a", "b"}, flat["parameters"])
	assert.Equal(t, true, flat["is_local"])
	assert.Equal(t, []any{"unit"}, flat["domain_keywords"])
	assert.Equal(t, "scripts/init.lua", flat["file_path"])

	var back Metadata
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Function)
	assert.Equal(t, "foo", back.Function.Name)
	assert.Equal(t, []string{"a", "b"}, back.Function.Parameters)
	assert.True(t, back.Function.Local)
	assert.Nil(t, back.Comment)
	assert.Equal(t, "function_declaration", back.NodeType)
}

func TestMetadataJSON_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, m Metadata)
	}{
		{
			name:  "comment",
			input: `{"comment_text":"helper"}`,
			check: func(t *testing.T, m Metadata) {
				require.NotNil(t, m.Comment)
				assert.Equal(t, "helper", m.Comment.Text)
			},
		},
		{
			name:  "block",
			input: `{"block_type":"if","node_type":"if_statement"}`,
			check: func(t *testing.T, m Metadata) {
				require.NotNil(t, m.Block)
				assert.Equal(t, "if", m.Block.Kind)
			},
		},
		{
			name:  "file with parse error",
			input: `{"function_count":0,"parse_error":"boom"}`,
			check: func(t *testing.T, m Metadata) {
				require.NotNil(t, m.File)
				assert.Equal(t, "boom", m.ParseError)
			},
		},
		{
			name:  "comment keeps raw text and body",
			input: `{"comment_text":"-- helper","comment_body":"helper"}`,
			check: func(t *testing.T, m Metadata) {
				require.NotNil(t, m.Comment)
				assert.Equal(t, "-- helper", m.Comment.Text)
				assert.Equal(t, "helper", m.Comment.Body)
				assert.Empty(t, m.Extra)
			},
		},
		{
			name:  "function carrying file metadata",
			input: `{"function_name":"foo","parameters":["a"],"function_count":1,"requires":["utils"]}`,
			check: func(t *testing.T, m Metadata) {
				require.NotNil(t, m.Function)
				require.NotNil(t, m.File)
				assert.Equal(t, "foo", m.Function.Name)
				assert.Equal(t, 1, m.File.FunctionCount)
				assert.Equal(t, []string{"utils"}, m.File.Requires)
				assert.Empty(t, m.Extra)
			},
		},
		{
			name:  "extra keys kept",
			input: `{"custom":"value","count":3}`,
			check: func(t *testing.T, m Metadata) {
				assert.Equal(t, "value", m.Extra["custom"])
				assert.Equal(t, "3", m.Extra["count"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			require.NoError(t, json.Unmarshal([]byte(tt.input), &m))
			tt.check(t, m)
		})
	}
}

func TestSearchResultWireShape(t *testing.T) {
	r := NewSearchResult(&Chunk{
		ID: 7, FilePath: "a.lua", ChunkType: ChunkFunction,
		Content: "function a() end", LineStart: 1, LineEnd: 1,
	}, 0.5)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	for _, key := range []string{"id", "file_path", "chunk_type", "content", "metadata", "line_start", "line_end", "score"} {
		assert.Contains(t, flat, key)
	}
	assert.NotContains(t, flat, "text_score")
	assert.Equal(t, float64(7), flat["id"])
}

func TestOpErrorClassification(t *testing.T) {
	cause := errors.New("connection refused")
	err := ProviderError("embed", cause)

	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStoreFailure)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, StoreError("insert", "a.lua", nil))
	assert.ErrorIs(t, StoreError("insert", "a.lua", cause), ErrStoreFailure)
}
