package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarag/internal/app"
	"github.com/dshills/luarag/internal/config"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/logging"
)

const escortLua = `-- Escort helpers
function spawnEscort(group, zone)
  local unit = group:getUnit(1)
  return unit
end

function despawnEscort(group)
  group:destroy()
end
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.Chunker.Strategy = "regex"
	cfg.Embedding.Provider = embedder.ProviderMock

	a, err := app.New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "escort.lua"), []byte(escortLua), 0o644))
	return NewServer(a), dir
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestIndexDirectoryAndSearch(t *testing.T) {
	s, dir := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleIndexDirectory(ctx, call(map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.EqualValues(t, 1, out["indexed"])
	assert.EqualValues(t, 1, out["succeeded"])

	// Second run finds nothing changed
	res, err = s.handleIndexDirectory(ctx, call(map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.EqualValues(t, 0, out["indexed"])
	assert.EqualValues(t, 1, out["unchanged"])

	res, err = s.handleSearchCode(ctx, call(map[string]interface{}{
		"query":       "despawnEscort",
		"search_type": "text",
	}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.Equal(t, "text", out["search_type"])
	results, ok := out["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Contains(t, first["content"], "despawnEscort")
	assert.EqualValues(t, 1, first["score"])
}

func TestSearchCode_Validation(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchCode(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchCode(ctx, call(map[string]interface{}{"query": "x", "limit": float64(500)}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchCode(ctx, call(map[string]interface{}{"query": "x", "search_type": "keyword"}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchCode(ctx, call(map[string]interface{}{"query": "x", "text_weight": 2.0}))
	requireCode(t, err, ErrorCodeInvalidParams)

	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"
	_, err = s.handleSearchCode(ctx, req)
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestIndexFile_DeleteFile(t *testing.T) {
	s, dir := newTestServer(t)
	ctx := context.Background()
	path := filepath.Join(dir, "escort.lua")

	res, err := s.handleIndexFile(ctx, call(map[string]interface{}{"file_path": path}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, "indexed", out["status"])
	assert.NotEmpty(t, out["content_hash"])

	_, err = s.handleIndexFile(ctx, call(map[string]interface{}{"file_path": filepath.Join(dir, "missing.lua")}))
	requireCode(t, err, ErrorCodePathNotFound)

	_, err = s.handleIndexFile(ctx, call(map[string]interface{}{"file_path": dir}))
	requireCode(t, err, ErrorCodeInvalidParams)

	res, err = s.handleDeleteFile(ctx, call(map[string]interface{}{"file_path": path}))
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, res)["deleted"])

	res, err = s.handleDeleteFile(ctx, call(map[string]interface{}{"file_path": path}))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, res)["deleted"])
}

func TestGetContext_Detailed(t *testing.T) {
	s, dir := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleIndexDirectory(ctx, call(map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)

	res, err := s.handleGetContext(ctx, call(map[string]interface{}{"query": "spawnEscort"}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Contains(t, out["context"], "File: ")
	assert.Contains(t, out["context"], "```lua")
	assert.Contains(t, out, "results")

	res, err = s.handleGetContext(ctx, call(map[string]interface{}{"query": "spawnEscort", "detailed": false}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.NotContains(t, out, "results")
	assert.Contains(t, out, "snippet_count")

	_, err = s.handleGetContext(ctx, call(map[string]interface{}{"query": "x", "max_tokens": float64(0)}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestGetRelatedChunks(t *testing.T) {
	s, dir := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleIndexDirectory(ctx, call(map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)

	res, err := s.handleSearchCode(ctx, call(map[string]interface{}{"query": "spawnEscort", "search_type": "text", "limit": float64(1)}))
	require.NoError(t, err)
	first := decode(t, res)["results"].([]interface{})[0].(map[string]interface{})

	res, err = s.handleGetRelatedChunks(ctx, call(map[string]interface{}{"chunk_id": first["id"]}))
	require.NoError(t, err)
	out := decode(t, res)
	for _, r := range out["results"].([]interface{}) {
		rel := r.(map[string]interface{})
		assert.Equal(t, first["file_path"], rel["file_path"])
		assert.NotEqual(t, first["id"], rel["id"])
	}

	_, err = s.handleGetRelatedChunks(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestEnhancePromptAndStats(t *testing.T) {
	s, dir := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleIndexDirectory(ctx, call(map[string]interface{}{"directory_path": dir}))
	require.NoError(t, err)

	res, err := s.handleEnhancePrompt(ctx, call(map[string]interface{}{"prompt": "What is the capital of France?"}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, "What is the capital of France?", out["enhanced_prompt"])
	assert.Equal(t, false, out["enhanced"])

	res, err = s.handleEnhancePrompt(ctx, call(map[string]interface{}{"prompt": "How do I spawn an escort group in a DCS mission?"}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.Equal(t, true, out["enhanced"])
	assert.Contains(t, out["enhanced_prompt"], "Question: How do I spawn an escort group in a DCS mission?")

	_, err = s.handleEnhancePrompt(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)

	res, err = s.handleGetStats(ctx, call(nil))
	require.NoError(t, err)
	out = decode(t, res)
	assert.EqualValues(t, 1, out["unique_files"])
	provider := out["embedding_provider"].(map[string]interface{})
	assert.Equal(t, "mock", provider["provider"])
}
