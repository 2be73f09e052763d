package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarag/internal/app"
	"github.com/dshills/luarag/internal/config"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/logging"
)

const zonesLua = `-- Zone helpers
function isUnitInZone(unit, zone)
  local pos = unit:getPoint()
  return zone:isPointInside(pos)
end

local zones = {
  alpha = "ZONE_ALPHA",
  bravo = "ZONE_BRAVO",
}
`

func newTestAPI(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.Chunker.Strategy = "regex"
	cfg.Embedding.Provider = embedder.ProviderMock

	a, err := app.New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zones.lua"), []byte(zonesLua), 0o644))
	return NewServer(a), dir
}

func do(t *testing.T, s *Server, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func indexDir(t *testing.T, s *Server, dir string) {
	t.Helper()
	status, out := do(t, s, http.MethodPost, "/index/directory", map[string]interface{}{"directory_path": dir})
	require.Equal(t, http.StatusOK, status, out)
	require.EqualValues(t, 1, out["indexed"])
}

func TestHealth(t *testing.T) {
	s, _ := newTestAPI(t)
	status, out := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", out["status"])
}

func TestSearch(t *testing.T) {
	s, dir := newTestAPI(t)
	indexDir(t, s, dir)

	status, out := do(t, s, http.MethodPost, "/search", map[string]interface{}{
		"query":       "isUnitInZone",
		"search_type": "text",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text", out["search_type"])
	assert.GreaterOrEqual(t, out["count"], float64(1))

	results := out["results"].([]interface{})
	first := results[0].(map[string]interface{})
	for _, key := range []string{"id", "file_path", "chunk_type", "content", "metadata", "line_start", "line_end", "score"} {
		assert.Contains(t, first, key)
	}

	status, out = do(t, s, http.MethodPost, "/search", map[string]interface{}{"query": "zone"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hybrid", out["search_type"])
}

func TestSearch_BadInput(t *testing.T) {
	s, _ := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"empty query", map[string]interface{}{"query": "  "}},
		{"bad mode", map[string]interface{}{"query": "zone", "search_type": "fuzzy"}},
		{"limit too large", map[string]interface{}{"query": "zone", "limit": 1000}},
		{"weights out of range", map[string]interface{}{"query": "zone", "text_weight": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, s, http.MethodPost, "/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestContext(t *testing.T) {
	s, dir := newTestAPI(t)
	indexDir(t, s, dir)

	status, out := do(t, s, http.MethodPost, "/context", map[string]interface{}{"query": "zone"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, out["context"], "```lua")
	assert.Contains(t, out, "results")

	status, out = do(t, s, http.MethodPost, "/context", map[string]interface{}{"query": "zone", "detailed": false})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, out, "results")
	assert.Contains(t, out, "snippet_count")
}

func TestEnhancePrompt(t *testing.T) {
	s, dir := newTestAPI(t)
	indexDir(t, s, dir)

	status, out := do(t, s, http.MethodPost, "/enhance_prompt", map[string]interface{}{"prompt": "bake a cake"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bake a cake", out["enhanced_prompt"])

	status, out = do(t, s, http.MethodPost, "/enhance_prompt", map[string]interface{}{"prompt": "check if a unit is in a zone"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, out["enhanced_prompt"], "Question: check if a unit is in a zone")
}

func TestStatsAndRelated(t *testing.T) {
	s, dir := newTestAPI(t)
	indexDir(t, s, dir)

	status, out := do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, out["unique_files"])
	assert.GreaterOrEqual(t, out["total_chunks"], float64(1))

	_, search := do(t, s, http.MethodPost, "/search", map[string]interface{}{"query": "isUnitInZone", "search_type": "text", "limit": 1})
	id := search["results"].([]interface{})[0].(map[string]interface{})["id"].(float64)

	status, out = do(t, s, http.MethodGet, "/chunks/"+jsonNumber(id)+"/related?limit=3", nil)
	require.Equal(t, http.StatusOK, status)
	assert.LessOrEqual(t, out["count"], float64(3))

	status, _ = do(t, s, http.MethodGet, "/chunks/abc/related", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIndexFileAndDelete(t *testing.T) {
	s, dir := newTestAPI(t)
	path := filepath.Join(dir, "zones.lua")

	status, out := do(t, s, http.MethodPost, "/index/file", map[string]interface{}{"file_path": path})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "indexed", out["status"])

	status, out = do(t, s, http.MethodPost, "/index/file", map[string]interface{}{"file_path": path})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unchanged", out["status"])

	status, _ = do(t, s, http.MethodPost, "/index/file", map[string]interface{}{"file_path": filepath.Join(dir, "nope.lua")})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, s, http.MethodPost, "/index/file", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = do(t, s, http.MethodDelete, "/files?path="+url.QueryEscape(path), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["deleted"])

	status, _ = do(t, s, http.MethodDelete, "/files", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func jsonNumber(f float64) string {
	data, _ := json.Marshal(int64(f))
	return string(data)
}
