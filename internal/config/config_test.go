package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarag/internal/chunker"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/retriever"
)

var envVars = []string{
	"LUARAG_DB_PATH", "LUARAG_LOG_LEVEL", "LUARAG_LOG_FORMAT", "LUARAG_LOG_FILE",
	"LUARAG_CHUNKER", "LUARAG_TEXT_WEIGHT", "LUARAG_VECTOR_WEIGHT", "LUARAG_MAX_TOKENS",
	"LUARAG_WORKERS", "LUARAG_HTTP_ADDR", "SEARCH_LIMIT",
	embedder.EnvProvider, embedder.EnvModel, embedder.EnvDimension, embedder.EnvOllamaURL,
	embedder.EnvOpenAIAPIKey, embedder.EnvOpenAIURL, embedder.EnvJinaAPIKey,
}

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		if v, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { _ = os.Setenv(name, v) })
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "structural", cfg.Chunker.Strategy)
	assert.Equal(t, 10, cfg.Chunker.MinNodeBytes)
	assert.Equal(t, 30, cfg.Chunker.SpanLines)
	assert.Equal(t, 50, cfg.Chunker.SegmentLines)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, 0.3, cfg.Search.TextWeight)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 8000, cfg.Search.MaxTokens)
	assert.Equal(t, 5, cfg.Search.RelatedLimit)
	assert.Equal(t, "*.lua", cfg.Index.Pattern)
	assert.True(t, cfg.Index.Recursive)
	assert.Contains(t, cfg.Index.ExcludeDirs, "XSAF.DB")
	assert.Contains(t, cfg.Index.ExcludeDirs, "Moose")
	assert.Contains(t, cfg.Index.ExcludeFiles, "Mist.lua")
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, strings.HasSuffix(cfg.DBPath, filepath.Join(".luarag", "index.db")))
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".luarag.yaml", `
db_path: /tmp/luarag-test.db
chunker:
  strategy: regex
search:
  limit: 25
  text_weight: 0.5
  vector_weight: 0.5
index:
  recursive: false
  exclude_dirs: [vendor]
watch:
  debounce: 2s
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/luarag-test.db", cfg.DBPath)
	assert.Equal(t, "regex", cfg.Chunker.Strategy)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, retriever.Weights{Text: 0.5, Vector: 0.5}, cfg.Weights())
	assert.False(t, cfg.Index.Recursive)
	assert.Equal(t, []string{"vendor"}, cfg.Index.ExcludeDirs)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)

	// Unset keys keep their defaults
	assert.Equal(t, 8000, cfg.Search.MaxTokens)
	assert.Equal(t, "*.lua", cfg.Index.Pattern)
}

func TestLoad_YMLFallback(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".luarag.yml", "search:\n  limit: 7\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.Limit)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".luarag.yaml", "search: [unclosed\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".luarag.yaml", "search:\n  limit: 25\n")

	t.Setenv("SEARCH_LIMIT", "40")
	t.Setenv("LUARAG_TEXT_WEIGHT", "0")
	t.Setenv("LUARAG_VECTOR_WEIGHT", "1")
	t.Setenv("LUARAG_CHUNKER", "REGEX")
	t.Setenv("LUARAG_DB_PATH", "/tmp/env.db")
	t.Setenv(embedder.EnvProvider, "jina")
	t.Setenv(embedder.EnvJinaAPIKey, "jina-key")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Search.Limit)
	assert.Equal(t, 0.0, cfg.Search.TextWeight)
	assert.Equal(t, 1.0, cfg.Search.VectorWeight)
	assert.Equal(t, "regex", cfg.Chunker.Strategy)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, "jina", cfg.Embedding.Provider)
	assert.Equal(t, "jina-key", cfg.Embedding.APIKey)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUARAG_MAX_TOKENS", "lots")
	t.Setenv("LUARAG_TEXT_WEIGHT", "heavy")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Search.MaxTokens)
	assert.Equal(t, 0.3, cfg.Search.TextWeight)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "LUARAG_MAX_TOKENS=1234\nSEARCH_LIMIT=3\n")
	t.Cleanup(func() { _ = os.Unsetenv("LUARAG_MAX_TOKENS") })

	// Variables already in the environment win over .env
	t.Setenv("SEARCH_LIMIT", "9")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Search.MaxTokens)
	assert.Equal(t, 9, cfg.Search.Limit)
}

func TestLoad_ExpandsHome(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("LUARAG_DB_PATH", "~/custom/index.db")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "custom", "index.db"), cfg.DBPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"text weight above one", func(c *Config) { c.Search.TextWeight = 1.5 }, "text_weight"},
		{"negative vector weight", func(c *Config) { c.Search.VectorWeight = -0.1 }, "vector_weight"},
		{"both weights zero", func(c *Config) { c.Search.TextWeight, c.Search.VectorWeight = 0, 0 }, "both be zero"},
		{"zero limit", func(c *Config) { c.Search.Limit = 0 }, "limit"},
		{"zero max tokens", func(c *Config) { c.Search.MaxTokens = 0 }, "max_tokens"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding provider"},
		{"unknown chunker", func(c *Config) { c.Chunker.Strategy = "ast" }, "chunker"},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
		{"bad pattern", func(c *Config) { c.Index.Pattern = "[" }, "pattern"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "db_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidWrapped(t *testing.T) {
	clearEnv(t)
	t.Setenv(embedder.EnvProvider, "cohere")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConversions(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunker.Keywords = []string{"AIRBASE"}
	cfg.Embedding.Provider = embedder.ProviderMock
	cfg.Embedding.Dimension = 32
	cfg.Index.Recursive = false

	opts := cfg.ChunkerOptions()
	assert.Equal(t, chunker.DefaultSpanLines, opts.SpanLines)
	assert.Equal(t, []string{"AIRBASE"}, opts.Keywords)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderMock, ec.Provider)
	assert.Equal(t, 32, ec.Dimension)

	do := cfg.DirectoryOptions()
	assert.False(t, do.Recursive)
	assert.Equal(t, "*.lua", do.Pattern)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.Limit = 42
	cfg.Embedding.APIKey = "secret"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".luarag.yaml")))

	data, err := os.ReadFile(filepath.Join(dir, ".luarag.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.Limit)
}
