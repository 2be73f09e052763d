package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarag/internal/config"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/internal/logging"
	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/pkg/types"
)

const escortLua = `-- Escort helpers
function spawnEscort(group, zone)
  local unit = group:getUnit(1)
  trigger.action.outText("escort spawned", 10)
  return unit
end
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.Chunker.Strategy = "regex"
	cfg.Embedding.Provider = embedder.ProviderMock
	cfg.Index.Workers = 2

	a, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeLua(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApp_IndexSearchDelete(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLua(t, dir, "escort.lua", escortLua)
	writeLua(t, dir, "Moose/Moose.lua", "MOOSE = {}\n")

	res, err := a.IndexDirectory(ctx, dir, indexer.DirectoryOptions{Recursive: true, Pattern: "*.lua"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 0, res.Failed)

	resp, err := a.Retriever.Search(ctx, retriever.SearchRequest{Query: "spawnEscort", Mode: types.SearchModeText})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, path, resp.Results[0].FilePath)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	require.NotNil(t, stats.Provider)
	assert.Equal(t, embedder.ProviderMock, stats.Provider.Provider)

	deleted, err := a.DeleteFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, deleted)

	resp, err = a.Retriever.Search(ctx, retriever.SearchRequest{Query: "spawnEscort", Mode: types.SearchModeText})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestApp_ReindexInvalidatesCache(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLua(t, dir, "cap.lua", "function startCap()\n  return 1\nend\n")

	_, err := a.IndexFile(ctx, path)
	require.NoError(t, err)

	req := retriever.SearchRequest{Query: "launchCap", Mode: types.SearchModeText}
	resp, err := a.Retriever.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	writeLua(t, dir, "cap.lua", "function launchCap()\n  return 2\nend\n")
	res, err := a.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusIndexed, res.Status)

	resp, err = a.Retriever.Search(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestWriteGuard_Refcount(t *testing.T) {
	lockDB := filepath.Join(t.TempDir(), "index.db")
	g := &writeGuard{lock: indexer.NewFileLock(lockDB)}
	ctx := context.Background()

	r1, err := g.acquire(ctx)
	require.NoError(t, err)
	r2, err := g.acquire(ctx)
	require.NoError(t, err)

	other := indexer.NewFileLock(lockDB)
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "lock must be held while writes are running")

	r1()
	r1()
	ok, err = other.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	r2()
	ok, err = other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Unlock())
}

func TestNew_InvalidChunker(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.Chunker.Strategy = "ast"
	cfg.Embedding.Provider = embedder.ProviderMock

	_, err := New(cfg, logging.Discard())
	require.Error(t, err)
}
