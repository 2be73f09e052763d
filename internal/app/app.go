// Package app assembles the luarag components from a configuration and
// exposes the operations shared by the CLI, the MCP server and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/luarag/internal/chunker"
	"github.com/dshills/luarag/internal/config"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/enhancer"
	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/internal/storage"
	"github.com/dshills/luarag/internal/watcher"
	"github.com/dshills/luarag/pkg/types"
)

// LockWait bounds how long a write waits for another process's index lock
const LockWait = 30 * time.Second

// App holds one instance of every component
type App struct {
	Config    *config.Config
	Storage   storage.Storage
	Embedder  embedder.Embedder
	Chunker   chunker.Chunker
	Indexer   *indexer.Indexer
	Retriever *retriever.Retriever
	Enhancer  *enhancer.Enhancer
	Logger    *slog.Logger

	writes *writeGuard
}

// New opens the store and builds the component graph described by cfg
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ch, err := chunker.New(chunker.Strategy(cfg.Chunker.Strategy), cfg.ChunkerOptions())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	idx := indexer.New(store, ch, emb, indexer.Config{
		Workers:      cfg.Index.Workers,
		ExcludeDirs:  cfg.Index.ExcludeDirs,
		ExcludeFiles: cfg.Index.ExcludeFiles,
		Logger:       logger,
	})

	ret := retriever.New(store, emb, retriever.Config{
		DefaultLimit: cfg.Search.Limit,
		MaxTokens:    cfg.Search.MaxTokens,
		Weights:      cfg.Weights(),
		CacheSize:    cfg.Search.QueryCacheSize,
		Logger:       logger,
	})

	enh := enhancer.New(ret, enhancer.Config{
		MaxTokens: cfg.Search.MaxTokens,
		Logger:    logger,
	})

	a := &App{
		Config:    cfg,
		Storage:   store,
		Embedder:  emb,
		Chunker:   ch,
		Indexer:   idx,
		Retriever: ret,
		Enhancer:  enh,
		Logger:    logger.With("component", "app"),
		writes:    &writeGuard{},
	}
	if cfg.DBPath != ":memory:" {
		a.writes.lock = indexer.NewFileLock(cfg.DBPath)
	}

	a.Logger.Debug("components ready",
		"db", cfg.DBPath,
		"chunker", ch.Name(),
		"provider", emb.Provider(),
		"model", emb.Model(),
		"storage_mode", storage.BuildMode)
	return a, nil
}

// Close releases the embedder and the store
func (a *App) Close() error {
	_ = a.Embedder.Close()
	return a.Storage.Close()
}

// IndexFile indexes one file under the index lock
func (a *App) IndexFile(ctx context.Context, path string) (*types.IndexResult, error) {
	release, err := a.writes.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := a.Indexer.IndexFile(ctx, path)
	if err == nil && res.Status == types.StatusIndexed {
		a.Retriever.InvalidateCache()
	}
	return res, err
}

// IndexDirectory indexes a directory tree under the index lock
func (a *App) IndexDirectory(ctx context.Context, dir string, opts indexer.DirectoryOptions) (*types.DirectoryResult, error) {
	release, err := a.writes.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := a.Indexer.IndexDirectory(ctx, dir, opts)
	if res != nil && (res.Indexed > 0 || res.Removed > 0) {
		a.Retriever.InvalidateCache()
	}
	return res, err
}

// DeleteFile removes a file from the index under the index lock
func (a *App) DeleteFile(ctx context.Context, path string) (bool, error) {
	release, err := a.writes.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	deleted, err := a.Indexer.DeleteFile(ctx, path)
	if deleted {
		a.Retriever.InvalidateCache()
	}
	return deleted, err
}

// ShouldIndex reports whether path passes the exclusion rules
func (a *App) ShouldIndex(path string) bool {
	return a.Indexer.ShouldIndex(path)
}

// SkipDir reports whether directory path is excluded
func (a *App) SkipDir(path string) bool {
	return a.Indexer.SkipDir(path)
}

// Stats returns the index statistics with the active provider
func (a *App) Stats(ctx context.Context) (*types.Stats, error) {
	stats, err := a.Storage.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Provider = embedder.Info(a.Embedder)
	return stats, nil
}

// Watch keeps dir indexed until ctx is cancelled
func (a *App) Watch(ctx context.Context, dir string) error {
	w := watcher.New(a, watcher.Options{
		Pattern:   a.Config.Index.Pattern,
		Recursive: a.Config.Index.Recursive,
		Debounce:  a.Config.Watch.Debounce,
		Logger:    a.Logger,
	})
	return w.Run(ctx, dir)
}

// writeGuard holds the cross-process lock while any write in this process
// is running
type writeGuard struct {
	mu   sync.Mutex
	n    int
	lock *indexer.FileLock
}

func (g *writeGuard) acquire(ctx context.Context) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.n == 0 && g.lock != nil {
		lctx, cancel := context.WithTimeout(ctx, LockWait)
		defer cancel()
		if err := g.lock.Lock(lctx); err != nil {
			return nil, err
		}
	}
	g.n++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.n--
			if g.n == 0 && g.lock != nil {
				_ = g.lock.Unlock()
			}
		})
	}, nil
}
