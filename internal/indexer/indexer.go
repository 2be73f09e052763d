package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/luarag/internal/chunker"
	"github.com/dshills/luarag/internal/embedder"
	"github.com/dshills/luarag/internal/storage"
	"github.com/dshills/luarag/pkg/types"
)

// ErrIndexLocked is returned when another run holds the index
var ErrIndexLocked = errors.New("indexing already in progress")

// Indexer coordinates the indexing pipeline: hash -> chunk -> embed -> store
type Indexer struct {
	storage  storage.Storage
	chunker  chunker.Chunker
	embedder embedder.Embedder
	filter   *Filter
	logger   *slog.Logger

	// Worker pool configuration
	workers int

	paths   *pathLocks
	runLock IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers      int      // Number of concurrent workers (default: runtime.NumCPU())
	ExcludeDirs  []string // Directory names never indexed (default: DefaultExcludeDirs)
	ExcludeFiles []string // File names never indexed (default: DefaultExcludeFiles)
	Logger       *slog.Logger
}

// DirectoryOptions selects the files of a directory run
type DirectoryOptions struct {
	Recursive bool
	Pattern   string // glob over base names (default: *.lua)
}

// New creates a new Indexer instance
func New(store storage.Storage, ch chunker.Chunker, emb embedder.Embedder, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ExcludeDirs == nil {
		cfg.ExcludeDirs = DefaultExcludeDirs
	}
	if cfg.ExcludeFiles == nil {
		cfg.ExcludeFiles = DefaultExcludeFiles
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Indexer{
		storage:  store,
		chunker:  ch,
		embedder: emb,
		filter:   NewFilter(cfg.ExcludeDirs, cfg.ExcludeFiles),
		logger:   cfg.Logger.With("component", "indexer"),
		workers:  cfg.Workers,
		paths:    newPathLocks(),
	}
}

// ShouldIndex reports whether path passes the exclusion rules
func (idx *Indexer) ShouldIndex(path string) bool {
	return idx.filter.ShouldIndex(path)
}

// SkipDir reports whether directory path is excluded from indexing
func (idx *Indexer) SkipDir(path string) bool {
	return idx.filter.SkipDir(path)
}

// MatchPattern reports whether the base name of path matches the glob
// pattern; an empty pattern means DefaultPattern
func MatchPattern(pattern, path string) bool {
	return matchPattern(pattern, path)
}

// IndexFile reads path from disk and indexes it
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*types.IndexResult, error) {
	path = normalizePath(path)
	if !idx.filter.ShouldIndex(path) {
		return &types.IndexResult{Path: path, Status: types.StatusExcluded}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return idx.index(ctx, path, string(content), info.ModTime())
}

// IndexContent indexes content under path without reading the file
func (idx *Indexer) IndexContent(ctx context.Context, path, content string) (*types.IndexResult, error) {
	path = normalizePath(path)
	if !idx.filter.ShouldIndex(path) {
		return &types.IndexResult{Path: path, Status: types.StatusExcluded}, nil
	}
	return idx.index(ctx, path, content, time.Time{})
}

// index runs the per-file pipeline. Embeddings are generated before the
// transaction opens so a provider failure leaves the store untouched.
func (idx *Indexer) index(ctx context.Context, path, content string, modTime time.Time) (*types.IndexResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: %w", path, types.ErrEmptyContent)
	}

	unlock := idx.paths.lock(path)
	defer unlock()

	hash := types.ComputeContentHash([]byte(content))

	existing, err := idx.storage.FindFileByPath(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash {
		chunks, err := idx.storage.FindChunksByFile(ctx, path)
		if err != nil {
			return nil, err
		}
		idx.logger.Debug("file unchanged", "path", path)
		return &types.IndexResult{Path: path, Status: types.StatusUnchanged, Chunks: len(chunks), ContentHash: hash}, nil
	}

	drafts := idx.chunker.Chunk(ctx, content, path)
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%s: chunker produced no chunks", path)
	}

	texts := make([]string, len(drafts))
	for i := range drafts {
		texts[i] = drafts[i].Content
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", path, err)
	}
	if len(resp.Embeddings) != len(drafts) {
		return nil, types.ProviderError("embed "+path,
			fmt.Errorf("got %d embeddings for %d chunks", len(resp.Embeddings), len(drafts)))
	}

	file := &types.SourceFile{
		Path:         path,
		ContentHash:  hash,
		SizeBytes:    int64(len(content)),
		LastModified: modTime,
	}
	if err := idx.store(ctx, file, drafts, resp); err != nil {
		return nil, err
	}

	idx.logger.Debug("file indexed", "path", path, "chunks", len(drafts), "chunker", idx.chunker.Name())
	return &types.IndexResult{Path: path, Status: types.StatusIndexed, Chunks: len(drafts), ContentHash: hash}, nil
}

// store replaces the file's chunks and embeddings in one transaction
func (idx *Indexer) store(ctx context.Context, file *types.SourceFile, drafts []types.Chunk, resp *embedder.BatchEmbeddingResponse) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := tx.UpsertFile(ctx, file); err != nil {
		return err
	}
	if _, err := tx.DeleteChunksForFile(ctx, file.ID); err != nil {
		return err
	}

	model := resp.Model
	if model == "" {
		model = idx.embedder.Model()
	}

	ids := make([]int64, len(drafts))
	for i := range drafts {
		c := drafts[i]
		c.FileID = file.ID
		c.OrdinalIndex = i
		if c.ParentIndex != nil && *c.ParentIndex >= 0 && *c.ParentIndex < i {
			parentID := ids[*c.ParentIndex]
			c.ParentChunkID = &parentID
		}

		id, err := tx.InsertChunk(ctx, &c)
		if err != nil {
			return err
		}
		ids[i] = id

		vector := resp.Embeddings[i].Vector
		if err := tx.InsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   id,
			Model:     model,
			Dimension: len(vector),
			Vector:    vector,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// IndexDirectory indexes every matching file under root on a bounded
// worker pool. One file's failure is recorded and does not stop the run.
// A cancelled context stops scheduling; the partial result is returned with
// the context error.
func (idx *Indexer) IndexDirectory(ctx context.Context, root string, opts DirectoryOptions) (*types.DirectoryResult, error) {
	if !idx.runLock.TryAcquire() {
		return nil, ErrIndexLocked
	}
	defer idx.runLock.Release()

	start := time.Now()
	result := &types.DirectoryResult{RunID: uuid.NewString()}
	logger := idx.logger.With("run_id", result.RunID, "root", root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	files, excluded, err := idx.discoverFiles(root, opts)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	result.Excluded = excluded
	logger.Info("indexing directory", "files", len(files), "excluded", excluded, "workers", idx.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := idx.IndexFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				result.Failed++
				result.Errors = append(result.Errors, types.FileError{Path: path, Error: err.Error()})
				logger.Warn("file failed", "path", path, "error", err)
			case res.Status == types.StatusIndexed:
				result.Indexed++
			case res.Status == types.StatusUnchanged:
				result.Unchanged++
			case res.Status == types.StatusExcluded:
				result.Excluded++
			}
			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() == nil {
		removed, err := idx.removeMissing(ctx, root, opts, files)
		if err != nil {
			logger.Warn("stale file cleanup failed", "error", err)
			result.Errors = append(result.Errors, types.FileError{Path: root, Error: err.Error()})
		}
		result.Removed = removed
	}
	result.Duration = time.Since(start)

	logger.Info("directory indexed",
		"indexed", result.Indexed,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"removed", result.Removed,
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// discoverFiles walks root and returns matching files in walk order along
// with the number of excluded files. Excluded directories are pruned.
func (idx *Indexer) discoverFiles(root string, opts DirectoryOptions) ([]string, int, error) {
	var files []string
	excluded := 0
	root = filepath.Clean(root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || idx.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !matchPattern(opts.Pattern, path) {
			return nil
		}
		if !idx.filter.ShouldIndex(path) {
			excluded++
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, excluded, err
}

// removeMissing deletes stored files under root that the walk did not
// return. Only paths the same walk could have produced are considered: direct
// children of root when not recursive, and names matching opts.Pattern.
func (idx *Indexer) removeMissing(ctx context.Context, root string, opts DirectoryOptions, found []string) (int, error) {
	root = filepath.Clean(root)
	seen := make(map[string]bool, len(found))
	for _, p := range found {
		seen[normalizePath(p)] = true
	}

	stored, err := idx.storage.ListFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list files: %w", err)
	}

	removed := 0
	for _, f := range stored {
		if seen[f.Path] || !underRoot(root, f.Path, opts.Recursive) || !matchPattern(opts.Pattern, f.Path) {
			continue
		}
		deleted, err := idx.DeleteFile(ctx, f.Path)
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", f.Path, err)
		}
		if deleted {
			removed++
			idx.logger.Info("removed missing file", "path", f.Path)
		}
	}
	return removed, nil
}

// underRoot reports whether path lies inside root, directly or, when
// recursive, at any depth.
func underRoot(root, path string, recursive bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return recursive || !strings.ContainsRune(rel, filepath.Separator)
}

// DeleteFile removes path and its chunks from the index
func (idx *Indexer) DeleteFile(ctx context.Context, path string) (bool, error) {
	path = normalizePath(path)
	unlock := idx.paths.lock(path)
	defer unlock()

	deleted, err := idx.storage.DeleteFile(ctx, path)
	if err != nil {
		return false, err
	}
	if deleted {
		idx.logger.Debug("file deleted", "path", path)
	}
	return deleted, nil
}

// normalizePath cleans path so one file maps to one stored row
func normalizePath(path string) string {
	return filepath.Clean(path)
}
