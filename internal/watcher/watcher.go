package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/luarag/internal/indexer"
	"github.com/dshills/luarag/pkg/types"
)

// DefaultDebounce is the per-path settle window
const DefaultDebounce = 500 * time.Millisecond

// Indexer is the part of the indexing pipeline the watcher drives
type Indexer interface {
	IndexFile(ctx context.Context, path string) (*types.IndexResult, error)
	DeleteFile(ctx context.Context, path string) (bool, error)
	ShouldIndex(path string) bool
	SkipDir(path string) bool
}

// Options configures a Watcher
type Options struct {
	Pattern   string        // glob over base names (default: *.lua)
	Recursive bool          // watch subdirectories
	Debounce  time.Duration // default: DefaultDebounce
	Logger    *slog.Logger

	// OnChange is called after an event changed the index
	OnChange func(FileEvent)
}

// Watcher re-indexes files as they change on disk
type Watcher struct {
	idx       Indexer
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
	root      string
}

// New creates a Watcher over idx
func New(idx Indexer, opts Options) *Watcher {
	if opts.Pattern == "" {
		opts.Pattern = indexer.DefaultPattern
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		idx:    idx,
		opts:   opts,
		logger: opts.Logger.With("component", "watcher"),
	}
}

// Run watches root until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	w.fsw = fsw
	w.root = filepath.Clean(root)
	w.debouncer = NewDebouncer(w.opts.Debounce)
	defer w.debouncer.Stop()

	if err := w.addRecursive(w.root, false); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	w.logger.Info("watching", "root", w.root, "dirs", len(fsw.WatchList()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped", "root", w.root)
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case ev := <-w.debouncer.Output():
			w.apply(ctx, ev)
		}
	}
}

// handle converts an fsnotify event into debounced file events
func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name
	now := time.Now()

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.opts.Recursive && !w.idx.SkipDir(path) {
				if err := w.addRecursive(path, true); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
		if w.wants(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		}
	case event.Has(fsnotify.Write):
		if w.wants(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.wants(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
}

// wants reports whether path is an indexable source
func (w *Watcher) wants(path string) bool {
	return indexer.MatchPattern(w.opts.Pattern, path) && w.idx.ShouldIndex(path)
}

// addRecursive watches dir and, when recursive, every non-excluded
// subdirectory. With announce set, files found are queued as creates; a
// directory moved into the tree arrives with its contents.
func (w *Watcher) addRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if announce && d.Type().IsRegular() && w.wants(path) {
				w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
			}
			return nil
		}
		if path != w.root {
			if !w.opts.Recursive || w.idx.SkipDir(path) {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

// apply performs the index action for a settled event
func (w *Watcher) apply(ctx context.Context, ev FileEvent) {
	logger := w.logger.With("path", ev.Path, "op", ev.Operation.String())

	changed := false
	switch ev.Operation {
	case OpCreate, OpModify:
		res, err := w.idx.IndexFile(ctx, ev.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Gone before the window closed
			deleted, derr := w.idx.DeleteFile(ctx, ev.Path)
			if derr != nil {
				logger.Warn("delete failed", "error", derr)
				return
			}
			changed = deleted
		case err != nil:
			logger.Warn("re-index failed", "error", err)
			return
		default:
			changed = res.Status == types.StatusIndexed
			logger.Debug("re-indexed", "status", res.Status, "chunks", res.Chunks)
		}
	case OpDelete:
		deleted, err := w.idx.DeleteFile(ctx, ev.Path)
		if err != nil {
			logger.Warn("delete failed", "error", err)
			return
		}
		changed = deleted
		logger.Debug("removed from index", "deleted", deleted)
	}

	if changed && w.opts.OnChange != nil {
		w.opts.OnChange(ev)
	}
}
