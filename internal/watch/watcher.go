// Package watch keeps the index current while files change on disk.
//
// A Watcher subscribes to fsnotify events under the project root, re-indexes
// or removes one file per event, and feeds a Debouncer that decides when a
// downstream regeneration should run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/jward/codegraph/internal/syntax"
)

const (
	DefaultThreshold = 5
	DefaultIdleDelay = 30 * time.Second
)

// FileIndexer applies single-file changes to the index. Paths are relative
// to the watched root and slash separated.
type FileIndexer interface {
	ReindexFile(ctx context.Context, relPath string) (nodes, edges int, err error)
	RemoveFile(ctx context.Context, relPath string) error
	// RemoveDir drops every file under relDir and reports how many nodes
	// were deleted.
	RemoveDir(ctx context.Context, relDir string) (nodes int, err error)
}

// Ignorer decides whether a relative path is excluded from watching.
type Ignorer interface {
	Match(relPath string, isDir bool) bool
}

// Options configures a Watcher.
type Options struct {
	Root      string
	Ignore    Ignorer
	Threshold int
	IdleDelay time.Duration
	Logger    *slog.Logger
}

// Watcher turns file-system events into index mutations.
type Watcher struct {
	indexer FileIndexer
	regen   Regenerator
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New returns a stopped Watcher.
func New(indexer FileIndexer, regen Regenerator, opts Options) *Watcher {
	if opts.Threshold < 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = DefaultIdleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{indexer: indexer, regen: regen, opts: opts, logger: opts.Logger}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.opts.Root
}

// Running reports whether the watcher has been started and not stopped.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start subscribes to the root and every non-ignored subdirectory and starts
// the event and debounce goroutines. Starting a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.logger.Info("watch.already_running", "root", w.opts.Root)
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(w.opts.Root); err != nil {
		fsw.Close()
		return fmt.Errorf("watch: subscribe %s: %w", w.opts.Root, err)
	}
	w.addRecursive(fsw, w.opts.Root)

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	d := NewDebouncer(w.opts.Threshold, w.opts.IdleDelay, w.regen, w.logger)
	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error { return w.loop(gctx, fsw, d) })

	w.fsw, w.cancel, w.group = fsw, cancel, g
	w.running = true
	w.logger.Info("watch.start", "root", w.opts.Root)
	return nil
}

// Stop closes the subscription, cancels any pending debounce and waits for
// the goroutines to exit. Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.cancel()
	closeErr := w.fsw.Close()
	waitErr := w.group.Wait()
	w.running = false
	w.fsw, w.cancel, w.group = nil, nil, nil
	w.logger.Info("watch.stop", "root", w.opts.Root)
	return errors.Join(closeErr, waitErr)
}

// addRecursive subscribes dir's non-ignored subdirectories. Failures on
// individual subdirectories are logged and skipped.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == w.opts.Root {
			return nil
		}
		rel, ok := w.rel(path)
		if !ok {
			return nil
		}
		if w.ignored(rel, true) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("watch.subscribe_failed", "dir", rel, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, d *Debouncer) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, d, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch.error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, d *Debouncer, event fsnotify.Event) {
	rel, ok := w.rel(event.Name)
	if !ok {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.addDir(ctx, fsw, d, event.Name, rel)
			return
		}
		w.reindex(ctx, d, rel, "watch.add")
	case event.Has(fsnotify.Write):
		w.reindex(ctx, d, rel, "watch.change")
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The path is gone, so a directory can only be told apart by its
		// name: anything without a known extension may have been one.
		if syntax.Classify(rel) == syntax.Unsupported {
			w.removeDir(ctx, d, rel)
			return
		}
		w.remove(ctx, d, rel)
	}
}

// addDir subscribes a newly created directory and treats the supported files
// already inside it as adds.
func (w *Watcher) addDir(ctx context.Context, fsw *fsnotify.Watcher, d *Debouncer, dir, rel string) {
	if w.ignored(rel, true) {
		return
	}
	if err := fsw.Add(dir); err != nil {
		w.logger.Debug("watch.subscribe_failed", "dir", rel, "error", err)
	}
	w.addRecursive(fsw, dir)

	var files []string
	filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		r, ok := w.rel(path)
		if !ok {
			return nil
		}
		if e.IsDir() {
			if path != dir && w.ignored(r, true) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, r)
		return nil
	})
	for _, f := range files {
		w.reindex(ctx, d, f, "watch.add")
	}
}

func (w *Watcher) reindex(ctx context.Context, d *Debouncer, rel, event string) {
	if !w.relevant(rel) {
		return
	}
	nodes, edges, err := w.indexer.ReindexFile(ctx, rel)
	if err != nil {
		w.logger.Error("watch.reindex_failed", "file", rel, "error", err)
		return
	}
	w.logger.Info(event, "file", rel, "nodes", nodes, "edges", edges)
	d.Notify(ctx)
}

func (w *Watcher) remove(ctx context.Context, d *Debouncer, rel string) {
	if !w.relevant(rel) {
		return
	}
	if err := w.indexer.RemoveFile(ctx, rel); err != nil {
		w.logger.Error("watch.remove_failed", "file", rel, "error", err)
		return
	}
	w.logger.Info("watch.delete", "file", rel)
	d.Notify(ctx)
}

// removeDir drops the rows of a removed or renamed directory. The new name
// of a directory moved within the root arrives as its own Create event.
func (w *Watcher) removeDir(ctx context.Context, d *Debouncer, rel string) {
	if w.ignored(rel, true) {
		return
	}
	nodes, err := w.indexer.RemoveDir(ctx, rel)
	if err != nil {
		w.logger.Error("watch.remove_failed", "dir", rel, "error", err)
		return
	}
	if nodes == 0 {
		return
	}
	w.logger.Info("watch.delete", "dir", rel, "nodes", nodes)
	d.Notify(ctx)
}

// relevant reports whether rel is a parseable file outside the ignore set.
func (w *Watcher) relevant(rel string) bool {
	return syntax.Classify(rel) == syntax.Parsed && !w.ignored(rel, false)
}

func (w *Watcher) ignored(rel string, isDir bool) bool {
	return w.opts.Ignore != nil && w.opts.Ignore.Match(rel, isDir)
}

// rel converts an absolute event path to a slash-separated path relative to
// the root. Paths outside the root report false.
func (w *Watcher) rel(path string) (string, bool) {
	r, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return "", false
	}
	r = filepath.ToSlash(r)
	if r == "." || r == ".." || strings.HasPrefix(r, "../") {
		return "", false
	}
	return r, true
}
