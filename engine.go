package codegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jward/codegraph/internal/config"
	"github.com/jward/codegraph/internal/extract"
	"github.com/jward/codegraph/internal/resolve"
	"github.com/jward/codegraph/internal/store"
	"github.com/jward/codegraph/internal/syntax"
	"github.com/jward/codegraph/internal/watch"
)

var (
	// ErrIndexInProgress is returned when IndexProject is called while
	// another IndexProject on the same Engine is running.
	ErrIndexInProgress = errors.New("codegraph: indexing already in progress")

	// ErrNoRoot is returned by single-file operations before a project
	// root has been indexed.
	ErrNoRoot = errors.New("codegraph: no project root indexed")

	errParseFailed = errors.New("parse failed")
)

// Engine orchestrates the codegraph pipeline: file discovery, extraction,
// resolution, change watching, and query access.
type Engine struct {
	store    *store.Store
	provider *syntax.Provider
	logger   *slog.Logger

	ignorePatterns []string
	useGitignore   bool
	watchEnabled   bool
	threshold      int
	idleDelay      time.Duration
	regen          watch.Regenerator
	caseSensitive  bool
	searchLimit    int
	grammarLoader  syntax.Loader

	indexing atomic.Bool

	mu      sync.Mutex
	root    string
	watcher *watch.Watcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIgnorePatterns adds gitignore-style patterns to the default ignore set.
func WithIgnorePatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.ignorePatterns = append(e.ignorePatterns, patterns...)
	}
}

// WithGitignore controls whether the project's .gitignore is honoured.
// Enabled by default.
func WithGitignore(enabled bool) Option {
	return func(e *Engine) {
		e.useGitignore = enabled
	}
}

// WithWatch controls whether IndexProject leaves a change watcher running
// on the project root. Enabled by default.
func WithWatch(enabled bool) Option {
	return func(e *Engine) {
		e.watchEnabled = enabled
	}
}

// WithDebounce sets how many changes trigger a regeneration immediately and
// how long the project must be quiet before pending changes trigger one.
func WithDebounce(threshold int, idle time.Duration) Option {
	return func(e *Engine) {
		e.threshold = threshold
		e.idleDelay = idle
	}
}

// WithRegenerator sets the callback invoked on debounced regenerations.
func WithRegenerator(r watch.Regenerator) Option {
	return func(e *Engine) {
		e.regen = r
	}
}

// WithCaseSensitiveSearch makes name search match case exactly.
func WithCaseSensitiveSearch(enabled bool) Option {
	return func(e *Engine) {
		e.caseSensitive = enabled
	}
}

// WithSearchLimit sets the default number of search results, capped at
// store.MaxSearchResults.
func WithSearchLimit(n int) Option {
	return func(e *Engine) {
		e.searchLimit = n
	}
}

// WithGrammarLoader replaces the tree-sitter grammar constructor.
func WithGrammarLoader(fn syntax.Loader) Option {
	return func(e *Engine) {
		e.grammarLoader = fn
	}
}

// New creates an Engine backed by a SQLite database at dbPath, creating the
// schema if needed. An empty dbPath fails with store.ErrNoLocation.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		useGitignore: true,
		watchEnabled: true,
		threshold:    watch.DefaultThreshold,
		idleDelay:    watch.DefaultIdleDelay,
		searchLimit:  store.MaxSearchResults,
	}
	for _, opt := range opts {
		opt(e)
	}

	s, err := store.Open(dbPath, store.WithCaseSensitiveSearch(e.caseSensitive))
	if err != nil {
		return nil, fmt.Errorf("codegraph: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("codegraph: migrate: %w", err)
	}
	e.store = s
	e.provider = syntax.NewProvider(syntax.WithLogger(e.logger), syntax.WithLoader(e.grammarLoader))
	return e, nil
}

// Close stops the watcher and releases the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()

	var stopErr error
	if w != nil {
		stopErr = w.Stop()
	}
	return errors.Join(stopErr, e.store.Close())
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store, limit: e.searchLimit}
}

// Root returns the absolute root of the last indexed project, or "" if
// nothing has been indexed.
func (e *Engine) Root() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Watching reports whether a change watcher is running.
func (e *Engine) Watching() bool {
	e.mu.Lock()
	w := e.watcher
	e.mu.Unlock()
	return w != nil && w.Running()
}

// StopWatching stops the change watcher if one is running.
func (e *Engine) StopWatching() error {
	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}

// IndexProject rebuilds the index for the project at root.
//
// The steps are strictly ordered:
//  1. Load the grammars. Failure is returned.
//  2. Clear every node and edge.
//  3. Enumerate supported and scan-only files, skipping ignored paths.
//  4. Pass 1: read, parse and extract each parseable file and insert its
//     nodes. Per-file failures are logged and the file is skipped.
//  5. Pass 2: for each file with nodes, parse again, resolve against the
//     whole store and insert its edges. Per-file failures are skipped.
//  6. Start the change watcher on root, unless disabled.
//
// Store write failures abort the run.
func (e *Engine) IndexProject(ctx context.Context, root string) (*Summary, error) {
	if !e.indexing.CompareAndSwap(false, true) {
		return nil, ErrIndexInProgress
	}
	defer e.indexing.Store(false)

	start := time.Now()
	if err := e.provider.Load(ctx); err != nil {
		return nil, fmt.Errorf("codegraph: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("codegraph: resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("codegraph: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("codegraph: root %s is not a directory", abs)
	}
	ignorer, err := config.NewIgnorer(abs, e.patterns(), e.useGitignore)
	if err != nil {
		return nil, fmt.Errorf("codegraph: %w", err)
	}

	e.mu.Lock()
	e.root = abs
	e.mu.Unlock()

	e.logger.Info("index.start", "root", abs)
	if err := e.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("codegraph: clear: %w", err)
	}

	files, err := listFiles(abs, ignorer)
	if err != nil {
		return nil, fmt.Errorf("codegraph: %w", err)
	}
	sum := &Summary{FilesScanned: len(files)}
	skipped := make(map[string]bool)

	// Pass 1: nodes.
	var withNodes []string
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if syntax.Classify(rel) != syntax.Parsed {
			continue
		}
		nodes, err := e.extractFile(ctx, abs, rel)
		if err != nil {
			e.logger.Warn("index.skip", "file", rel, "pass", "extract", "error", err)
			skipped[rel] = true
			continue
		}
		if err := e.store.InsertNodes(ctx, nodes); err != nil {
			return nil, fmt.Errorf("codegraph: insert nodes for %s: %w", rel, err)
		}
		sum.FilesIndexed++
		sum.NodesCreated += len(nodes)
		if len(nodes) > 0 {
			withNodes = append(withNodes, rel)
		}
	}

	// Pass 2: edges, against the complete node set.
	for _, rel := range withNodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		edges, err := e.resolveFile(ctx, abs, rel)
		if err != nil {
			e.logger.Warn("index.skip", "file", rel, "pass", "resolve", "error", err)
			skipped[rel] = true
			continue
		}
		if err := e.store.InsertEdges(ctx, edges); err != nil {
			return nil, fmt.Errorf("codegraph: insert edges for %s: %w", rel, err)
		}
		sum.EdgesCreated += len(edges)
	}
	sum.FilesSkipped = len(skipped)
	sum.Duration = time.Since(start)

	e.logger.Info("index.done",
		"root", abs,
		"files_scanned", sum.FilesScanned,
		"files_indexed", sum.FilesIndexed,
		"files_skipped", sum.FilesSkipped,
		"nodes", sum.NodesCreated,
		"edges", sum.EdgesCreated,
		"duration", sum.Duration,
	)

	if e.watchEnabled {
		if err := e.startWatcher(ctx, abs, ignorer); err != nil {
			return sum, fmt.Errorf("codegraph: %w", err)
		}
	}
	return sum, nil
}

func (e *Engine) patterns() []string {
	out := make([]string, 0, len(config.DefaultIgnore)+len(e.ignorePatterns))
	out = append(out, config.DefaultIgnore...)
	return append(out, e.ignorePatterns...)
}

// startWatcher starts a watcher on root. A watcher already running on the
// same root is left alone; one on another root is replaced.
func (e *Engine) startWatcher(ctx context.Context, root string, ignorer *config.Ignorer) error {
	// A watcher's loop may be waiting on e.mu inside ReindexFile: e.mu is
	// never held while calling into a watcher.
	e.mu.Lock()
	old := e.watcher
	e.mu.Unlock()
	if old != nil && old.Root() == root && old.Running() {
		return nil
	}

	e.mu.Lock()
	if e.watcher == old {
		e.watcher = nil
	}
	e.mu.Unlock()
	if old != nil {
		if err := old.Stop(); err != nil {
			e.logger.Warn("watch.stop_failed", "root", old.Root(), "error", err)
		}
	}

	w := watch.New(e, e.regen, watch.Options{
		Root:      root,
		Ignore:    ignorer,
		Threshold: e.threshold,
		IdleDelay: e.idleDelay,
		Logger:    e.logger,
	})
	// The watcher outlives the indexing call.
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	e.mu.Lock()
	e.watcher = w
	e.mu.Unlock()
	return nil
}

// parseFile reads and parses rel. The caller must Close the tree.
func (e *Engine) parseFile(ctx context.Context, root, rel string) (*syntax.Tree, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	tree, err := e.provider.Parse(ctx, content, filepath.Ext(rel))
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errParseFailed
	}
	return tree, nil
}

func (e *Engine) extractFile(ctx context.Context, root, rel string) ([]*store.Node, error) {
	tree, err := e.parseFile(ctx, root, rel)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return extract.Extract(tree, rel), nil
}

func (e *Engine) resolveFile(ctx context.Context, root, rel string) ([]*store.Edge, error) {
	tree, err := e.parseFile(ctx, root, rel)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	nodes, err := e.store.NodesByFile(ctx, rel)
	if err != nil {
		return nil, err
	}
	return resolve.Resolve(ctx, e.store, tree, rel, nodes)
}

// ReindexFile replaces the index rows of one project-relative file: read
// and parse it, delete its old nodes (and their edges), insert the freshly
// extracted nodes, then resolve and insert its edges. When reading or parsing
// fails the old rows are kept. Edges other files had into the old nodes are
// not recreated.
func (e *Engine) ReindexFile(ctx context.Context, relPath string) (nodes, edges int, err error) {
	root := e.Root()
	if root == "" {
		return 0, 0, ErrNoRoot
	}
	if err := e.provider.Load(ctx); err != nil {
		return 0, 0, fmt.Errorf("codegraph: %w", err)
	}
	rel := filepath.ToSlash(relPath)
	if syntax.Classify(rel) != syntax.Parsed {
		return 0, 0, nil
	}

	tree, err := e.parseFile(ctx, root, rel)
	if err != nil {
		return 0, 0, fmt.Errorf("codegraph: reindex %s: %w", rel, err)
	}
	defer tree.Close()

	if _, err := e.store.DeleteByFile(ctx, rel); err != nil {
		return 0, 0, fmt.Errorf("codegraph: reindex %s: %w", rel, err)
	}
	extracted := extract.Extract(tree, rel)
	if err := e.store.InsertNodes(ctx, extracted); err != nil {
		return 0, 0, fmt.Errorf("codegraph: reindex %s: %w", rel, err)
	}
	resolved, err := resolve.Resolve(ctx, e.store, tree, rel, extracted)
	if err != nil {
		return len(extracted), 0, fmt.Errorf("codegraph: reindex %s: %w", rel, err)
	}
	if err := e.store.InsertEdges(ctx, resolved); err != nil {
		return len(extracted), 0, fmt.Errorf("codegraph: reindex %s: %w", rel, err)
	}
	return len(extracted), len(resolved), nil
}

// RemoveFile deletes the nodes of one project-relative file and every edge
// touching them.
func (e *Engine) RemoveFile(ctx context.Context, relPath string) error {
	if _, err := e.store.DeleteByFile(ctx, filepath.ToSlash(relPath)); err != nil {
		return fmt.Errorf("codegraph: remove %s: %w", relPath, err)
	}
	return nil
}

// RemoveDir deletes the nodes of every file under one project-relative
// directory and every edge touching them. It returns the number of deleted
// nodes.
func (e *Engine) RemoveDir(ctx context.Context, relDir string) (int, error) {
	n, err := e.store.DeleteByDir(ctx, filepath.ToSlash(relDir))
	if err != nil {
		return 0, fmt.Errorf("codegraph: remove %s/: %w", relDir, err)
	}
	return int(n), nil
}
