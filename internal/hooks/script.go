// Package hooks runs user scripts in response to watcher regeneration
// triggers. Scripts are written in Risor and receive the trigger and the
// current index counts as globals.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/codegraph/internal/store"
	"github.com/jward/codegraph/internal/watch"
)

// Counter reports the current index size. *store.Store satisfies it.
type Counter interface {
	Counts(ctx context.Context) (store.Counts, error)
}

// Script is a watch.Regenerator backed by a Risor script file. The file is
// re-read on every trigger so edits take effect without a restart.
//
// Globals available to the script:
//
//	reason   "threshold" or "idle"
//	changes  number of mutations since the previous trigger
//	root     project root
//	files, nodes, edges  current index counts
//	log      Info/Warn/Error(msg) writing to the host logger
type Script struct {
	path    string
	root    string
	counter Counter
	logger  *slog.Logger
}

var _ watch.Regenerator = (*Script)(nil)

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the logger scripts write to through the log global.
func WithLogger(l *slog.Logger) Option {
	return func(s *Script) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScript returns a Script for the file at path. A relative path is
// resolved against root.
func NewScript(path, root string, counter Counter, opts ...Option) *Script {
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, path)
	}
	s := &Script{
		path:    path,
		root:    root,
		counter: counter,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the resolved script location.
func (s *Script) Path() string {
	return s.path
}

// Regenerate loads and evaluates the script for trigger t.
func (s *Script) Regenerate(ctx context.Context, t watch.Trigger) error {
	src, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("hooks: loading script %s: %w", s.path, err)
	}
	return s.eval(ctx, string(src), s.path, t)
}

func (s *Script) eval(ctx context.Context, source, label string, t watch.Trigger) error {
	globals, err := s.buildGlobals(ctx, label, t)
	if err != nil {
		return err
	}

	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	// Imports resolve next to the script.
	opts = append(opts, risor.WithImporter(importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: names,
		SourceDir:   filepath.Dir(s.path),
		Extensions:  []string{".risor"},
	})))

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("hooks: script %s: %w", label, err)
	}
	return nil
}

func (s *Script) buildGlobals(ctx context.Context, label string, t watch.Trigger) (map[string]any, error) {
	var c store.Counts
	if s.counter != nil {
		var err error
		if c, err = s.counter.Counts(ctx); err != nil {
			return nil, fmt.Errorf("hooks: read counts: %w", err)
		}
	}
	logProxy, err := object.NewProxy(&logObject{logger: s.logger, script: label})
	if err != nil {
		return nil, fmt.Errorf("hooks: proxy error: %w", err)
	}
	return map[string]any{
		"reason":  t.Reason,
		"changes": t.Changes,
		"root":    s.root,
		"files":   c.Files,
		"nodes":   c.Nodes,
		"edges":   c.Edges,
		"log":     logProxy,
	}, nil
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
	script string
}

func (l *logObject) Info(msg string) {
	l.logger.Info("hooks.log", "script", l.script, "text", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn("hooks.log", "script", l.script, "text", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error("hooks.log", "script", l.script, "text", msg)
}
