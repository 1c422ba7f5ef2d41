// Package syntax loads the tree-sitter grammars and parses source text into
// syntax trees.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrGrammarLoad is returned when a grammar cannot be constructed or
	// fails to parse the probe document.
	ErrGrammarLoad = errors.New("syntax: grammar load failed")

	// ErrNotLoaded is returned by Parse before Load has succeeded.
	ErrNotLoaded = errors.New("syntax: grammars not loaded")

	// ErrUnknownGrammar is returned by a loader asked for a grammar it does
	// not provide.
	ErrUnknownGrammar = errors.New("syntax: unknown grammar")
)

// Loader constructs the tree-sitter language for a grammar.
type Loader func(Grammar) (*sitter.Language, error)

// Provider owns the loaded grammars. Parse is safe for concurrent use once
// Load has returned; each call uses its own parser.
type Provider struct {
	logger *slog.Logger
	loader Loader

	mu       sync.Mutex
	done     bool
	err      error
	grammars map[Grammar]*sitter.Language
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger used for parse warnings.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLoader replaces the grammar constructor.
func WithLoader(fn Loader) ProviderOption {
	return func(p *Provider) {
		if fn != nil {
			p.loader = fn
		}
	}
}

// NewProvider returns a Provider. Grammars are not loaded until Load.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		loader: defaultLoader,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load constructs every grammar and verifies it by parsing an empty
// document. It runs once: later calls return the first result, and
// concurrent callers wait for the load in progress.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.err
	}
	grammars := make(map[Grammar]*sitter.Language, len(Grammars))
	for _, g := range Grammars {
		lang, err := p.loadGrammar(ctx, g)
		if err != nil {
			p.done = true
			p.err = err
			return err
		}
		grammars[g] = lang
	}
	p.grammars = grammars
	p.done = true
	return nil
}

func (p *Provider) loadGrammar(ctx context.Context, g Grammar) (lang *sitter.Language, err error) {
	defer func() {
		if r := recover(); r != nil {
			lang, err = nil, fmt.Errorf("%w: %s: panic: %v", ErrGrammarLoad, g, r)
		}
	}()
	lang, err = p.loader(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrGrammarLoad, g, err)
	}
	if lang == nil {
		return nil, fmt.Errorf("%w: %s: loader returned no language", ErrGrammarLoad, g)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	probe, err := parser.ParseCtx(ctx, nil, []byte{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: probe parse: %w", ErrGrammarLoad, g, err)
	}
	if probe == nil || probe.RootNode() == nil {
		return nil, fmt.Errorf("%w: %s: probe parse produced no tree", ErrGrammarLoad, g)
	}
	probe.Close()
	return lang, nil
}

// Loaded reports whether Load has completed successfully.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done && p.err == nil
}

func (p *Provider) grammar(g Grammar) (*sitter.Language, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done || p.err != nil {
		return nil, ErrNotLoaded
	}
	return p.grammars[g], nil
}

// Parse parses content with the grammar for ext (".ts", ".py", ...).
// Unsupported and scan-only extensions return (nil, nil). A parser failure
// is logged and also returns (nil, nil) so one bad file never aborts a scan.
// The caller must Close the returned tree.
func (p *Provider) Parse(ctx context.Context, content []byte, ext string) (*Tree, error) {
	l, ok := lookupExt(ext)
	if !ok || l.support != Parsed {
		if !p.Loaded() {
			return nil, ErrNotLoaded
		}
		return nil, nil
	}
	lang, err := p.grammar(l.grammar)
	if err != nil {
		return nil, err
	}

	tree, err := parse(ctx, lang, content)
	if err != nil {
		p.logger.Warn("syntax.parse_failed", "ext", ext, "grammar", string(l.grammar), "error", err)
		return nil, nil
	}
	return &Tree{tree: tree, src: content, family: l.family, ext: ext}, nil
}

func parse(ctx context.Context, lang *sitter.Language, content []byte) (tree *sitter.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			tree, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err = parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New("parser returned no tree")
	}
	return tree, nil
}
