package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/codegraph"
	"github.com/jward/codegraph/internal/config"
	"github.com/jward/codegraph/internal/hooks"
	"github.com/jward/codegraph/internal/store"
)

var (
	flagDB           string
	flagFormat       string
	flagConfig       string
	flagVerbose      bool
	flagOnRegenerate string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codegraph",
	Short:         "Incremental symbol and relationship index for TypeScript and Python",
	Long:          "Codegraph parses source files with tree-sitter, records declarations and their import and inheritance relationships in SQLite, and keeps the index current while files change.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .codegraph/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .codegraph/config.toml relative to repo root)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&flagOnRegenerate, "on-regenerate", "", "Risor script run on each debounced regeneration")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(relsCmd)
	rootCmd.AddCommand(statsCmd)
}

// project is a resolved repository: its root, configuration and index path.
type project struct {
	root   string
	cfg    *config.Config
	dbPath string
}

// loadProject resolves the repository containing dir and loads its config.
// A file named by --config must exist; the default location is optional.
// The --db and --on-regenerate flags override the file.
func loadProject(dir string) (*project, error) {
	root := findRepoRoot(dir)
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load(config.Path(root))
	}
	if err != nil {
		return nil, err
	}
	if flagOnRegenerate != "" {
		cfg.Hooks.OnRegenerate = flagOnRegenerate
	}
	return &project{root: root, cfg: cfg, dbPath: resolveDBPath(root, cfg)}, nil
}

// newLogger returns a text logger on stderr. Without --verbose only warnings
// and errors are shown, unless the watch command raises it to info.
func newLogger(level slog.Level) *slog.Logger {
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// engineCounter lets a hook script read counts from an engine created after
// the script.
type engineCounter struct {
	engine *codegraph.Engine
}

func (c *engineCounter) Counts(ctx context.Context) (store.Counts, error) {
	if c.engine == nil {
		return store.Counts{}, nil
	}
	return c.engine.Query().Stats(ctx)
}

// openEngine builds an Engine for p. watching enables the change watcher.
func openEngine(p *project, logger *slog.Logger, watching bool) (*codegraph.Engine, error) {
	opts := []codegraph.Option{
		codegraph.WithLogger(logger),
		codegraph.WithIgnorePatterns(p.cfg.Ignore...),
		codegraph.WithGitignore(p.cfg.UseGitignore),
		codegraph.WithWatch(watching),
		codegraph.WithDebounce(p.cfg.Watch.Threshold, p.cfg.Watch.IdleDelay),
		codegraph.WithCaseSensitiveSearch(p.cfg.Search.CaseSensitive),
		codegraph.WithSearchLimit(p.cfg.Search.Limit),
	}
	var counter *engineCounter
	if p.cfg.Hooks.OnRegenerate != "" {
		counter = &engineCounter{}
		script := hooks.NewScript(p.cfg.Hooks.OnRegenerate, p.root, counter, hooks.WithLogger(logger))
		opts = append(opts, codegraph.WithRegenerator(script))
	}

	engine, err := codegraph.New(p.dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if counter != nil {
		counter.engine = engine
	}
	return engine, nil
}

// openExisting opens the index of the repository containing the working
// directory. The database must already exist.
func openExisting() (*codegraph.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	p, err := loadProject(cwd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'codegraph index' first)", p.dbPath)
	}
	return openEngine(p, newLogger(slog.LevelWarn), false)
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository",
	Long:  "Parses every supported file, records its declarations, then resolves imports and inheritance across files. The previous index is replaced.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	p, err := loadProject(targetDir)
	if err != nil {
		return outputError("index", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.dbPath), 0o755); err != nil {
		return outputError("index", fmt.Errorf("creating %s: %w", filepath.Dir(p.dbPath), err))
	}

	engine, err := openEngine(p, newLogger(slog.LevelWarn), false)
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	sum, err := engine.IndexProject(cmd.Context(), targetDir)
	if err != nil {
		return outputError("index", err)
	}
	fmt.Fprintf(stderr, "Indexed %s in %s\n", targetDir, sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(stderr, "Database: %s\n", p.dbPath)
	return outputResult(CLIResult{Command: "index", Results: toCLISummary(sum)})
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a repository and keep the index current until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("watch", err)
	}
	p, err := loadProject(targetDir)
	if err != nil {
		return outputError("watch", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.dbPath), 0o755); err != nil {
		return outputError("watch", fmt.Errorf("creating %s: %w", filepath.Dir(p.dbPath), err))
	}

	engine, err := openEngine(p, newLogger(slog.LevelInfo), true)
	if err != nil {
		return outputError("watch", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := engine.IndexProject(ctx, targetDir)
	if err != nil {
		return outputError("watch", err)
	}
	if err := outputResult(CLIResult{Command: "watch", Results: toCLISummary(sum)}); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Watching %s (Ctrl-C to stop)\n", targetDir)
	<-ctx.Done()
	return engine.StopWatching()
}

// --- queries ---

var (
	flagKind  string
	flagLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find declarations whose name contains text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "List the declarations of one file",
	Long:  "Lists the declarations of one file. The path is relative to the indexed directory, as shown by search.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

var relsCmd = &cobra.Command{
	Use:   "rels [name]",
	Short: "List relationships, optionally only those touching name",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRels,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	searchCmd.Flags().StringVar(&flagKind, "kind", "", "filter by kind (function, class, variable, interface, method, type_alias, enum)")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results (default from config, max 100)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	engine, err := openExisting()
	if err != nil {
		return outputError("search", err)
	}
	defer engine.Close()

	nodes, err := engine.Query().Search(cmd.Context(), args[0], codegraph.Kind(flagKind), flagLimit)
	if err != nil {
		return outputError("search", err)
	}
	return outputResult(CLIResult{Command: "search", Results: toCLINodes(nodes)})
}

func runFile(cmd *cobra.Command, args []string) error {
	engine, err := openExisting()
	if err != nil {
		return outputError("file", err)
	}
	defer engine.Close()

	nodes, err := engine.Query().FileNodes(cmd.Context(), filepath.ToSlash(filepath.Clean(args[0])))
	if err != nil {
		return outputError("file", err)
	}
	return outputResult(CLIResult{Command: "file", Results: toCLINodes(nodes)})
}

func runRels(cmd *cobra.Command, args []string) error {
	engine, err := openExisting()
	if err != nil {
		return outputError("rels", err)
	}
	defer engine.Close()

	var name string
	if len(args) > 0 {
		name = args[0]
	}
	rels, err := engine.Query().Relationships(cmd.Context(), name)
	if err != nil {
		return outputError("rels", err)
	}
	return outputResult(CLIResult{Command: "rels", Results: toCLIRelationships(rels)})
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := openExisting()
	if err != nil {
		return outputError("stats", err)
	}
	defer engine.Close()

	c, err := engine.Query().Stats(cmd.Context())
	if err != nil {
		return outputError("stats", err)
	}
	return outputResult(CLIResult{Command: "stats", Results: CLIStats(c)})
}

// --- paths ---

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, the config
// file, or the default, in that order.
func resolveDBPath(repoRoot string, cfg *config.Config) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return cfg.ResolveDBPath(repoRoot)
}
