// Package config loads the project configuration file and builds the ignore
// matcher used when scanning and watching a project.
//
// The file lives at .codegraph/config.toml under the project root. Every key
// is optional; missing keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DirName is the per-project directory holding the index and config.
	DirName = ".codegraph"
	// DBFileName is the default database file inside DirName.
	DBFileName = "index.db"
	// FileName is the config file inside DirName.
	FileName = "config.toml"

	DefaultThreshold   = 5
	DefaultIdleDelay   = 30 * time.Second
	DefaultSearchLimit = 100
)

// DefaultIgnore is always applied: version control dirs, dependency trees,
// build output, caches and the index directory itself.
var DefaultIgnore = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", ".venv", "__pycache__",
	"dist", "build", "out", "coverage",
	DirName,
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete project configuration.
type Config struct {
	// DBPath is the index location. Relative paths are resolved against the
	// project root.
	DBPath string `toml:"db_path"`

	// Ignore holds extra gitignore-style patterns added to DefaultIgnore.
	Ignore []string `toml:"ignore"`

	// UseGitignore merges the project's .gitignore into the ignore matcher.
	UseGitignore bool `toml:"use_gitignore"`

	Watch  WatchConfig  `toml:"watch"`
	Search SearchConfig `toml:"search"`
	Hooks  HooksConfig  `toml:"hooks"`
}

// WatchConfig controls the change watcher and its debouncer.
type WatchConfig struct {
	Enabled   bool          `toml:"enabled"`
	Threshold int           `toml:"threshold"`
	IdleDelay time.Duration `toml:"idle_delay"`
}

// SearchConfig controls name search.
type SearchConfig struct {
	Limit         int  `toml:"limit"`
	CaseSensitive bool `toml:"case_sensitive"`
}

// HooksConfig names scripts run on watcher events.
type HooksConfig struct {
	// OnRegenerate is a Risor script run on every debounced regeneration.
	OnRegenerate string `toml:"on_regenerate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:       filepath.Join(DirName, DBFileName),
		UseGitignore: true,
		Watch: WatchConfig{
			Enabled:   true,
			Threshold: DefaultThreshold,
			IdleDelay: DefaultIdleDelay,
		},
		Search: SearchConfig{
			Limit: DefaultSearchLimit,
		},
	}
}

// Path returns the config file location for a project root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error: the defaults are returned. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadFile is Load for a file the user named explicitly: a missing file is
// an error.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Watch.Threshold < 1 {
		return fmt.Errorf("watch.threshold must be at least 1, got %d", c.Watch.Threshold)
	}
	if c.Watch.IdleDelay <= 0 {
		return fmt.Errorf("watch.idle_delay must be positive, got %s", c.Watch.IdleDelay)
	}
	if c.Search.Limit < 1 || c.Search.Limit > DefaultSearchLimit {
		return fmt.Errorf("search.limit must be between 1 and %d, got %d", DefaultSearchLimit, c.Search.Limit)
	}
	return nil
}

// IgnorePatterns returns DefaultIgnore followed by the configured patterns.
func (c *Config) IgnorePatterns() []string {
	out := make([]string, 0, len(DefaultIgnore)+len(c.Ignore))
	out = append(out, DefaultIgnore...)
	return append(out, c.Ignore...)
}

// ResolveDBPath returns DBPath made absolute against root.
func (c *Config) ResolveDBPath(root string) string {
	if c.DBPath == "" || filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(root, c.DBPath)
}
