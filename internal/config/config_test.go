package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// Load
// =============================================================================

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, filepath.Join(".codegraph", "index.db"), cfg.DBPath)
	assert.True(t, cfg.UseGitignore)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 5, cfg.Watch.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Watch.IdleDelay)
	assert.Equal(t, 100, cfg.Search.Limit)
	assert.False(t, cfg.Search.CaseSensitive)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_MissingFileIsError(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFile_ReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c.toml")
	writeFile(t, path, "[search]\nlimit = 7\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.Limit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, Path(root), `
db_path = "/tmp/graph.db"
ignore = ["*.gen.ts", "fixtures/"]
use_gitignore = false

[watch]
enabled = false
threshold = 10
idle_delay = "2s"

[search]
limit = 25
case_sensitive = true

[hooks]
on_regenerate = "hooks/regen.risor"
`)

	cfg, err := Load(Path(root))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/graph.db", cfg.DBPath)
	assert.Equal(t, []string{"*.gen.ts", "fixtures/"}, cfg.Ignore)
	assert.False(t, cfg.UseGitignore)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 10, cfg.Watch.Threshold)
	assert.Equal(t, 2*time.Second, cfg.Watch.IdleDelay)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.True(t, cfg.Search.CaseSensitive)
	assert.Equal(t, "hooks/regen.risor", cfg.Hooks.OnRegenerate)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[watch]\nthreshold = 3\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Watch.Threshold)
	assert.Equal(t, DefaultIdleDelay, cfg.Watch.IdleDelay)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, DefaultSearchLimit, cfg.Search.Limit)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "db_path = ", "decode"},
		{"unknown key", "colour = \"blue\"\n", "unknown keys: colour"},
		{"zero threshold", "[watch]\nthreshold = 0\n", "watch.threshold"},
		{"negative idle", "[watch]\nidle_delay = \"-1s\"\n", "watch.idle_delay"},
		{"limit too large", "[search]\nlimit = 500\n", "search.limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIgnorePatterns(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Ignore = []string{"*.snap"}
	patterns := cfg.IgnorePatterns()
	assert.Equal(t, len(DefaultIgnore)+1, len(patterns))
	assert.Equal(t, "*.snap", patterns[len(patterns)-1])
	assert.Len(t, DefaultIgnore, len(patterns)-1, "DefaultIgnore is not mutated")
}

func TestResolveDBPath(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, filepath.Join("/proj", ".codegraph", "index.db"), cfg.ResolveDBPath("/proj"))
	cfg.DBPath = "/abs/db.sqlite"
	assert.Equal(t, "/abs/db.sqlite", cfg.ResolveDBPath("/proj"))
	cfg.DBPath = ""
	assert.Equal(t, "", cfg.ResolveDBPath("/proj"))
}

// =============================================================================
// Ignorer
// =============================================================================

func TestIgnorer_Defaults(t *testing.T) {
	t.Parallel()
	ig, err := NewIgnorer("", DefaultIgnore, false)
	require.NoError(t, err)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"node_modules", true, true},
		{"node_modules/react/index.js", false, true},
		{"web/node_modules/x.ts", false, true},
		{".git", true, true},
		{".git/HEAD", false, true},
		{".codegraph/index.db", false, true},
		{"pkg/__pycache__/m.py", false, true},
		{"dist/bundle.js", false, true},
		{"src/app.ts", false, false},
		{"src/distance.ts", false, false},
		{"src", true, false},
		{"", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ig.Match(tt.path, tt.isDir), tt.path)
	}
}

func TestIgnorer_MergesGitignore(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "# generated\n*.gen.ts\ntmp/\n")

	ig, err := NewIgnorer(root, DefaultIgnore, true)
	require.NoError(t, err)
	assert.True(t, ig.Match("src/api.gen.ts", false))
	assert.True(t, ig.Match("tmp", true))
	assert.True(t, ig.Match("tmp/scratch.py", false))
	assert.True(t, ig.Match("node_modules/a.js", false), "defaults still apply")
	assert.False(t, ig.Match("src/api.ts", false))

	without, err := NewIgnorer(root, DefaultIgnore, false)
	require.NoError(t, err)
	assert.False(t, without.Match("src/api.gen.ts", false))
}

func TestIgnorer_NoGitignoreFile(t *testing.T) {
	t.Parallel()
	ig, err := NewIgnorer(t.TempDir(), []string{"*.snap"}, true)
	require.NoError(t, err)
	assert.True(t, ig.Match("a/b.snap", false))
	assert.False(t, ig.Match("a/b.ts", false))
}

func TestIgnorer_Nil(t *testing.T) {
	t.Parallel()
	var ig *Ignorer
	assert.False(t, ig.Match("anything", false))
}
