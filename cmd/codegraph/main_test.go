package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/codegraph/internal/config"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestWriteResultText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeResultText(&buf, CLIResult{Command: "search", Results: []CLINode{
		{Name: "UserService", Kind: "class", File: "svc.ts", StartLine: 1, EndLine: 3, Exported: true},
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), "UserService")
	assert.Contains(t, buf.String(), "1-3")

	buf.Reset()
	err = writeResultText(&buf, CLIResult{Results: []CLIRelationship{{
		Source:   CLIEndpoint{File: "b.ts", Name: "Derived", Kind: "class"},
		Relation: "extends",
		Target:   CLIEndpoint{File: "a.ts", Name: "Base", Kind: "class"},
	}}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Derived (b.ts)")
	assert.Contains(t, buf.String(), "extends")

	require.Error(t, writeResultText(&buf, CLIResult{Results: 42}))
}

// =============================================================================
// Command execution
// =============================================================================

// execute runs the root command with args and returns stdout. Flag
// variables are reset first because cobra binds them to package globals.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagDB, flagFormat, flagConfig, flagOnRegenerate = "", "json", "", ""
	flagVerbose = false
	flagKind, flagLimit = "", 0
	errorHandled = false

	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = os.Stdout, os.Stderr })

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func newRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCommands_IndexThenQuery(t *testing.T) {
	root := newRepo(t, map[string]string{
		"src/base.ts":    "export class Base {}\n",
		"src/derived.ts": "import { Base } from \"./base\";\nexport class Derived extends Base {}\n",
	})
	t.Chdir(root)

	out, err := execute(t, "index", root)
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, "index", res["command"])
	summary := res["results"].(map[string]any)
	assert.EqualValues(t, 2, summary["files_indexed"])
	assert.EqualValues(t, 2, summary["edges_created"])
	assert.FileExists(t, filepath.Join(root, config.DirName, config.DBFileName))

	out, err = execute(t, "search", "Deriv", "--kind", "class")
	require.NoError(t, err)
	nodes := decode(t, out)["results"].([]any)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Derived", nodes[0].(map[string]any)["name"])
	assert.Equal(t, "src/derived.ts", nodes[0].(map[string]any)["file"])

	out, err = execute(t, "file", "src/base.ts")
	require.NoError(t, err)
	assert.Len(t, decode(t, out)["results"].([]any), 1)

	out, err = execute(t, "rels", "Base")
	require.NoError(t, err)
	assert.Len(t, decode(t, out)["results"].([]any), 2)

	out, err = execute(t, "stats", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Files: 2")
	assert.Contains(t, out, "Edges: 2")
}

func TestCommands_CustomDBAndConfig(t *testing.T) {
	root := newRepo(t, map[string]string{
		"keep.py":           "def keep():\n    pass\n",
		"generated/x.py":    "def skipped():\n    pass\n",
		".codegraph/c.toml": "ignore = [\"generated/\"]\n\n[search]\nlimit = 10\n",
	})
	t.Chdir(root)

	out, err := execute(t, "index", root, "--db", "custom.db", "--config", filepath.Join(root, ".codegraph", "c.toml"))
	require.NoError(t, err)
	summary := decode(t, out)["results"].(map[string]any)
	assert.EqualValues(t, 1, summary["files_indexed"])
	assert.FileExists(t, filepath.Join(root, "custom.db"))
}

func TestCommands_QueryWithoutIndex(t *testing.T) {
	root := newRepo(t, nil)
	t.Chdir(root)

	out, err := execute(t, "stats")
	require.Error(t, err)
	assert.Contains(t, decode(t, out)["error"], "run 'codegraph index' first")
}

func TestCommands_InvalidConfig(t *testing.T) {
	root := newRepo(t, map[string]string{
		".codegraph/config.toml": "unknown_key = true\n",
	})
	t.Chdir(root)

	_, err := execute(t, "index", root, "--format", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestCommands_MissingExplicitConfig(t *testing.T) {
	root := newRepo(t, map[string]string{"a.ts": "export class A {}\n"})
	t.Chdir(root)

	_, err := execute(t, "index", root, "--config", filepath.Join(root, "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(root, config.DirName, config.DBFileName))
}

func TestCommands_BadFormat(t *testing.T) {
	_, err := execute(t, "stats", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCommands_UnknownKind(t *testing.T) {
	root := newRepo(t, map[string]string{"a.ts": "export class A {}\n"})
	t.Chdir(root)
	_, err := execute(t, "index", root)
	require.NoError(t, err)

	_, err = execute(t, "search", "A", "--kind", "struct")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}
