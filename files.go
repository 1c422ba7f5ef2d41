package codegraph

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/jward/codegraph/internal/config"
	"github.com/jward/codegraph/internal/syntax"
)

// listFiles walks root and returns the slash-separated relative paths of
// every supported or scan-only file not excluded by ignorer, sorted.
func listFiles(root string, ignorer *config.Ignorer) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if ignorer.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignorer.Match(rel, false) {
			return nil
		}
		if syntax.Classify(rel) != syntax.Unsupported {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
