package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Ignorer matches project-relative paths against gitignore-style patterns.
type Ignorer struct {
	matcher *ignore.GitIgnore
}

// NewIgnorer compiles patterns. When useGitignore is set and root has a
// .gitignore, its lines are merged in.
func NewIgnorer(root string, patterns []string, useGitignore bool) (*Ignorer, error) {
	if useGitignore && root != "" {
		gi := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gi); err == nil {
			m, err := ignore.CompileIgnoreFileAndLines(gi, patterns...)
			if err != nil {
				return nil, fmt.Errorf("config: compile %s: %w", gi, err)
			}
			return &Ignorer{matcher: m}, nil
		}
	}
	return &Ignorer{matcher: ignore.CompileIgnoreLines(patterns...)}, nil
}

// Match reports whether rel (slash separated, relative to the root) is
// ignored. Directories are also tried with a trailing slash so patterns
// like "tmp/" apply to the directory itself.
func (i *Ignorer) Match(rel string, isDir bool) bool {
	if i == nil || i.matcher == nil {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}
	if i.matcher.MatchesPath(rel) {
		return true
	}
	return isDir && i.matcher.MatchesPath(rel+"/")
}
