package syntax

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Family is a language family. Every grammar of a family is handled by the
// same extractor.
type Family string

const (
	FamilyTypeScript Family = "typescript"
	FamilyPython     Family = "python"
	FamilyGo         Family = "go"
	FamilyRust       Family = "rust"
)

// Grammar names one tree-sitter grammar.
type Grammar string

const (
	GrammarTypeScript Grammar = "typescript"
	GrammarTSX        Grammar = "tsx"
	GrammarPython     Grammar = "python"
)

// Grammars lists every grammar the Provider loads.
var Grammars = []Grammar{GrammarTypeScript, GrammarTSX, GrammarPython}

// Support describes how the indexer treats a file.
type Support int

const (
	// Unsupported files are not part of the project scan.
	Unsupported Support = iota
	// ScanOnly files are counted as project files but never parsed.
	ScanOnly
	// Parsed files are parsed and indexed.
	Parsed
)

func (s Support) String() string {
	switch s {
	case ScanOnly:
		return "scan-only"
	case Parsed:
		return "parsed"
	default:
		return "unsupported"
	}
}

type language struct {
	family  Family
	grammar Grammar
	support Support
}

// extToLanguage maps lower-cased file extensions to their language.
// .js and .jsx go through the TSX grammar, which is a superset of both.
var extToLanguage = map[string]language{
	".ts":  {FamilyTypeScript, GrammarTypeScript, Parsed},
	".tsx": {FamilyTypeScript, GrammarTSX, Parsed},
	".js":  {FamilyTypeScript, GrammarTSX, Parsed},
	".jsx": {FamilyTypeScript, GrammarTSX, Parsed},
	".py":  {FamilyPython, GrammarPython, Parsed},
	".go":  {family: FamilyGo, support: ScanOnly},
	".rs":  {family: FamilyRust, support: ScanOnly},
}

func lookupExt(ext string) (language, bool) {
	l, ok := extToLanguage[strings.ToLower(ext)]
	return l, ok
}

// Classify reports how path is treated based on its extension.
func Classify(path string) Support {
	l, ok := lookupExt(filepath.Ext(path))
	if !ok {
		return Unsupported
	}
	return l.support
}

// LanguageForFile returns the language family for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (Family, bool) {
	l, ok := lookupExt(filepath.Ext(path))
	if !ok {
		return "", false
	}
	return l.family, true
}

// defaultLoader constructs the built-in tree-sitter grammars.
func defaultLoader(g Grammar) (*sitter.Language, error) {
	switch g {
	case GrammarTypeScript:
		return ts.GetLanguage(), nil
	case GrammarTSX:
		return tsx.GetLanguage(), nil
	case GrammarPython:
		return python.GetLanguage(), nil
	}
	return nil, ErrUnknownGrammar
}
