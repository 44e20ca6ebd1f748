package locate

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
)

// Language identifies a source grammar.
type Language string

const (
	C       Language = "c"
	CPP     Language = "cpp"
	Java    Language = "java"
	Unknown Language = ""
)

// languageMap maps file extensions to languages with a grammar.
var languageMap = map[string]Language{
	".c":    C,
	".h":    C,
	".cpp":  CPP,
	".hpp":  CPP,
	".cc":   CPP,
	".hh":   CPP,
	".cxx":  CPP,
	".hxx":  CPP,
	".java": Java,
}

// DetectLanguage returns the language of path from its extension.
func DetectLanguage(path string) Language {
	return languageMap[strings.ToLower(filepath.Ext(path))]
}

// ParseLanguage converts a language name such as "c++" or "java".
func ParseLanguage(name string) Language {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c":
		return C
	case "cpp", "c++", "cxx":
		return CPP
	case "java":
		return Java
	}
	return Unknown
}

// functionTypes lists the node types that carry a function body.
var functionTypes = map[Language]map[string]bool{
	C:    {"function_definition": true},
	CPP:  {"function_definition": true},
	Java: {"method_declaration": true, "constructor_declaration": true},
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case C:
		return c.GetLanguage()
	case CPP:
		return cpp.GetLanguage()
	case Java:
		return java.GetLanguage()
	}
	return nil
}

// newParser creates a tree-sitter parser for the language, or nil when the
// language has no grammar.
func (l Language) newParser() *sitter.Parser {
	grammar := l.grammar()
	if grammar == nil {
		return nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	return parser
}
