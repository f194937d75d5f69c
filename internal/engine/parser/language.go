package parser

import (
	"path/filepath"
	"strings"
)

// Language identifies one supported grammar.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangRuby       Language = "ruby"
	LangRust       Language = "rust"
	LangPHP        Language = "php"
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangGo         Language = "go"
)

// AllLanguages lists every supported language in registry order.
var AllLanguages = []Language{
	LangTypeScript,
	LangTSX,
	LangJavaScript,
	LangPython,
	LangRuby,
	LangRust,
	LangPHP,
	LangJava,
	LangCSharp,
	LangGo,
}

var defaultExtensions = map[Language][]string{
	LangTypeScript: {".ts", ".mts", ".cts"},
	LangTSX:        {".tsx"},
	LangJavaScript: {".js", ".jsx", ".mjs", ".cjs"},
	LangPython:     {".py", ".pyi"},
	LangRuby:       {".rb", ".rake", ".gemspec"},
	LangRust:       {".rs"},
	LangPHP:        {".php"},
	LangJava:       {".java"},
	LangCSharp:     {".cs"},
	LangGo:         {".go"},
}

var defaultFilenames = map[Language][]string{
	LangRuby: {"Rakefile", "Gemfile"},
}

func (l Language) String() string { return string(l) }

// Family groups dialects that share one language spec and resolver rules.
func (l Language) Family() Language {
	switch l {
	case LangTSX:
		return LangTypeScript
	default:
		return l
	}
}

// ParseLanguage maps a user-facing identifier to a Language.
func ParseLanguage(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "ts":
		return LangTypeScript, true
	case "js":
		return LangJavaScript, true
	case "py":
		return LangPython, true
	case "rb":
		return LangRuby, true
	case "rs":
		return LangRust, true
	case "c#", "cs":
		return LangCSharp, true
	case "golang":
		return LangGo, true
	}
	for _, l := range AllLanguages {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// DefaultExtensions returns the built-in extensions for l.
func DefaultExtensions(l Language) []string {
	out := make([]string, len(defaultExtensions[l]))
	copy(out, defaultExtensions[l])
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func baseName(path string) string {
	return filepath.Base(path)
}
