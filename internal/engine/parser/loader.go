package parser

import (
	"codegraph/internal/core/errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c_sharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// LanguageOptions tunes one language in the registry.
type LanguageOptions struct {
	Disabled        bool
	ExtraExtensions []string
}

// GrammarRegistry maps languages to their compiled grammars and file
// extensions. Build it once and pass it to every Parser; grammars are
// immutable, parser instances are not shared.
type GrammarRegistry struct {
	languages  map[Language]*sitter.Language
	extensions map[string]Language
	filenames  map[string]Language
}

func NewGrammarRegistry(options map[Language]LanguageOptions) (*GrammarRegistry, error) {
	r := &GrammarRegistry{
		languages:  make(map[Language]*sitter.Language),
		extensions: make(map[string]Language),
		filenames:  make(map[string]Language),
	}

	for _, lang := range AllLanguages {
		opts := options[lang]
		if opts.Disabled {
			continue
		}
		grammar, err := loadGrammar(lang)
		if err != nil {
			return nil, err
		}
		r.languages[lang] = grammar

		for _, ext := range append(DefaultExtensions(lang), opts.ExtraExtensions...) {
			ext = normalizeExt(ext)
			if ext == "" {
				continue
			}
			if owner, taken := r.extensions[ext]; taken && owner != lang {
				return nil, errors.New(errors.CodeValidationError,
					fmt.Sprintf("extension %s claimed by both %s and %s", ext, owner, lang))
			}
			r.extensions[ext] = lang
		}
		for _, name := range defaultFilenames[lang] {
			r.filenames[strings.ToLower(name)] = lang
		}
	}

	for lang := range options {
		if _, known := defaultExtensions[lang]; !known {
			return nil, errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("unknown language %q", lang))
		}
	}
	return r, nil
}

func loadGrammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangTypeScript:
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), nil
	case LangTSX:
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()), nil
	case LangJavaScript:
		return sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case LangPython:
		return sitter.NewLanguage(tree_sitter_python.Language()), nil
	case LangRuby:
		return sitter.NewLanguage(tree_sitter_ruby.Language()), nil
	case LangRust:
		return sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case LangPHP:
		return sitter.NewLanguage(tree_sitter_php.LanguagePHP()), nil
	case LangJava:
		return sitter.NewLanguage(tree_sitter_java.Language()), nil
	case LangCSharp:
		return sitter.NewLanguage(tree_sitter_c_sharp.Language()), nil
	case LangGo:
		return sitter.NewLanguage(tree_sitter_go.Language()), nil
	default:
		return nil, errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("no grammar for %q", lang))
	}
}

// Grammar returns the compiled grammar for lang.
func (r *GrammarRegistry) Grammar(lang Language) (*sitter.Language, bool) {
	g, ok := r.languages[lang]
	return g, ok
}

// LanguageForPath picks a language by exact filename, then by extension.
func (r *GrammarRegistry) LanguageForPath(path string) (Language, bool) {
	base := strings.ToLower(baseName(path))
	if lang, ok := r.filenames[base]; ok {
		return lang, true
	}
	ext := base
	if i := strings.LastIndex(base, "."); i >= 0 {
		ext = base[i:]
	} else {
		return "", false
	}
	lang, ok := r.extensions[ext]
	return lang, ok
}

// Languages returns the enabled languages in registry order.
func (r *GrammarRegistry) Languages() []Language {
	out := make([]Language, 0, len(r.languages))
	for _, lang := range AllLanguages {
		if _, ok := r.languages[lang]; ok {
			out = append(out, lang)
		}
	}
	return out
}

// Extensions returns every enabled extension, sorted.
func (r *GrammarRegistry) Extensions() []string {
	out := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
