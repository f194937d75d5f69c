package parser

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/shared/observability"
	"fmt"
	"time"
)

// Parser turns source files into structural records. A Parser leases one
// tree-sitter parser per call and is safe for concurrent use, but the builder
// gives each worker its own Parser so no parser state is shared.
type Parser struct {
	registry *GrammarRegistry
	pools    map[Language]*ParserPool
}

func NewParser(registry *GrammarRegistry) *Parser {
	p := &Parser{
		registry: registry,
		pools:    make(map[Language]*ParserPool),
	}
	for _, lang := range registry.Languages() {
		grammar, _ := registry.Grammar(lang)
		p.pools[lang] = NewParserPool(grammar)
	}
	return p
}

// Registry returns the grammar registry the parser was built from.
func (p *Parser) Registry() *GrammarRegistry {
	return p.registry
}

// LanguageForPath reports the language that would parse path.
func (p *Parser) LanguageForPath(path string) (Language, bool) {
	return p.registry.LanguageForPath(path)
}

// Analyze parses content and runs the single-pass collection. Files with
// syntax errors still produce a partial result with HasErrors set.
func (p *Parser) Analyze(path, relPath string, content []byte) (*FileResult, error) {
	lang, ok := p.registry.LanguageForPath(path)
	if !ok {
		err := errors.New(errors.CodeUnsupportedLanguage, "no grammar registered for file")
		err = errors.AddContext(err, errors.CtxPath, path)
		return nil, errors.AddContext(err, errors.CtxStage, errors.StageParse)
	}
	spec, ok := SpecFor(lang)
	pool := p.pools[lang]
	if !ok || pool == nil {
		err := errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("language %s has no parser", lang))
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
	}()

	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		err := errors.New(errors.CodeParseFailure, "parser returned no tree")
		err = errors.AddContext(err, errors.CtxPath, path)
		err = errors.AddContext(err, errors.CtxLanguage, string(lang))
		return nil, errors.AddContext(err, errors.CtxStage, errors.StageParse)
	}
	defer tree.Close()

	root := tree.RootNode()
	ctx := newFileContext(spec, path, relPath, content)
	ctx.collectAllInOnePass(root)
	return ctx.finish(root.HasError()), nil
}
