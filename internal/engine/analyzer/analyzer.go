package analyzer

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/parser"
	"codegraph/internal/engine/resolver"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxFileSize       = 5 << 20
	DefaultImportConcurrency = 20
)

// Analyzer drives one parser and the project's resolver over single files.
// It is not safe for concurrent use when its Parser is not; the graph
// builder gives each worker its own Analyzer.
type Analyzer struct {
	parser            *parser.Parser
	resolvers         *resolver.Cache
	maxFileSize       int64
	importConcurrency int
}

type Option func(*Analyzer)

// WithMaxFileSize sets the size above which files are skipped.
func WithMaxFileSize(bytes int64) Option {
	return func(a *Analyzer) {
		if bytes > 0 {
			a.maxFileSize = bytes
		}
	}
}

// WithImportConcurrency bounds the in-flight import resolutions per file.
func WithImportConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.importConcurrency = n
		}
	}
}

func New(p *parser.Parser, resolvers *resolver.Cache, opts ...Option) *Analyzer {
	a := &Analyzer{
		parser:            p,
		resolvers:         resolvers,
		maxFileSize:       DefaultMaxFileSize,
		importConcurrency: DefaultImportConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeSourceFile parses path and resolves its imports against root's
// resolver.
//
// Oversized or unreadable files return an empty analysis together with a
// FILE_TOO_LARGE or FILE_UNREADABLE error; callers record the error and keep
// the empty entry. An UNSUPPORTED_LANGUAGE error returns no result. A file
// with syntax errors is not an error: the partial analysis has HasErrors set.
func (a *Analyzer) AnalyzeSourceFile(ctx context.Context, root, path string) (*parser.FileResult, error) {
	res, err := a.resolvers.For(root)
	if err != nil {
		return nil, err
	}

	path = util.NormalizeAbsPath(path)
	relPath := util.RelativeSlash(util.NormalizeAbsPath(root), path)

	lang, ok := a.parser.LanguageForPath(path)
	if !ok {
		observability.FilesAnalyzedTotal.WithLabelValues("skipped").Inc()
		err := errors.New(errors.CodeUnsupportedLanguage, "no parser for file extension")
		err = errors.AddContext(err, errors.CtxPath, path)
		return nil, errors.AddContext(err, errors.CtxStage, errors.StageParse)
	}

	content, err := a.readFile(path, lang)
	if err != nil {
		observability.FilesAnalyzedTotal.WithLabelValues("skipped").Inc()
		empty := parser.NewFileAnalysis(path, relPath, lang)
		empty.Skipped = string(errors.CodeOf(err))
		return &parser.FileResult{Analysis: empty}, err
	}

	result, err := a.parser.Analyze(path, relPath, content)
	if err != nil {
		observability.FilesAnalyzedTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	a.resolveImports(ctx, res, result.Analysis)

	outcome := "ok"
	if result.Analysis.HasErrors {
		outcome = "partial"
	}
	observability.FilesAnalyzedTotal.WithLabelValues(outcome).Inc()
	return result, nil
}

func (a *Analyzer) readFile(path string, lang parser.Language) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, a.fileError(errors.Wrap(err, errors.CodeFileUnreadable, "cannot stat file"), path, lang)
	}
	if info.Size() > a.maxFileSize {
		msg := fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), a.maxFileSize)
		return nil, a.fileError(errors.New(errors.CodeFileTooLarge, msg), path, lang)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, a.fileError(errors.Wrap(err, errors.CodeFileUnreadable, "cannot read file"), path, lang)
	}
	return content, nil
}

func (a *Analyzer) fileError(err error, path string, lang parser.Language) error {
	err = errors.AddContext(err, errors.CtxPath, path)
	err = errors.AddContext(err, errors.CtxLanguage, string(lang))
	return errors.AddContext(err, errors.CtxStage, errors.StageRead)
}

// resolveImports resolves every raw import with at most importConcurrency in
// flight. A failing resolution degrades to the raw text.
func (a *Analyzer) resolveImports(ctx context.Context, res resolver.Resolver, fa *parser.FileAnalysis) {
	if len(fa.RawImports) == 0 {
		return
	}
	links := make([]parser.ImportLink, len(fa.RawImports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.importConcurrency)
	for i, imp := range fa.RawImports {
		g.Go(func() error {
			req := resolver.Request{Imported: imp.Raw, FromFile: fa.Path, Language: fa.Language}
			if gctx.Err() != nil {
				links[i] = fallbackLink(imp.Raw)
				return nil
			}
			links[i] = resolveOne(res, req)
			return nil
		})
	}
	_ = g.Wait()

	fa.ResolvedImports = links
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		switch {
		case link.External:
			observability.ImportsResolvedTotal.WithLabelValues("external").Inc()
		case link.Resolved:
			observability.ImportsResolvedTotal.WithLabelValues("local").Inc()
		default:
			observability.ImportsResolvedTotal.WithLabelValues("unresolved").Inc()
			slog.Debug("import left unresolved",
				"path", fa.Path,
				"error", errors.AddContext(errors.New(errors.CodeResolutionAmbiguous, link.Original), errors.CtxStage, errors.StageResolve))
		}
		if !seen[link.Normalized] {
			seen[link.Normalized] = true
			fa.Imports = append(fa.Imports, link.Normalized)
		}
	}
}

func resolveOne(res resolver.Resolver, req resolver.Request) (link parser.ImportLink) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("resolver panicked", "path", req.FromFile, "import", req.Imported, "error", r)
			link = fallbackLink(req.Imported)
		}
	}()
	return res.ResolveImport(req).Link()
}

func fallbackLink(raw string) parser.ImportLink {
	return parser.ImportLink{Original: raw, Normalized: raw}
}
