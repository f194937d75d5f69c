package resolver

import (
	"codegraph/internal/engine/parser"
	"path/filepath"
	"strings"
)

var candidateExtensions = map[parser.Language][]string{
	parser.LangTypeScript: {".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs", ".json"},
	parser.LangJavaScript: {".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".json"},
	parser.LangPython:     {".py", ".pyi"},
	parser.LangRuby:       {".rb"},
	parser.LangRust:       {".rs"},
	parser.LangPHP:        {".php"},
	parser.LangJava:       {".java"},
	parser.LangCSharp:     {".cs"},
	parser.LangGo:         {".go"},
}

var indexNames = map[parser.Language][]string{
	parser.LangTypeScript: {"index"},
	parser.LangJavaScript: {"index"},
	parser.LangPython:     {"__init__"},
	parser.LangRust:       {"mod"},
}

func extsFor(lang parser.Language) []string {
	return candidateExtensions[lang.Family()]
}

func indexesFor(lang parser.Language) []string {
	return indexNames[lang.Family()]
}

// PlainResolver handles projects without a recognised manifest. It resolves
// relative imports by extension probing, Python modules against the
// importing file's directory and the usual source roots, and marks
// standard-library imports external; everything else keeps its literal text.
type PlainResolver struct {
	project
	pyRoots []string
}

func NewPlainResolver() *PlainResolver {
	return &PlainResolver{}
}

func (r *PlainResolver) Name() string { return "plain" }

func (r *PlainResolver) CanHandle(root string) bool { return true }

func (r *PlainResolver) Initialize(root string) error {
	r.project = newProject(root)
	r.pyRoots = r.pythonSourceRoots()
	return nil
}

func (r *PlainResolver) ResolveImport(req Request) ResolvedImport {
	if res, ok := r.resolveRelative(req); ok {
		return res
	}
	if isStdlib(req.Language, req.Imported) {
		return external(req)
	}
	if req.Language.Family() == parser.LangPython {
		roots := append([]string{fileDir(req.FromFile)}, r.pyRoots...)
		if path, ok := r.findPythonModule(req.Imported, roots); ok {
			return r.local(req, path, false)
		}
	}
	return unresolved(req)
}

// resolveRelative applies the path-relative rules every ecosystem shares.
func (r *PlainResolver) resolveRelative(req Request) (ResolvedImport, bool) {
	switch req.Language.Family() {
	case parser.LangPython:
		if strings.HasPrefix(req.Imported, ".") {
			if path, ok := r.pythonRelative(req); ok {
				return r.local(req, path, false), true
			}
			return unresolved(req), true
		}
	case parser.LangRust:
		if strings.HasPrefix(req.Imported, "self::") || strings.HasPrefix(req.Imported, "super::") {
			if path, ok := rustModulePath(&r.project, req.FromFile, req.Imported); ok {
				return r.local(req, path, false), true
			}
			return unresolved(req), true
		}
	}
	if isRelative(req.Imported) || filepath.IsAbs(req.Imported) {
		base := req.Imported
		if !filepath.IsAbs(base) {
			base = filepath.Join(fileDir(req.FromFile), filepath.FromSlash(base))
		}
		if path, ok := r.lookup(base, extsFor(req.Language), indexesFor(req.Language)); ok {
			return r.local(req, path, false), true
		}
		return unresolved(req), true
	}
	return ResolvedImport{}, false
}

// pythonRelative resolves `.a.b` / `..a` against the importing file's package.
func (p *project) pythonRelative(req Request) (string, bool) {
	trimmed := strings.TrimLeft(req.Imported, ".")
	level := len(req.Imported) - len(trimmed)
	dir := fileDir(req.FromFile)
	for i := 1; i < level; i++ {
		dir = filepath.Dir(dir)
	}
	base := dir
	if trimmed != "" {
		base = filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(trimmed, ".", "/")))
	}
	return p.lookup(base, candidateExtensions[parser.LangPython], indexNames[parser.LangPython])
}
