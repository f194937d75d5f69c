package resolver

import (
	"codegraph/internal/engine/parser"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// GoModResolver maps import paths under the main module (and local replace
// targets) to package directories.
type GoModResolver struct {
	project
	modulePath string
	replaces   []goReplace
	requires   []string
}

type goReplace struct {
	path string
	dir  string
}

func NewGoModResolver() *GoModResolver {
	return &GoModResolver{}
}

func (r *GoModResolver) Name() string { return "gomod" }

func (r *GoModResolver) CanHandle(root string) bool {
	return hasMarker(root, "go.mod")
}

func (r *GoModResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangGo
}

func (r *GoModResolver) Initialize(root string) error {
	r.project = newProject(root)

	path := filepath.Join(r.root, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mf, err := modfile.Parse(path, data, nil)
	if err != nil {
		return err
	}
	if mf.Module != nil {
		r.modulePath = mf.Module.Mod.Path
	}
	for _, req := range mf.Require {
		r.requires = append(r.requires, req.Mod.Path)
		r.addDep(req.Mod.Path)
	}
	for _, rep := range mf.Replace {
		if !modfile.IsDirectoryPath(rep.New.Path) {
			continue
		}
		dir := rep.New.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(r.root, filepath.FromSlash(dir))
		}
		r.replaces = append(r.replaces, goReplace{path: rep.Old.Path, dir: dir})
	}
	// Longest module path first so nested modules win.
	sort.Slice(r.requires, func(i, j int) bool { return len(r.requires[i]) > len(r.requires[j]) })
	sort.Slice(r.replaces, func(i, j int) bool { return len(r.replaces[i].path) > len(r.replaces[j].path) })
	return nil
}

func (r *GoModResolver) ResolveImport(req Request) ResolvedImport {
	imported := req.Imported
	if module.CheckImportPath(imported) != nil {
		return unresolved(req)
	}

	if rest, ok := cutModulePrefix(imported, r.modulePath); ok {
		if dir := filepath.Join(r.root, filepath.FromSlash(rest)); r.dirExists(dir) {
			return r.local(req, dir, false)
		}
		return unresolved(req)
	}
	for _, rep := range r.replaces {
		if rest, ok := cutModulePrefix(imported, rep.path); ok {
			if dir := filepath.Join(rep.dir, filepath.FromSlash(rest)); r.dirExists(dir) {
				return r.local(req, dir, false)
			}
		}
	}
	for _, dep := range r.requires {
		if _, ok := cutModulePrefix(imported, dep); ok {
			return external(req)
		}
	}
	if isStdlib(parser.LangGo, imported) {
		return external(req)
	}
	return unresolved(req)
}

// cutModulePrefix reports whether imported is mod or a package inside it,
// returning the remaining relative path.
func cutModulePrefix(imported, mod string) (string, bool) {
	if mod == "" {
		return "", false
	}
	if imported == mod {
		return "", true
	}
	if rest, ok := strings.CutPrefix(imported, mod+"/"); ok {
		return rest, true
	}
	return "", false
}
