package resolver

import (
	"codegraph/internal/engine/parser"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// CargoResolver maps `crate::`, `self::` and `super::` paths onto the module
// tree and marks crates declared in Cargo.toml external.
type CargoResolver struct {
	project
	crateName string
	srcRoot   string
}

func NewCargoResolver() *CargoResolver {
	return &CargoResolver{}
}

func (r *CargoResolver) Name() string { return "cargo" }

func (r *CargoResolver) CanHandle(root string) bool {
	return hasMarker(root, "Cargo.toml")
}

func (r *CargoResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangRust
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib struct {
		Path string `toml:"path"`
	} `toml:"lib"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	Workspace         struct {
		Members      []string       `toml:"members"`
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"workspace"`
}

func (r *CargoResolver) Initialize(root string) error {
	r.project = newProject(root)
	r.srcRoot = filepath.Join(r.root, "src")

	data, err := os.ReadFile(filepath.Join(r.root, "Cargo.toml"))
	if err != nil {
		return err
	}
	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return err
	}
	r.crateName = crateIdent(manifest.Package.Name)
	if manifest.Lib.Path != "" {
		r.srcRoot = filepath.Dir(filepath.Join(r.root, filepath.FromSlash(manifest.Lib.Path)))
	}
	for _, deps := range []map[string]any{
		manifest.Dependencies, manifest.DevDependencies, manifest.BuildDependencies, manifest.Workspace.Dependencies,
	} {
		for name, spec := range deps {
			r.addDep(crateIdent(name))
			// `alias = { package = "real-name" }` is imported as alias.
			if table, ok := spec.(map[string]any); ok {
				if pkg, ok := table["package"].(string); ok {
					r.addDep(crateIdent(pkg))
				}
			}
		}
	}
	for _, member := range manifest.Workspace.Members {
		if !strings.ContainsAny(member, "*?[") {
			r.addDep(crateIdent(filepath.Base(member)))
		}
	}
	return nil
}

// crateIdent converts a package name to the identifier used in paths.
func crateIdent(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

func (r *CargoResolver) ResolveImport(req Request) ResolvedImport {
	imported := req.Imported
	first := rootNamespace(imported, ":")

	switch {
	case first == "crate" || (r.crateName != "" && first == r.crateName):
		rest := strings.TrimPrefix(strings.TrimPrefix(imported, first), "::")
		if path, ok := rustCratePath(&r.project, r.srcRoot, rest); ok {
			return r.local(req, path, false)
		}
		return unresolved(req)
	case first == "self" || first == "super":
		if path, ok := rustModulePath(&r.project, req.FromFile, imported); ok {
			return r.local(req, path, false)
		}
		return unresolved(req)
	case rustStdlib[first] || r.deps[first]:
		return external(req)
	}
	// 2018-edition paths may name a top-level module directly.
	if path, ok := rustCratePath(&r.project, r.srcRoot, imported); ok {
		return r.local(req, path, false)
	}
	return unresolved(req)
}

// rustCratePath resolves a::b::c from the crate root, dropping trailing
// segments that name items rather than modules.
func rustCratePath(p *project, srcRoot, rest string) (string, bool) {
	if rest == "" {
		return p.findRustRoot(srcRoot)
	}
	return p.findRustSegments(srcRoot, strings.Split(rest, "::"))
}

// rustModulePath resolves self:: and super:: paths against the module that
// fromFile defines.
func rustModulePath(p *project, fromFile, imported string) (string, bool) {
	dir := rustModuleDir(fromFile)
	segments := strings.Split(imported, "::")
	i := 0
	for ; i < len(segments); i++ {
		switch segments[i] {
		case "self":
			continue
		case "super":
			dir = filepath.Dir(dir)
			continue
		}
		break
	}
	if i == len(segments) {
		return p.findRustRoot(dir)
	}
	return p.findRustSegments(dir, segments[i:])
}

// rustModuleDir is the directory holding fromFile's child modules.
func rustModuleDir(fromFile string) string {
	dir := filepath.Dir(fromFile)
	switch filepath.Base(fromFile) {
	case "mod.rs", "lib.rs", "main.rs":
		return dir
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(fromFile), ".rs"))
}

func (p *project) findRustSegments(dir string, segments []string) (string, bool) {
	for n := len(segments); n > 0; n-- {
		base := filepath.Join(append([]string{dir}, segments[:n]...)...)
		if path, ok := p.lookup(base, candidateExtensions[parser.LangRust], indexNames[parser.LangRust]); ok {
			return path, true
		}
	}
	return p.findRustRoot(dir)
}

func (p *project) findRustRoot(dir string) (string, bool) {
	for _, name := range []string{"lib.rs", "main.rs", "mod.rs"} {
		if path := filepath.Join(dir, name); p.exists(path) {
			return path, true
		}
	}
	if path := dir + ".rs"; p.exists(path) {
		return path, true
	}
	return "", false
}
