package resolver

import (
	"codegraph/internal/engine/parser"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ComposerResolver maps namespaces through composer.json PSR-4 autoload
// rules and resolves include/require paths relative to the file.
type ComposerResolver struct {
	project
	psr4    []psr4Rule
	vendors map[string]bool
}

type psr4Rule struct {
	prefix string
	dirs   []string
}

func NewComposerResolver() *ComposerResolver {
	return &ComposerResolver{}
}

func (r *ComposerResolver) Name() string { return "composer" }

func (r *ComposerResolver) CanHandle(root string) bool {
	return hasMarker(root, "composer.json")
}

func (r *ComposerResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangPHP
}

type composerAutoload struct {
	PSR4 map[string]json.RawMessage `json:"psr-4"`
}

type composerJSON struct {
	Require     map[string]string `json:"require"`
	RequireDev  map[string]string `json:"require-dev"`
	Autoload    composerAutoload  `json:"autoload"`
	AutoloadDev composerAutoload  `json:"autoload-dev"`
}

func (r *ComposerResolver) Initialize(root string) error {
	r.project = newProject(root)
	r.vendors = make(map[string]bool)

	data, err := os.ReadFile(filepath.Join(r.root, "composer.json"))
	if err != nil {
		return err
	}
	var doc composerJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, deps := range []map[string]string{doc.Require, doc.RequireDev} {
		for name := range deps {
			r.addDep(name)
			if vendor, _, ok := strings.Cut(name, "/"); ok {
				r.vendors[strings.ToLower(vendor)] = true
			}
		}
	}
	for _, autoload := range []composerAutoload{doc.Autoload, doc.AutoloadDev} {
		for prefix, raw := range autoload.PSR4 {
			r.psr4 = append(r.psr4, psr4Rule{prefix: prefix, dirs: r.psr4Dirs(raw)})
		}
	}
	// Longest prefix wins.
	sort.Slice(r.psr4, func(i, j int) bool {
		if len(r.psr4[i].prefix) != len(r.psr4[j].prefix) {
			return len(r.psr4[i].prefix) > len(r.psr4[j].prefix)
		}
		return r.psr4[i].prefix < r.psr4[j].prefix
	})
	return nil
}

// psr4Dirs accepts both "src/" and ["src/", "lib/"].
func (r *ComposerResolver) psr4Dirs(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{filepath.Join(r.root, filepath.FromSlash(one))}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil
	}
	out := make([]string, 0, len(many))
	for _, dir := range many {
		out = append(out, filepath.Join(r.root, filepath.FromSlash(dir)))
	}
	return out
}

func (r *ComposerResolver) ResolveImport(req Request) ResolvedImport {
	imported := req.Imported
	exts := candidateExtensions[parser.LangPHP]

	// include/require paths.
	if strings.Contains(imported, "/") || strings.HasSuffix(imported, ".php") {
		candidates := []string{filepath.Join(fileDir(req.FromFile), filepath.FromSlash(imported))}
		if !isRelative(imported) {
			candidates = append(candidates, filepath.Join(r.root, filepath.FromSlash(imported)))
		}
		for _, base := range candidates {
			if path, ok := r.lookup(base, exts, nil); ok {
				return r.local(req, path, false)
			}
		}
		return unresolved(req)
	}

	name := strings.TrimPrefix(imported, `\`)
	for _, rule := range r.psr4 {
		if !strings.HasPrefix(name, rule.prefix) {
			continue
		}
		rel := filepath.FromSlash(strings.ReplaceAll(strings.TrimPrefix(name, rule.prefix), `\`, "/"))
		for _, dir := range rule.dirs {
			if path, ok := r.lookup(filepath.Join(dir, rel), exts, nil); ok {
				return r.local(req, path, false)
			}
		}
	}

	if r.vendors[strings.ToLower(rootNamespace(name, `\`))] || isStdlib(parser.LangPHP, name) {
		return external(req)
	}
	return unresolved(req)
}
