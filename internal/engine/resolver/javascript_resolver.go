package resolver

import (
	"bytes"
	"codegraph/internal/engine/parser"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NodeResolver implements npm module resolution, plus tsconfig path aliases
// when constructed with NewTypeScriptResolver.
type NodeResolver struct {
	project
	typescript bool
	baseURL    string
	aliases    []pathAlias
}

type pathAlias struct {
	prefix  string // text before '*', or the whole key when exact
	suffix  string
	exact   bool
	targets []string // absolute, with '*' kept for substitution
}

func NewTypeScriptResolver() *NodeResolver {
	return &NodeResolver{typescript: true}
}

func NewNodeResolver() *NodeResolver {
	return &NodeResolver{}
}

func (r *NodeResolver) Name() string {
	if r.typescript {
		return "typescript"
	}
	return "npm"
}

func (r *NodeResolver) CanHandle(root string) bool {
	if r.typescript {
		return hasMarker(root, "tsconfig.json") && hasMarker(root, "package.json")
	}
	return hasMarker(root, "package.json")
}

func (r *NodeResolver) Handles(lang parser.Language) bool {
	switch lang.Family() {
	case parser.LangTypeScript, parser.LangJavaScript:
		return true
	}
	return false
}

type packageJSON struct {
	Name                 string            `json:"name"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

type tsconfig struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

func (r *NodeResolver) Initialize(root string) error {
	r.project = newProject(root)

	data, err := os.ReadFile(filepath.Join(r.root, "package.json"))
	if err != nil {
		return err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return err
	}
	for _, deps := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.PeerDependencies, pkg.OptionalDependencies} {
		for name := range deps {
			r.addDep(name)
		}
	}

	if r.typescript {
		return r.loadTSConfig(filepath.Join(r.root, "tsconfig.json"), 0)
	}
	return nil
}

const maxTSConfigDepth = 8

// loadTSConfig applies path, then the chain of `extends` beneath it. Values
// from the child win, so a parent only fills what is still unset.
func (r *NodeResolver) loadTSConfig(path string, depth int) error {
	if depth > maxTSConfigDepth {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if depth > 0 {
			return nil
		}
		return err
	}
	var cfg tsconfig
	if err := json.Unmarshal(stripJSONC(data), &cfg); err != nil {
		return err
	}
	dir := filepath.Dir(path)

	if r.baseURL == "" && cfg.CompilerOptions.BaseURL != "" {
		r.baseURL = filepath.Join(dir, filepath.FromSlash(cfg.CompilerOptions.BaseURL))
	}
	if len(r.aliases) == 0 && len(cfg.CompilerOptions.Paths) > 0 {
		// Paths are relative to baseUrl when set, else to the declaring file.
		base := dir
		if cfg.CompilerOptions.BaseURL != "" {
			base = filepath.Join(dir, filepath.FromSlash(cfg.CompilerOptions.BaseURL))
		}
		r.aliases = compileAliases(cfg.CompilerOptions.Paths, base)
	}

	if cfg.Extends != "" && isRelative(cfg.Extends) {
		parent := filepath.Join(dir, filepath.FromSlash(cfg.Extends))
		if !strings.HasSuffix(parent, ".json") {
			parent += ".json"
		}
		return r.loadTSConfig(parent, depth+1)
	}
	return nil
}

// compileAliases orders patterns so the longest prefix is tried first, as
// TypeScript does.
func compileAliases(paths map[string][]string, base string) []pathAlias {
	out := make([]pathAlias, 0, len(paths))
	for key, targets := range paths {
		alias := pathAlias{}
		if i := strings.Index(key, "*"); i >= 0 {
			alias.prefix, alias.suffix = key[:i], key[i+1:]
		} else {
			alias.prefix, alias.exact = key, true
		}
		for _, target := range targets {
			alias.targets = append(alias.targets, filepath.Join(base, filepath.FromSlash(target)))
		}
		out = append(out, alias)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].prefix) != len(out[j].prefix) {
			return len(out[i].prefix) > len(out[j].prefix)
		}
		return out[i].prefix < out[j].prefix
	})
	return out
}

func (a pathAlias) match(imported string) (string, bool) {
	if a.exact {
		return "", imported == a.prefix
	}
	if !strings.HasPrefix(imported, a.prefix) || !strings.HasSuffix(imported, a.suffix) ||
		len(imported) < len(a.prefix)+len(a.suffix) {
		return "", false
	}
	return imported[len(a.prefix) : len(imported)-len(a.suffix)], true
}

func (r *NodeResolver) ResolveImport(req Request) ResolvedImport {
	imported := req.Imported
	exts := extsFor(req.Language)
	if len(exts) == 0 {
		exts = candidateExtensions[parser.LangTypeScript]
	}
	indexes := indexNames[parser.LangTypeScript]

	if isRelative(imported) {
		base := filepath.Join(fileDir(req.FromFile), filepath.FromSlash(imported))
		if path, ok := r.lookupModule(base, exts, indexes); ok {
			return r.local(req, path, false)
		}
		return unresolved(req)
	}

	if isStdlib(parser.LangJavaScript, imported) {
		return external(req)
	}

	for _, alias := range r.aliases {
		wildcard, ok := alias.match(imported)
		if !ok {
			continue
		}
		for _, target := range alias.targets {
			base := strings.Replace(target, "*", wildcard, 1)
			if path, ok := r.lookupModule(base, exts, indexes); ok {
				return r.local(req, path, true)
			}
		}
	}

	if r.deps[npmPackageName(imported)] {
		return external(req)
	}

	if r.baseURL != "" {
		base := filepath.Join(r.baseURL, filepath.FromSlash(imported))
		if path, ok := r.lookupModule(base, exts, indexes); ok {
			return r.local(req, path, false)
		}
	}

	return unresolved(req)
}

// lookupModule mirrors Node's file-then-directory lookup, honoring
// compiled-output imports (`./a.js` resolving to `./a.ts`).
func (r *NodeResolver) lookupModule(base string, exts, indexes []string) (string, bool) {
	if path, ok := r.lookup(base, exts, indexes); ok {
		return path, true
	}
	for _, js := range []string{".js", ".jsx", ".mjs", ".cjs"} {
		if strings.HasSuffix(base, js) {
			return r.lookup(strings.TrimSuffix(base, js), exts, nil)
		}
	}
	return "", false
}

// npmPackageName returns the package part of a bare specifier:
// "@scope/pkg/sub" -> "@scope/pkg", "lodash/fp" -> "lodash".
func npmPackageName(imported string) string {
	parts := strings.SplitN(imported, "/", 3)
	if strings.HasPrefix(imported, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// stripJSONC removes comments and trailing commas so tsconfig files decode
// with encoding/json.
func stripJSONC(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch {
		case ch == '"':
			inString = true
			out.WriteByte(ch)
		case ch == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out.WriteByte('\n')
			}
		case ch == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		case ch == ',':
			j := i + 1
			for j < len(data) && (data[j] == ' ' || data[j] == '\t' || data[j] == '\n' || data[j] == '\r') {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
			out.WriteByte(ch)
		default:
			out.WriteByte(ch)
		}
	}
	return out.Bytes()
}
