package resolver

import (
	"bufio"
	"bytes"
	"codegraph/internal/engine/parser"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// RubyResolver reads Bundler manifests. require paths are looked up under
// lib/ and the project root; require_relative paths arrive as "./x".
type RubyResolver struct {
	project
	loadPaths []string
}

func NewRubyResolver() *RubyResolver {
	return &RubyResolver{}
}

func (r *RubyResolver) Name() string { return "bundler" }

func (r *RubyResolver) CanHandle(root string) bool {
	return hasMarker(root, "Gemfile", "Gemfile.lock")
}

func (r *RubyResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangRuby
}

var gemDecl = regexp.MustCompile(`^\s*gem\s+["']([^"']+)["']`)

// Gemfile.lock lists resolved specs with four-space indentation.
var lockSpec = regexp.MustCompile(`^ {4}([A-Za-z0-9_.-]+) \(`)

func (r *RubyResolver) Initialize(root string) error {
	r.project = newProject(root)
	for _, dir := range []string{"lib", "app", ""} {
		candidate := filepath.Join(r.root, dir)
		if r.dirExists(candidate) {
			r.loadPaths = append(r.loadPaths, candidate)
		}
	}
	r.scanManifest(filepath.Join(r.root, "Gemfile"), gemDecl)
	r.scanManifest(filepath.Join(r.root, "Gemfile.lock"), lockSpec)
	return nil
}

func (r *RubyResolver) scanManifest(path string, pattern *regexp.Regexp) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := pattern.FindStringSubmatch(scanner.Text()); m != nil {
			r.addDep(m[1])
		}
	}
}

func (r *RubyResolver) ResolveImport(req Request) ResolvedImport {
	imported := strings.TrimSuffix(req.Imported, ".rb")
	exts := candidateExtensions[parser.LangRuby]

	if isRelative(imported) {
		if path, ok := r.lookup(filepath.Join(fileDir(req.FromFile), filepath.FromSlash(imported)), exts, nil); ok {
			return r.local(req, path, false)
		}
		return unresolved(req)
	}

	gem := rootNamespace(imported, "/")
	if r.deps[gem] || r.deps[strings.ReplaceAll(gem, "/", "-")] {
		return external(req)
	}
	for _, dir := range r.loadPaths {
		if path, ok := r.lookup(filepath.Join(dir, filepath.FromSlash(imported)), exts, nil); ok {
			return r.local(req, path, false)
		}
	}
	if rubyStdlib[gem] {
		return external(req)
	}
	return unresolved(req)
}
