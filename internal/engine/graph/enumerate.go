package graph

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/util"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExcludeDirs are dependency, VCS and build output directories that
// never hold first-party sources.
var DefaultExcludeDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "bower_components", "vendor",
	"target", "dist", "build", "out", "bin", "obj",
	"__pycache__", ".venv", "venv", ".tox", ".mypy_cache",
	".idea", ".vscode", ".gradle", ".next",
}

type EnumerateOptions struct {
	// ExcludeDirs and ExcludeFiles are glob patterns matched against both the
	// base name and the root-relative slash path.
	ExcludeDirs  []string
	ExcludeFiles []string
	// RespectGitignore applies the root .gitignore.
	RespectGitignore bool
	// AllowList restricts the result to these paths (absolute or relative to
	// root). Nil means every supported file.
	AllowList []string
}

type matcher struct {
	dirs  []glob.Glob
	files []glob.Glob
	git   *ignore.GitIgnore
}

func compilePatterns(patterns []string, kind string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid exclude %s pattern %q", kind, p))
		}
		out = append(out, g)
	}
	return out, nil
}

func newMatcher(root string, opts EnumerateOptions) (*matcher, error) {
	dirs, err := compilePatterns(append(append([]string{}, DefaultExcludeDirs...), opts.ExcludeDirs...), "dir")
	if err != nil {
		return nil, err
	}
	files, err := compilePatterns(opts.ExcludeFiles, "file")
	if err != nil {
		return nil, err
	}
	m := &matcher{dirs: dirs, files: files}
	if opts.RespectGitignore {
		gitignore := filepath.Join(root, ".gitignore")
		if util.FileExists(gitignore) {
			gi, err := ignore.CompileIgnoreFile(gitignore)
			if err != nil {
				slog.Warn("ignoring unreadable .gitignore", "path", gitignore, "error", err)
			} else {
				m.git = gi
			}
		}
	}
	return m, nil
}

func matchAny(globs []glob.Glob, name, rel string) bool {
	for _, g := range globs {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

func (m *matcher) skipDir(name, rel string) bool {
	if matchAny(m.dirs, name, rel) {
		return true
	}
	return m.git != nil && m.git.MatchesPath(rel+"/")
}

func (m *matcher) skipFile(name, rel string) bool {
	if matchAny(m.files, name, rel) {
		return true
	}
	return m.git != nil && m.git.MatchesPath(rel)
}

// EnumerateFiles lists the source files under root that registry can parse,
// sorted by path. A missing root is a VALIDATION_ERROR.
func EnumerateFiles(root string, registry *parser.GrammarRegistry, opts EnumerateOptions) ([]string, error) {
	root = util.NormalizeAbsPath(root)
	if !util.DirExists(root) {
		err := errors.New(errors.CodeValidationError, "repository root does not exist")
		return nil, errors.AddContext(err, errors.CtxPath, root)
	}
	m, err := newMatcher(root, opts)
	if err != nil {
		return nil, err
	}

	if opts.AllowList != nil {
		return enumerateAllowList(root, registry, m, opts.AllowList), nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel := util.RelativeSlash(root, path)
		if d.IsDir() {
			if m.skipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || m.skipFile(d.Name(), rel) {
			return nil
		}
		if _, ok := registry.LanguageForPath(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// enumerateAllowList keeps allow-listed files that exist, are supported and
// are not excluded. Excluded directories are checked on every path segment.
func enumerateAllowList(root string, registry *parser.GrammarRegistry, m *matcher, allow []string) []string {
	var files []string
	seen := make(map[string]bool, len(allow))
	for _, p := range allow {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(p))
		}
		path := util.NormalizeAbsPath(p)
		if seen[path] || !util.FileExists(path) {
			continue
		}
		seen[path] = true
		if _, ok := registry.LanguageForPath(path); !ok {
			continue
		}
		rel := util.RelativeSlash(root, path)
		if m.skipFile(filepath.Base(path), rel) || excludedByDir(m, rel) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

func excludedByDir(m *matcher, rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 0; i < len(parts)-1; i++ {
		if m.skipDir(parts[i], strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	return false
}
