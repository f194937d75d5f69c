package graph

import (
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/util"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeGraph is the aggregate of every file analysis for one repository
// snapshot. Builders populate it; once returned it is treated as read-only.
type CodeGraph struct {
	ID        string                              `json:"id"`
	Root      string                              `json:"root"`
	CreatedAt time.Time                           `json:"createdAt"`
	Files     map[string]*parser.FileAnalysis     `json:"files"`
	Functions map[string]*parser.FunctionAnalysis `json:"functions"`
	Types     map[string]*parser.TypeAnalysis     `json:"types"`
	Errors    []FileError                         `json:"errors,omitempty"`
}

// FileError records a per-file failure that did not abort the build.
type FileError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New returns an empty graph rooted at root.
func New(root string) *CodeGraph {
	return &CodeGraph{
		ID:        uuid.NewString(),
		Root:      util.NormalizeAbsPath(root),
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]*parser.FileAnalysis),
		Functions: make(map[string]*parser.FunctionAnalysis),
		Types:     make(map[string]*parser.TypeAnalysis),
	}
}

// FileCount returns the number of analyzed files.
func (g *CodeGraph) FileCount() int {
	return len(g.Files)
}

// FindFile looks a file up by normalized absolute path, by path relative to
// the root, or by a path that resolves under the root.
func (g *CodeGraph) FindFile(name string) (*parser.FileAnalysis, bool) {
	if g == nil || name == "" {
		return nil, false
	}
	if fa, ok := g.Files[name]; ok {
		return fa, true
	}
	slash := strings.TrimPrefix(filepath.ToSlash(name), "./")
	for _, fa := range g.Files {
		if fa.RelativePath == slash {
			return fa, true
		}
	}
	candidate := name
	if !filepath.IsAbs(candidate) && g.Root != "" {
		candidate = filepath.Join(g.Root, filepath.FromSlash(slash))
	}
	if fa, ok := g.Files[util.NormalizeAbsPath(candidate)]; ok {
		return fa, true
	}
	return nil, false
}

// FunctionsInFile returns the functions declared in path ordered by line.
func (g *CodeGraph) FunctionsInFile(path string) []*parser.FunctionAnalysis {
	var out []*parser.FunctionAnalysis
	for _, fn := range g.Functions {
		if fn.File == path {
			out = append(out, fn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// TypesInFile returns the types declared in path ordered by line.
func (g *CodeGraph) TypesInFile(path string) []*parser.TypeAnalysis {
	var out []*parser.TypeAnalysis
	for _, t := range g.Types {
		if t.File == path {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// merge inserts one file's records, replacing anything previously recorded
// for the same file.
func (g *CodeGraph) merge(res *parser.FileResult) {
	if res == nil || res.Analysis == nil {
		return
	}
	path := res.Analysis.Path
	if _, seen := g.Files[path]; seen {
		g.dropFile(path)
	}
	g.Files[path] = res.Analysis
	for _, fn := range res.Functions {
		g.Functions[fn.NodeID] = fn
	}
	for _, t := range res.Types {
		g.Types[t.NodeID] = t
	}
}

func (g *CodeGraph) dropFile(path string) {
	delete(g.Files, path)
	for id, fn := range g.Functions {
		if fn.File == path {
			delete(g.Functions, id)
		}
	}
	for id, t := range g.Types {
		if t.File == path {
			delete(g.Types, id)
		}
	}
}

func (g *CodeGraph) recordError(path string, code, msg string) {
	g.Errors = append(g.Errors, FileError{Path: path, Code: code, Message: msg})
}
