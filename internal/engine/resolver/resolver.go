package resolver

import (
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/util"
	"path/filepath"
	"strings"
)

// ResolvedImport is the normalized identity of one import statement.
type ResolvedImport struct {
	OriginalPath   string          `json:"originalPath"`
	NormalizedPath string          `json:"normalizedPath"`
	RelativePath   string          `json:"relativePath,omitempty"`
	IsExternal     bool            `json:"isExternal"`
	Language       parser.Language `json:"language"`
	UsedAlias      bool            `json:"usedAlias,omitempty"`
	// Resolved is false when a local-looking import matched no file and the
	// literal text was kept.
	Resolved bool `json:"resolved"`
}

// Link converts the result into the record stored on a FileAnalysis.
func (r ResolvedImport) Link() parser.ImportLink {
	return parser.ImportLink{
		Original:   r.OriginalPath,
		Normalized: r.NormalizedPath,
		Relative:   r.RelativePath,
		External:   r.IsExternal,
		UsedAlias:  r.UsedAlias,
		Resolved:   r.Resolved,
	}
}

// Request is one import to resolve.
type Request struct {
	Imported string
	FromFile string // absolute path of the importing file
	Language parser.Language
}

// Resolver turns raw import text into a ResolvedImport for one build
// ecosystem. Initialize is called once per project root before any
// ResolveImport; ResolveImport must be safe for concurrent use.
type Resolver interface {
	Name() string
	CanHandle(root string) bool
	Initialize(root string) error
	ResolveImport(req Request) ResolvedImport
}

// project holds the state every ecosystem resolver shares: the root, the
// declared dependency set and a stat cache.
type project struct {
	root  string
	deps  map[string]bool
	stats *util.LRU[string, bool]
}

const statCacheSize = 8192

func newProject(root string) project {
	return project{
		root:  util.NormalizeAbsPath(root),
		deps:  make(map[string]bool),
		stats: util.NewLRU[string, bool](statCacheSize),
	}
}

func (p *project) addDep(name string) {
	name = strings.TrimSpace(name)
	if name != "" {
		p.deps[name] = true
	}
}

// exists reports whether path is a regular file, consulting the stat cache.
func (p *project) exists(path string) bool {
	return p.stats.GetOrLoad(path, util.FileExists)
}

// dirExists shares the stat cache; directory keys carry a trailing separator.
func (p *project) dirExists(path string) bool {
	return p.stats.GetOrLoad(path+string(filepath.Separator), func(key string) bool {
		return util.DirExists(strings.TrimSuffix(key, string(filepath.Separator)))
	})
}

// StatCacheStats describes a resolver's stat cache.
type StatCacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

func (s StatCacheStats) add(o StatCacheStats) StatCacheStats {
	return StatCacheStats{Hits: s.Hits + o.Hits, Misses: s.Misses + o.Misses, Entries: s.Entries + o.Entries}
}

type statCached interface {
	statCacheStats() StatCacheStats
}

func (p *project) statCacheStats() StatCacheStats {
	hits, misses := p.stats.Stats()
	return StatCacheStats{Hits: hits, Misses: misses, Entries: p.stats.Len()}
}

// lookup returns the first existing file among base+ext for each ext, then
// base/index+ext for each index name.
func (p *project) lookup(base string, exts []string, indexes []string) (string, bool) {
	if p.exists(base) {
		return base, true
	}
	for _, ext := range exts {
		if candidate := base + ext; p.exists(candidate) {
			return candidate, true
		}
	}
	for _, index := range indexes {
		for _, ext := range exts {
			if candidate := filepath.Join(base, index+ext); p.exists(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (p *project) local(req Request, path string, alias bool) ResolvedImport {
	normalized := util.NormalizeAbsPath(path)
	return ResolvedImport{
		OriginalPath:   req.Imported,
		NormalizedPath: normalized,
		RelativePath:   util.RelativeSlash(p.root, normalized),
		Language:       req.Language,
		UsedAlias:      alias,
		Resolved:       true,
	}
}

func external(req Request) ResolvedImport {
	return ResolvedImport{
		OriginalPath:   req.Imported,
		NormalizedPath: req.Imported,
		IsExternal:     true,
		Language:       req.Language,
		Resolved:       true,
	}
}

// unresolved keeps the literal text. It is ambiguous, not an error.
func unresolved(req Request) ResolvedImport {
	return ResolvedImport{
		OriginalPath:   req.Imported,
		NormalizedPath: req.Imported,
		Language:       req.Language,
	}
}

func isRelative(imported string) bool {
	return imported == "." || imported == ".." ||
		strings.HasPrefix(imported, "./") || strings.HasPrefix(imported, "../")
}

func fileDir(fromFile string) string {
	return filepath.Dir(fromFile)
}

// rootNamespace returns the leading segment of imported split on any of seps.
func rootNamespace(imported string, seps string) string {
	if i := strings.IndexAny(imported, seps); i >= 0 {
		return imported[:i]
	}
	return imported
}

func hasMarker(root string, names ...string) bool {
	for _, name := range names {
		if util.FileExists(filepath.Join(root, name)) {
			return true
		}
	}
	return false
}

func globMarker(root, pattern string) []string {
	matches, _ := filepath.Glob(filepath.Join(root, pattern))
	return matches
}
