package graph

import (
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/util"
	"path/filepath"
	"sort"
	"strings"
)

// finalize derives the cross-file type facts a single file parse cannot
// know. It runs once, after the last merge.
func finalize(g *CodeGraph) {
	sc := newScope(g)
	applyRelations(g, sc)
	inferGoImplements(g, sc)
	reclassifyInterfaceBases(g, sc)
	mirrorHierarchy(g, sc)
}

// scope answers "which type does this name refer to from that file".
type scope struct {
	g       *CodeGraph
	byName  map[string][]*parser.TypeAnalysis
	byDir   map[string][]*parser.FileAnalysis
	methods map[string][]*parser.FunctionAnalysis // "file\x00Class" -> methods
}

func newScope(g *CodeGraph) *scope {
	sc := &scope{
		g:       g,
		byName:  make(map[string][]*parser.TypeAnalysis),
		byDir:   make(map[string][]*parser.FileAnalysis),
		methods: make(map[string][]*parser.FunctionAnalysis),
	}
	for _, id := range util.SortedStringKeys(g.Types) {
		t := g.Types[id]
		sc.byName[t.Name] = append(sc.byName[t.Name], t)
	}
	for _, path := range util.SortedStringKeys(g.Files) {
		dir := filepath.Dir(path)
		sc.byDir[dir] = append(sc.byDir[dir], g.Files[path])
	}
	for _, id := range util.SortedStringKeys(g.Functions) {
		fn := g.Functions[id]
		if fn.ClassName != "" {
			key := fn.File + "\x00" + fn.ClassName
			sc.methods[key] = append(sc.methods[key], fn)
		}
	}
	return sc
}

// baseName strips qualification and generic arguments from a type reference.
func baseName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "<[("); i > 0 {
		ref = ref[:i]
	}
	for _, sep := range []string{"::", `\`, "."} {
		if i := strings.LastIndex(ref, sep); i >= 0 {
			ref = ref[i+len(sep):]
		}
	}
	return ref
}

// importedFiles returns the local files fa imports. Directory imports
// expand to every analyzed file in that directory.
func (sc *scope) importedFiles(fa *parser.FileAnalysis) []*parser.FileAnalysis {
	if fa == nil {
		return nil
	}
	var out []*parser.FileAnalysis
	seen := make(map[string]bool)
	add := func(target *parser.FileAnalysis) {
		if target != nil && target.Path != fa.Path && !seen[target.Path] {
			seen[target.Path] = true
			out = append(out, target)
		}
	}
	for _, link := range fa.ResolvedImports {
		if !link.Resolved || link.External {
			continue
		}
		if target, ok := sc.g.Files[link.Normalized]; ok {
			add(target)
			continue
		}
		for _, target := range sc.byDir[link.Normalized] {
			add(target)
		}
	}
	return out
}

// packageScoped languages see every declaration in the same directory
// without an import: a Go package, a Java package, a C# namespace.
var packageScoped = map[parser.Language]bool{
	parser.LangGo:     true,
	parser.LangJava:   true,
	parser.LangCSharp: true,
}

// packageFiles returns the files that share fa's package scope.
func (sc *scope) packageFiles(fa *parser.FileAnalysis) []*parser.FileAnalysis {
	if fa == nil || !packageScoped[fa.Language] {
		return nil
	}
	var out []*parser.FileAnalysis
	for _, other := range sc.byDir[filepath.Dir(fa.Path)] {
		if other.Path != fa.Path && other.Language == fa.Language {
			out = append(out, other)
		}
	}
	return out
}

// lookupType resolves name as seen from file: same file, then same package,
// then imported files, then any type of the same language family with a
// unique name.
func (sc *scope) lookupType(file string, lang parser.Language, name string) []*parser.TypeAnalysis {
	name = baseName(name)
	candidates := sc.byName[name]
	if len(candidates) == 0 {
		return nil
	}
	fa := sc.g.Files[file]

	pick := func(files []*parser.FileAnalysis) []*parser.TypeAnalysis {
		var out []*parser.TypeAnalysis
		for _, target := range files {
			for _, t := range candidates {
				if t.File == target.Path {
					out = append(out, t)
				}
			}
		}
		return out
	}
	if fa != nil {
		if found := pick([]*parser.FileAnalysis{fa}); len(found) > 0 {
			return found
		}
		if found := pick(sc.packageFiles(fa)); len(found) > 0 {
			return found
		}
		if found := pick(sc.importedFiles(fa)); len(found) > 0 {
			return found
		}
	}
	var same []*parser.TypeAnalysis
	for _, t := range candidates {
		if t.Language.Family() == lang.Family() {
			same = append(same, t)
		}
	}
	if len(same) == 1 {
		return same
	}
	return nil
}

// methodsOf returns the methods declared for t. Go methods may live in any
// file of the package.
func (sc *scope) methodsOf(t *parser.TypeAnalysis) []*parser.FunctionAnalysis {
	out := append([]*parser.FunctionAnalysis{}, sc.methods[t.File+"\x00"+t.Name]...)
	if t.Language == parser.LangGo {
		for _, other := range sc.packageFiles(sc.g.Files[t.File]) {
			out = append(out, sc.methods[other.Path+"\x00"+t.Name]...)
		}
	}
	return out
}

// applyRelations attaches out-of-line declarations such as Rust's
// `impl Trait for Type` to the named type.
func applyRelations(g *CodeGraph, sc *scope) {
	for _, path := range util.SortedStringKeys(g.Files) {
		fa := g.Files[path]
		for _, rel := range fa.Relations {
			for _, t := range sc.lookupType(fa.Path, fa.Language, rel.TypeName) {
				switch rel.Kind {
				case parser.RelationImplements:
					t.Implements = appendUnique(t.Implements, rel.Target)
				case parser.RelationExtends:
					t.Extends = appendUnique(t.Extends, rel.Target)
				}
			}
		}
	}
}

// inferGoImplements records structural interface satisfaction: a Go struct
// implements an interface when its method names cover the interface's.
// Parameter and result types are not compared.
func inferGoImplements(g *CodeGraph, sc *scope) {
	type methodSet struct {
		t     *parser.TypeAnalysis
		names map[string]bool
	}
	var ifaces, structs []methodSet
	for _, id := range util.SortedStringKeys(g.Types) {
		t := g.Types[id]
		if t.Language != parser.LangGo {
			continue
		}
		names := make(map[string]bool)
		for _, m := range sc.methodsOf(t) {
			names[m.Name] = true
		}
		if len(names) == 0 {
			continue
		}
		if t.Kind == parser.TypeInterface {
			ifaces = append(ifaces, methodSet{t, names})
		} else {
			structs = append(structs, methodSet{t, names})
		}
	}
	for _, s := range structs {
		for _, iface := range ifaces {
			if isMethodSuperset(s.names, iface.names) {
				s.t.Implements = appendUnique(s.t.Implements, iface.t.Name)
			}
		}
	}
}

func isMethodSuperset(superset, subset map[string]bool) bool {
	for name := range subset {
		if !superset[name] {
			return false
		}
	}
	return true
}

// reclassifyInterfaceBases moves a class's base that resolves to an
// interface from Extends to Implements. Python protocols and Ruby mixins
// arrive as bases.
func reclassifyInterfaceBases(g *CodeGraph, sc *scope) {
	for _, id := range util.SortedStringKeys(g.Types) {
		t := g.Types[id]
		if t.Kind == parser.TypeInterface {
			continue
		}
		kept := t.Extends[:0]
		for _, base := range t.Extends {
			targets := sc.lookupType(t.File, t.Language, base)
			if len(targets) > 0 && targets[0].Kind == parser.TypeInterface {
				t.Implements = appendUnique(t.Implements, base)
				continue
			}
			kept = append(kept, base)
		}
		t.Extends = kept
	}
}

// mirrorHierarchy fills ExtendedBy and ImplementedBy from the forward lists.
func mirrorHierarchy(g *CodeGraph, sc *scope) {
	for _, t := range g.Types {
		t.ExtendedBy = []string{}
		t.ImplementedBy = []string{}
	}
	for _, id := range util.SortedStringKeys(g.Types) {
		t := g.Types[id]
		for _, base := range t.Extends {
			for _, target := range sc.lookupType(t.File, t.Language, base) {
				if target != t {
					target.ExtendedBy = appendUnique(target.ExtendedBy, t.Name)
				}
			}
		}
		for _, iface := range t.Implements {
			for _, target := range sc.lookupType(t.File, t.Language, iface) {
				if target != t {
					target.ImplementedBy = appendUnique(target.ImplementedBy, t.Name)
				}
			}
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	list = append(list, v)
	sort.Strings(list)
	return list
}
