package graph

import (
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"path"
	"sort"
	"time"
)

// FanOutPolicy bounds CALLS_IMPLEMENTATION edges per interface call.
type FanOutPolicy string

const (
	FanOutAll   FanOutPolicy = "all"
	FanOutNone  FanOutPolicy = "none"
	FanOutLimit FanOutPolicy = "limit"
)

type EnrichOptions struct {
	FanOut FanOutPolicy
	// Limit caps implementations per call when FanOut is FanOutLimit.
	Limit int
}

func DefaultEnrichOptions() EnrichOptions {
	return EnrichOptions{FanOut: FanOutAll}
}

type enricher struct {
	g       *CodeGraph
	sc      *scope
	opts    EnrichOptions
	byFile  map[string][]*parser.FunctionAnalysis
	types   map[string][]*parser.TypeAnalysis
	nodes   map[string]Node
	edges   []Edge
	hasEdge map[Edge]bool
}

// Enrich derives the relationship graph of g. Calls are resolved by name:
// same file first, then the same Go package, then imported files. Callees
// that resolve nowhere are dropped.
func Enrich(g *CodeGraph, opts EnrichOptions) *EnrichedGraph {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("enrich").Observe(time.Since(start).Seconds())
	}()

	e := &enricher{
		g:       g,
		sc:      newScope(g),
		opts:    opts,
		byFile:  make(map[string][]*parser.FunctionAnalysis),
		types:   make(map[string][]*parser.TypeAnalysis),
		nodes:   make(map[string]Node),
		hasEdge: make(map[Edge]bool),
	}
	for _, id := range util.SortedStringKeys(g.Functions) {
		fn := g.Functions[id]
		e.byFile[fn.File] = append(e.byFile[fn.File], fn)
	}
	for _, id := range util.SortedStringKeys(g.Types) {
		t := g.Types[id]
		e.types[t.File] = append(e.types[t.File], t)
	}

	e.addNodes()
	e.addMethodEdges()
	e.addCallEdges()
	e.addImportEdges()
	e.addHierarchyEdges()

	eg := &EnrichedGraph{GraphID: g.ID, Nodes: make([]Node, 0, len(e.nodes)), Edges: e.edges}
	for _, id := range util.SortedStringKeys(e.nodes) {
		eg.Nodes = append(eg.Nodes, e.nodes[id])
	}
	sort.Slice(eg.Edges, func(i, j int) bool {
		a, b := eg.Edges[i], eg.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.To < b.To
	})
	if eg.Edges == nil {
		eg.Edges = []Edge{}
	}

	observability.GraphNodes.Set(float64(len(eg.Nodes)))
	observability.GraphEdges.Set(float64(len(eg.Edges)))
	return eg
}

func (e *enricher) addNodes() {
	for file, fa := range e.g.Files {
		e.nodes[file] = Node{
			ID:       file,
			Name:     path.Base(fa.RelativePath),
			File:     fa.RelativePath,
			FilePath: file,
			Type:     NodeFile,
		}
	}
	for id, t := range e.g.Types {
		typ := NodeClass
		if t.Kind == parser.TypeInterface {
			typ = NodeInterface
		}
		e.nodes[id] = Node{
			ID:        id,
			Name:      t.Name,
			File:      e.relPath(t.File),
			FilePath:  t.File,
			Type:      typ,
			StartLine: t.StartLine,
			EndLine:   t.EndLine,
		}
	}
	for id, fn := range e.g.Functions {
		typ := NodeFunction
		if fn.ClassName != "" {
			typ = NodeMethod
		}
		e.nodes[id] = Node{
			ID:        id,
			Name:      fn.Name,
			ClassName: fn.ClassName,
			File:      e.relPath(fn.File),
			FilePath:  fn.File,
			Type:      typ,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
		}
	}
}

func (e *enricher) relPath(file string) string {
	if fa, ok := e.g.Files[file]; ok {
		return fa.RelativePath
	}
	return util.RelativeSlash(e.g.Root, file)
}

func (e *enricher) addEdge(from, to string, typ EdgeType) {
	if from == "" || to == "" {
		return
	}
	if _, ok := e.nodes[from]; !ok {
		return
	}
	if _, ok := e.nodes[to]; !ok {
		return
	}
	edge := Edge{From: from, To: to, Type: typ}
	if e.hasEdge[edge] {
		return
	}
	e.hasEdge[edge] = true
	e.edges = append(e.edges, edge)
}

func (e *enricher) addMethodEdges() {
	for _, id := range util.SortedStringKeys(e.g.Types) {
		t := e.g.Types[id]
		for _, m := range e.sc.methodsOf(t) {
			e.addEdge(t.NodeID, m.NodeID, EdgeHasMethod)
		}
	}
}

func (e *enricher) addCallEdges() {
	for _, file := range util.SortedStringKeys(e.g.Files) {
		fa := e.g.Files[file]
		inFunction := make(map[string]bool)
		for _, fn := range e.byFile[file] {
			for _, call := range fn.Calls {
				inFunction[call.NodeID] = true
				e.addCall(fn.NodeID, fa, call)
			}
		}
		// Top-level statements call from the file itself.
		for _, call := range fa.Calls {
			if !inFunction[call.NodeID] {
				e.addCall(file, fa, call)
			}
		}
	}
}

func (e *enricher) addCall(from string, fa *parser.FileAnalysis, call parser.CallRecord) {
	for _, target := range e.resolveCall(fa, call) {
		e.addEdge(from, target, EdgeCalls)
		for _, impl := range e.implementations(target) {
			e.addEdge(from, impl, EdgeCallsImplementation)
		}
	}
}

// resolveCall maps a call site to callee node ids.
func (e *enricher) resolveCall(fa *parser.FileAnalysis, call parser.CallRecord) []string {
	if call.Constructor {
		return e.constructorTargets(fa, call.ClassName)
	}
	if call.SelfCall && call.ClassName != "" {
		for _, t := range e.sc.lookupType(fa.Path, fa.Language, call.ClassName) {
			if ids := methodsNamed(e.sc.methodsOf(t), call.Name); len(ids) > 0 {
				return ids
			}
		}
	}
	scopes := [][]*parser.FileAnalysis{{fa}, e.sc.packageFiles(fa), e.sc.importedFiles(fa)}
	for _, files := range scopes {
		if ids := e.functionsNamed(files, call); len(ids) > 0 {
			return ids
		}
		// A plain call of a class name is a constructor in Python and friends.
		for _, target := range files {
			for _, t := range e.types[target.Path] {
				if t.Name == call.Name {
					return e.constructorOf(t)
				}
			}
		}
	}
	return nil
}

func (e *enricher) functionsNamed(files []*parser.FileAnalysis, call parser.CallRecord) []string {
	var free, methods []string
	for _, fa := range files {
		for _, fn := range e.byFile[fa.Path] {
			if fn.Name != call.Name {
				continue
			}
			if fn.ClassName == "" {
				free = append(free, fn.NodeID)
			} else {
				methods = append(methods, fn.NodeID)
			}
		}
	}
	// A bare call prefers free functions; a receiver call prefers methods.
	if call.Receiver == "" && len(free) > 0 {
		return free
	}
	if call.Receiver != "" && len(methods) > 0 {
		return methods
	}
	return append(free, methods...)
}

func methodsNamed(methods []*parser.FunctionAnalysis, name string) []string {
	var ids []string
	for _, m := range methods {
		if m.Name == name {
			ids = append(ids, m.NodeID)
		}
	}
	return ids
}

func (e *enricher) constructorTargets(fa *parser.FileAnalysis, className string) []string {
	var ids []string
	for _, t := range e.sc.lookupType(fa.Path, fa.Language, className) {
		ids = append(ids, e.constructorOf(t)...)
	}
	return ids
}

// constructorOf returns t's constructor, or t itself when none is declared.
// An empty per-language constructor name means constructors share the
// class name.
func (e *enricher) constructorOf(t *parser.TypeAnalysis) []string {
	name := parser.ConstructorName(t.Language)
	if name == "" {
		name = t.Name
	}
	if ids := methodsNamed(e.sc.methodsOf(t), name); len(ids) > 0 {
		return ids
	}
	return []string{t.NodeID}
}

// implementations returns the concrete methods a call to an interface
// method may dispatch to, bounded by the fan-out policy.
func (e *enricher) implementations(target string) []string {
	if e.opts.FanOut == FanOutNone {
		return nil
	}
	fn, ok := e.g.Functions[target]
	if !ok || fn.ClassName == "" {
		return nil
	}
	var iface *parser.TypeAnalysis
	for _, t := range e.types[fn.File] {
		if t.Name == fn.ClassName && t.Kind == parser.TypeInterface {
			iface = t
			break
		}
	}
	if iface == nil {
		return nil
	}

	var ids []string
	for _, implName := range iface.ImplementedBy {
		for _, impl := range e.sc.byName[implName] {
			if !e.implementsType(impl, iface) {
				continue
			}
			ids = append(ids, methodsNamed(e.sc.methodsOf(impl), fn.Name)...)
		}
	}
	ids = util.UniqueSorted(ids)
	if e.opts.FanOut == FanOutLimit && e.opts.Limit >= 0 && len(ids) > e.opts.Limit {
		ids = ids[:e.opts.Limit]
	}
	return ids
}

func (e *enricher) implementsType(t, iface *parser.TypeAnalysis) bool {
	for _, name := range t.Implements {
		for _, target := range e.sc.lookupType(t.File, t.Language, name) {
			if target == iface {
				return true
			}
		}
	}
	return false
}

func (e *enricher) addImportEdges() {
	for _, file := range util.SortedStringKeys(e.g.Files) {
		for _, target := range e.sc.importedFiles(e.g.Files[file]) {
			e.addEdge(file, target.Path, EdgeImports)
		}
	}
}

func (e *enricher) addHierarchyEdges() {
	for _, id := range util.SortedStringKeys(e.g.Types) {
		t := e.g.Types[id]
		for _, name := range t.Implements {
			for _, target := range e.sc.lookupType(t.File, t.Language, name) {
				if target == t {
					continue
				}
				e.addEdge(t.NodeID, target.NodeID, EdgeImplements)
				e.addEdge(target.NodeID, t.NodeID, EdgeImplementedBy)
			}
		}
		for _, name := range t.Extends {
			for _, target := range e.sc.lookupType(t.File, t.Language, name) {
				if target == t {
					continue
				}
				e.addEdge(t.NodeID, target.NodeID, EdgeExtends)
				e.addEdge(target.NodeID, t.NodeID, EdgeExtendedBy)
			}
		}
	}
}
