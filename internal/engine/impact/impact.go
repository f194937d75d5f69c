package impact

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"sort"
	"strings"
	"time"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityForLevel maps BFS distance to severity: direct dependents are
// high, the next ring medium, everything further low.
func SeverityForLevel(level int) Severity {
	switch {
	case level <= 1:
		return SeverityHigh
	case level == 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type ImpactedNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     graph.NodeType `json:"type"`
	Severity Severity       `json:"severity"`
	Level    int            `json:"level"`
	FilePath string         `json:"filePath"`
	// Via is the node this one was reached from.
	Via        string   `json:"via"`
	CalledBy   []string `json:"calledBy"`
	ImportedBy []string `json:"importedBy"`
	// Calls lists the node's own callees.
	Calls []string `json:"calls"`
}

type Summary struct {
	TotalImpacted int              `json:"totalImpacted"`
	MaxLevel      int              `json:"maxLevel"`
	BySeverity    map[Severity]int `json:"bySeverity"`
	Files         []string         `json:"files"`
}

type Impact struct {
	Summary        Summary                `json:"summary"`
	GroupedByLevel map[int][]ImpactedNode `json:"groupedByLevel"`
}

type ImpactResult struct {
	Function string   `json:"function"`
	Seeds    []string `json:"seeds"`
	Impact   Impact   `json:"impact"`
}

// Nodes returns every impacted node ordered by level then id.
func (r ImpactResult) Nodes() []ImpactedNode {
	levels := make([]int, 0, len(r.Impact.GroupedByLevel))
	for level := range r.Impact.GroupedByLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	var out []ImpactedNode
	for _, level := range levels {
		out = append(out, r.Impact.GroupedByLevel[level]...)
	}
	return out
}

// DefaultEdgeTypes are followed backwards during propagation.
var DefaultEdgeTypes = []graph.EdgeType{
	graph.EdgeCalls,
	graph.EdgeCallsImplementation,
	graph.EdgeImports,
	graph.EdgeImplements,
}

type Options struct {
	// MaxDepth stops propagation after this many levels. Zero is unbounded.
	MaxDepth  int
	EdgeTypes []graph.EdgeType
}

func DefaultOptions() Options {
	return Options{EdgeTypes: DefaultEdgeTypes}
}

// ComputeImpact walks reverse dependency edges from every changed function.
// Each node is reported once, at its distance from the nearest seed. The
// files declaring the seeds are seeded too, so importers of a changed file
// are reached through IMPORTS.
func ComputeImpact(eg *graph.EnrichedGraph, changes ChangeResult, opts Options) (ImpactResult, error) {
	if eg == nil {
		err := errors.New(errors.CodeGraphNotFound, "enriched graph is missing")
		return ImpactResult{}, errors.AddContext(err, errors.CtxOperation, "compute_impact")
	}
	ix := graph.NewIndex(eg)
	names := make([]string, 0)
	for _, c := range changes.All() {
		names = append(names, c.FullName)
	}
	return propagate(ix, changes.All(), strings.Join(names, ", "), opts), nil
}

// ComputeImpactPerFunction returns one result per changed function.
func ComputeImpactPerFunction(eg *graph.EnrichedGraph, changes ChangeResult, opts Options) ([]ImpactResult, error) {
	if eg == nil {
		err := errors.New(errors.CodeGraphNotFound, "enriched graph is missing")
		return nil, errors.AddContext(err, errors.CtxOperation, "compute_impact")
	}
	ix := graph.NewIndex(eg)
	out := make([]ImpactResult, 0, len(changes.All()))
	for _, c := range changes.All() {
		out = append(out, propagate(ix, []FunctionChange{c}, c.FullName, opts))
	}
	return out, nil
}

// seedIDs maps changes to node ids, falling back to a name lookup when the
// recorded id is not in this graph.
func seedIDs(ix *graph.Index, changes []FunctionChange) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, c := range changes {
		if _, ok := ix.Node(c.NodeID); ok {
			add(c.NodeID)
			continue
		}
		for _, n := range ix.FindFunction(c.File, c.FullName) {
			add(n.ID)
		}
	}
	return ids
}

func propagate(ix *graph.Index, changes []FunctionChange, label string, opts Options) ImpactResult {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("impact").Observe(time.Since(start).Seconds())
	}()

	edgeTypes := opts.EdgeTypes
	if len(edgeTypes) == 0 {
		edgeTypes = DefaultEdgeTypes
	}

	seeds := seedIDs(ix, changes)
	visited := make(map[string]bool)
	var frontier []string
	for _, id := range seeds {
		visited[id] = true
		frontier = append(frontier, id)
	}
	for _, id := range seeds {
		n, _ := ix.Node(id)
		if n != nil && !visited[n.FilePath] {
			if _, ok := ix.Node(n.FilePath); ok {
				visited[n.FilePath] = true
				frontier = append(frontier, n.FilePath)
			}
		}
	}

	grouped := make(map[int][]ImpactedNode)
	summary := Summary{BySeverity: make(map[Severity]int), Files: []string{}}
	files := make(map[string]bool)

	for level := 1; len(frontier) > 0; level++ {
		if opts.MaxDepth > 0 && level > opts.MaxDepth {
			break
		}
		var next []string
		for _, id := range frontier {
			for _, e := range ix.Incoming(id, edgeTypes...) {
				if visited[e.From] {
					continue
				}
				visited[e.From] = true
				next = append(next, e.From)
				grouped[level] = append(grouped[level], describe(ix, e.From, id, level))
			}
		}
		if nodes := grouped[level]; len(nodes) > 0 {
			sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
			summary.MaxLevel = level
			for _, n := range nodes {
				summary.TotalImpacted++
				summary.BySeverity[n.Severity]++
				files[n.FilePath] = true
			}
		}
		frontier = next
	}
	for f := range files {
		summary.Files = append(summary.Files, f)
	}
	sort.Strings(summary.Files)

	observability.ImpactedNodes.Observe(float64(summary.TotalImpacted))
	if seeds == nil {
		seeds = []string{}
	}
	return ImpactResult{
		Function: label,
		Seeds:    seeds,
		Impact:   Impact{Summary: summary, GroupedByLevel: grouped},
	}
}

func describe(ix *graph.Index, id, via string, level int) ImpactedNode {
	n, _ := ix.Node(id)
	out := ImpactedNode{
		ID:         id,
		Level:      level,
		Severity:   SeverityForLevel(level),
		Via:        via,
		CalledBy:   sources(ix.Incoming(id, graph.EdgeCalls, graph.EdgeCallsImplementation)),
		ImportedBy: sources(ix.Incoming(id, graph.EdgeImports)),
		Calls:      targets(ix.Outgoing(id, graph.EdgeCalls, graph.EdgeCallsImplementation)),
	}
	if n != nil {
		out.Name = n.FullName()
		out.Type = n.Type
		out.FilePath = n.FilePath
	}
	return out
}

func sources(edges []graph.Edge) []string {
	out := make([]string, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

func targets(edges []graph.Edge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.To)
	}
	return util.UniqueSorted(out)
}
