package graph

import "sort"

type NodeType string

const (
	NodeFile      NodeType = "FILE"
	NodeClass     NodeType = "CLASS"
	NodeInterface NodeType = "INTERFACE"
	NodeMethod    NodeType = "METHOD"
	NodeFunction  NodeType = "FUNCTION"
)

type EdgeType string

const (
	EdgeCalls               EdgeType = "CALLS"
	EdgeCallsImplementation EdgeType = "CALLS_IMPLEMENTATION"
	EdgeHasMethod           EdgeType = "HAS_METHOD"
	EdgeImports             EdgeType = "IMPORTS"
	EdgeImplements          EdgeType = "IMPLEMENTS"
	EdgeImplementedBy       EdgeType = "IMPLEMENTED_BY"
	EdgeExtends             EdgeType = "EXTENDS"
	EdgeExtendedBy          EdgeType = "EXTENDED_BY"
)

// Node is one vertex of the relationship graph. IDs are CodeGraph node ids,
// or the normalized path for FILE nodes.
type Node struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ClassName string   `json:"className,omitempty"`
	File      string   `json:"file"`
	FilePath  string   `json:"filePath"`
	Type      NodeType `json:"type"`
	StartLine int      `json:"startLine,omitempty"`
	EndLine   int      `json:"endLine,omitempty"`
}

// FullName qualifies methods with their owning type.
func (n Node) FullName() string {
	if n.ClassName == "" {
		return n.Name
	}
	return n.ClassName + "." + n.Name
}

type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// EnrichedGraph is the derived relationship graph over one CodeGraph. Every
// edge endpoint is a node in Nodes.
type EnrichedGraph struct {
	GraphID string `json:"graphId"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Index gives constant-time node lookup and typed adjacency over an
// EnrichedGraph.
type Index struct {
	nodes  map[string]*Node
	out    map[string][]Edge
	in     map[string][]Edge
	byName map[string][]*Node
}

func NewIndex(eg *EnrichedGraph) *Index {
	ix := &Index{
		nodes:  make(map[string]*Node, len(eg.Nodes)),
		out:    make(map[string][]Edge),
		in:     make(map[string][]Edge),
		byName: make(map[string][]*Node),
	}
	for i := range eg.Nodes {
		n := &eg.Nodes[i]
		ix.nodes[n.ID] = n
		ix.byName[n.FullName()] = append(ix.byName[n.FullName()], n)
	}
	for _, e := range eg.Edges {
		ix.out[e.From] = append(ix.out[e.From], e)
		ix.in[e.To] = append(ix.in[e.To], e)
	}
	return ix
}

func (ix *Index) Node(id string) (*Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

// Outgoing returns edges leaving id, restricted to types when given.
func (ix *Index) Outgoing(id string, types ...EdgeType) []Edge {
	return filterEdges(ix.out[id], types)
}

// Incoming returns edges entering id, restricted to types when given.
func (ix *Index) Incoming(id string, types ...EdgeType) []Edge {
	return filterEdges(ix.in[id], types)
}

// FindFunction returns the function or method nodes in file (relative or
// absolute path) with the given qualified name.
func (ix *Index) FindFunction(file, fullName string) []*Node {
	var out []*Node
	for _, n := range ix.byName[fullName] {
		if n.Type != NodeFunction && n.Type != NodeMethod {
			continue
		}
		if file == "" || n.File == file || n.FilePath == file {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func filterEdges(edges []Edge, types []EdgeType) []Edge {
	if len(types) == 0 {
		return edges
	}
	var out []Edge
	for _, e := range edges {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
