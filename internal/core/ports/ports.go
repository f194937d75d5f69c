package ports

import (
	"codegraph/internal/data/store"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/parser"
	"context"
)

// SnapshotStore abstracts labelled graph persistence for review and watch
// workflows.
type SnapshotStore interface {
	Save(label string, g *graph.CodeGraph) (store.Entry, error)
	Load(label string) (*graph.CodeGraph, error)
	List() ([]store.Entry, error)
	Delete(label string) error
	Close() error
}

// GraphBuilder abstracts whole-repository graph construction.
type GraphBuilder interface {
	Build(ctx context.Context, root string, filePaths []string) (*graph.CodeGraph, error)
	Stream(ctx context.Context, root string, filePaths []string) (*graph.Stream, error)
	Registry() *parser.GrammarRegistry
}

var (
	_ SnapshotStore = (*store.Store)(nil)
	_ GraphBuilder  = (*graph.Builder)(nil)
)
