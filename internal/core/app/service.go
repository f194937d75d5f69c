// Package app wires configuration, the graph builder, the impact analyzer and
// the snapshot store into the operations the CLI exposes.
package app

import (
	"codegraph/internal/core/config"
	"codegraph/internal/core/errors"
	"codegraph/internal/core/ports"
	"codegraph/internal/data/store"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/observability"
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	cfg     *config.Config
	builder ports.GraphBuilder
	store   ports.SnapshotStore
}

type Option func(*serviceOptions)

type serviceOptions struct {
	onProgress graph.ProgressFunc
	store      ports.SnapshotStore
}

// WithProgress receives batch progress of every build the service runs.
func WithProgress(fn graph.ProgressFunc) Option {
	return func(o *serviceOptions) { o.onProgress = fn }
}

// WithStore overrides the store opened from configuration.
func WithStore(s ports.SnapshotStore) Option {
	return func(o *serviceOptions) { o.store = s }
}

func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	builderOpts := BuilderOptions(cfg)
	if o.onProgress != nil {
		builderOpts = append(builderOpts, graph.WithProgressCallback(o.onProgress))
	}
	b, err := graph.NewBuilder(builderOpts...)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "new_builder")
	}

	s := &Service{cfg: cfg, builder: b, store: o.store}
	if s.store == nil && cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.store = st
	}
	return s, nil
}

// BuilderOptions translates configuration into graph builder options.
func BuilderOptions(cfg *config.Config) []graph.BuilderOption {
	langs := make(map[parser.Language]parser.LanguageOptions, len(cfg.Languages))
	for id, l := range cfg.Languages {
		langs[parser.Language(id)] = parser.LanguageOptions{
			Disabled:        !l.IsEnabled(),
			ExtraExtensions: l.Extensions,
		}
	}
	respect := cfg.Scan.RespectGitignore == nil || *cfg.Scan.RespectGitignore
	return []graph.BuilderOption{
		graph.WithWorkerCount(cfg.Builder.Workers),
		graph.WithBatchSize(cfg.Builder.BatchSize),
		graph.WithMemoryBudget(uint64(cfg.Builder.MemoryBudgetMB), cfg.Builder.MemoryFraction),
		graph.WithMaxFileSize(cfg.MaxFileSizeBytes()),
		graph.WithImportConcurrency(cfg.Resolver.ImportConcurrency),
		graph.WithProgressLogInterval(cfg.Builder.ProgressLogInterval),
		graph.WithLanguageOptions(langs),
		graph.WithEnumerateOptions(graph.EnumerateOptions{
			ExcludeDirs:      cfg.Scan.ExcludeDirs,
			ExcludeFiles:     cfg.Scan.ExcludeFiles,
			RespectGitignore: respect,
		}),
	}
}

// EnrichOptions translates the enrichment section.
func EnrichOptions(cfg *config.Config) graph.EnrichOptions {
	opts := graph.DefaultEnrichOptions()
	if cfg.Enrichment.FanOut != "" {
		opts.FanOut = graph.FanOutPolicy(cfg.Enrichment.FanOut)
	}
	opts.Limit = cfg.Enrichment.Limit
	return opts
}

// ImpactOptions translates the impact section.
func ImpactOptions(cfg *config.Config) impact.Options {
	opts := impact.DefaultOptions()
	opts.MaxDepth = cfg.Impact.MaxDepth
	if len(cfg.Impact.EdgeKinds) > 0 {
		opts.EdgeTypes = make([]graph.EdgeType, 0, len(cfg.Impact.EdgeKinds))
		for _, k := range cfg.Impact.EdgeKinds {
			opts.EdgeTypes = append(opts.EdgeTypes, graph.EdgeType(k))
		}
	}
	return opts
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

func (s *Service) Store() ports.SnapshotStore {
	return s.store
}

func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// BuildGraph builds the CodeGraph of root, optionally restricted to filePaths.
func (s *Service) BuildGraph(ctx context.Context, root string, filePaths []string) (*graph.CodeGraph, error) {
	return s.builder.Build(ctx, root, filePaths)
}

// StreamGraph returns a consumer-paced build of root.
func (s *Service) StreamGraph(ctx context.Context, root string, filePaths []string) (*graph.Stream, error) {
	return s.builder.Stream(ctx, root, filePaths)
}

func (s *Service) Enrich(ctx context.Context, g *graph.CodeGraph) (*graph.EnrichedGraph, error) {
	if g == nil {
		return nil, errors.New(errors.CodeGraphNotFound, "code graph is missing")
	}
	_, span := observability.Tracer.Start(ctx, "Service.Enrich",
		trace.WithAttributes(attribute.Int("files", g.FileCount())))
	defer span.End()
	eg := graph.Enrich(g, EnrichOptions(s.cfg))
	span.SetAttributes(attribute.Int("nodes", len(eg.Nodes)), attribute.Int("edges", len(eg.Edges)))
	return eg, nil
}

func (s *Service) requireStore() error {
	if s.store == nil {
		return errors.New(errors.CodeValidationError, "snapshot store is disabled; set [store] enabled = true")
	}
	return nil
}

// SaveSnapshot stores g under label.
func (s *Service) SaveSnapshot(label string, g *graph.CodeGraph) (store.Entry, error) {
	if err := s.requireStore(); err != nil {
		return store.Entry{}, err
	}
	return s.store.Save(label, g)
}

// LoadSnapshot loads the graph stored under label.
func (s *Service) LoadSnapshot(label string) (*graph.CodeGraph, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	g, err := s.store.Load(label)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, fmt.Sprintf("load_snapshot:%s", label))
	}
	return g, nil
}

func (s *Service) ListSnapshots() ([]store.Entry, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	return s.store.List()
}

func (s *Service) DeleteSnapshot(label string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	return s.store.Delete(label)
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return observability.Tracer.Start(ctx, name)
}
