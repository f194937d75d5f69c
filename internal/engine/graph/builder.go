package graph

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/analyzer"
	"codegraph/internal/engine/parser"
	"codegraph/internal/engine/resolver"
	"codegraph/internal/shared/util"
	"runtime"
	"time"
)

// Progress is reported once per completed batch.
type Progress struct {
	ProcessedFiles int           `json:"processedFiles"`
	TotalFiles     int           `json:"totalFiles"`
	Percentage     float64       `json:"percentage"`
	BatchErrors    []FileError   `json:"batchErrors,omitempty"`
	FilesPerSec    float64       `json:"filesPerSec"`
	AvgLatency     time.Duration `json:"avgLatency"`
	Batch          int           `json:"batch"`
}

// ProgressFunc receives batch progress. It runs on the building goroutine
// and must not block for long.
type ProgressFunc func(Progress)

type BuilderOptions struct {
	// WorkerCount is the number of files parsed in parallel. Each worker
	// owns its own grammar registry, parser and analyzer.
	WorkerCount int

	// BatchSize is the number of files submitted per batch; the stream
	// suspends between batches.
	BatchSize int

	// MemoryBudgetMB and MemoryFraction pause batch submission while heap
	// usage exceeds MemoryFraction*MemoryBudgetMB. Zero disables the check.
	MemoryBudgetMB uint64
	MemoryFraction float64

	MaxFileSize       int64
	ImportConcurrency int

	// ProgressLogInterval throttles progress log lines.
	ProgressLogInterval time.Duration

	Languages  map[parser.Language]parser.LanguageOptions
	Enumerate  EnumerateOptions
	Resolvers  *resolver.Cache
	OnProgress ProgressFunc
}

func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		WorkerCount:         runtime.NumCPU(),
		BatchSize:           64,
		MemoryBudgetMB:      2048,
		MemoryFraction:      0.8,
		MaxFileSize:         analyzer.DefaultMaxFileSize,
		ImportConcurrency:   analyzer.DefaultImportConcurrency,
		ProgressLogInterval: 2 * time.Second,
		Enumerate:           EnumerateOptions{RespectGitignore: true},
	}
}

type BuilderOption func(*BuilderOptions)

func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.WorkerCount = n
		}
	}
}

func WithBatchSize(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.BatchSize = n
		}
	}
}

// WithMemoryBudget sets the heap budget and the fraction of it at which
// batch submission pauses.
func WithMemoryBudget(budgetMB uint64, fraction float64) BuilderOption {
	return func(o *BuilderOptions) {
		o.MemoryBudgetMB = budgetMB
		o.MemoryFraction = fraction
	}
}

func WithMaxFileSize(bytes int64) BuilderOption {
	return func(o *BuilderOptions) {
		if bytes > 0 {
			o.MaxFileSize = bytes
		}
	}
}

func WithImportConcurrency(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.ImportConcurrency = n
		}
	}
}

func WithProgressLogInterval(d time.Duration) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressLogInterval = d
	}
}

func WithLanguageOptions(langs map[parser.Language]parser.LanguageOptions) BuilderOption {
	return func(o *BuilderOptions) {
		o.Languages = langs
	}
}

func WithEnumerateOptions(opts EnumerateOptions) BuilderOption {
	return func(o *BuilderOptions) {
		o.Enumerate = opts
	}
}

// WithResolverCache shares resolver initialisation across builds.
func WithResolverCache(cache *resolver.Cache) BuilderOption {
	return func(o *BuilderOptions) {
		o.Resolvers = cache
	}
}

func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.OnProgress = fn
	}
}

// Builder assembles CodeGraphs. A Builder may run several builds, but a
// single build is driven from one goroutine.
type Builder struct {
	opts      BuilderOptions
	registry  *parser.GrammarRegistry
	resolvers *resolver.Cache
	workers   chan *analyzer.Analyzer
}

func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	o := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = o.WorkerCount
	}
	cache := o.Resolvers
	if cache == nil {
		cache = resolver.NewCache(nil)
	}

	registry, err := parser.NewGrammarRegistry(o.Languages)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		opts:      o,
		registry:  registry,
		resolvers: cache,
		workers:   make(chan *analyzer.Analyzer, o.WorkerCount),
	}
	for i := 0; i < o.WorkerCount; i++ {
		// Grammars and parsers are never shared between workers.
		own, err := parser.NewGrammarRegistry(o.Languages)
		if err != nil {
			return nil, err
		}
		b.workers <- analyzer.New(parser.NewParser(own), cache,
			analyzer.WithMaxFileSize(o.MaxFileSize),
			analyzer.WithImportConcurrency(o.ImportConcurrency),
		)
	}
	return b, nil
}

// Options returns the effective options.
func (b *Builder) Options() BuilderOptions {
	return b.opts
}

// Registry returns the grammar registry used for file enumeration.
func (b *Builder) Registry() *parser.GrammarRegistry {
	return b.registry
}

// Enumerate lists the files a build of root would analyze.
func (b *Builder) Enumerate(root string, filePaths []string) ([]string, error) {
	opts := b.opts.Enumerate
	if filePaths != nil {
		opts.AllowList = filePaths
	}
	return EnumerateFiles(root, b.registry, opts)
}

func (b *Builder) checkRoot(root string) (string, error) {
	abs := util.NormalizeAbsPath(root)
	if root == "" || !util.DirExists(abs) {
		err := errors.New(errors.CodeValidationError, "repository root does not exist")
		err = errors.AddContext(err, errors.CtxPath, root)
		return "", errors.AddContext(err, errors.CtxOperation, "build")
	}
	return abs, nil
}
