package config

import (
	"runtime"
	"time"
)

// DefaultFile is looked up in the repository root when no --config is given.
const DefaultFile = "codegraph.toml"

type Config struct {
	Version       int                 `toml:"version" validate:"gte=1,lte=1"`
	Scan          Scan                `toml:"scan"`
	Languages     map[string]Language `toml:"languages" validate:"dive,keys,oneof=typescript tsx javascript python ruby rust php java csharp go,endkeys"`
	Builder       Builder             `toml:"builder"`
	Resolver      Resolver            `toml:"resolver"`
	Enrichment    Enrichment          `toml:"enrichment"`
	Impact        Impact              `toml:"impact"`
	Store         Store               `toml:"store"`
	Watch         Watch               `toml:"watch"`
	Observability Observability       `toml:"observability"`
}

type Scan struct {
	ExcludeDirs      []string `toml:"exclude_dirs" validate:"dive,required"`
	ExcludeFiles     []string `toml:"exclude_files" validate:"dive,required"`
	MaxFileSizeMB    int      `toml:"max_file_size_mb" validate:"gte=1"`
	RespectGitignore *bool    `toml:"respect_gitignore"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions" validate:"dive,startswith=."`
}

func (l Language) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

type Builder struct {
	Workers             int           `toml:"workers" validate:"gte=1"`
	BatchSize           int           `toml:"batch_size" validate:"gte=1"`
	MemoryBudgetMB      int           `toml:"memory_budget_mb" validate:"gte=0"`
	MemoryFraction      float64       `toml:"memory_fraction" validate:"gt=0,lte=1"`
	ProgressLogInterval time.Duration `toml:"progress_log_interval" validate:"gte=0"`
}

type Resolver struct {
	ImportConcurrency int `toml:"import_concurrency" validate:"gte=1"`
}

type Enrichment struct {
	FanOut string `toml:"fan_out" validate:"oneof=all none limit"`
	Limit  int    `toml:"limit" validate:"gte=0"`
}

type Impact struct {
	MaxDepth  int      `toml:"max_depth" validate:"gte=0"`
	EdgeKinds []string `toml:"edge_kinds" validate:"dive,oneof=CALLS CALLS_IMPLEMENTATION IMPORTS IMPLEMENTS EXTENDS"`
}

type Store struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce" validate:"gte=0"`
}

type Observability struct {
	EnableMetrics bool   `toml:"enable_metrics"`
	MetricsPort   int    `toml:"metrics_port" validate:"gte=0,lte=65535"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint" validate:"required_if=EnableTracing true"`
	ServiceName   string `toml:"service_name"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Scan.MaxFileSizeMB == 0 {
		cfg.Scan.MaxFileSizeMB = 5
	}
	if cfg.Scan.RespectGitignore == nil {
		enabled := true
		cfg.Scan.RespectGitignore = &enabled
	}
	if cfg.Languages == nil {
		cfg.Languages = make(map[string]Language)
	}

	if cfg.Builder.Workers == 0 {
		cfg.Builder.Workers = runtime.NumCPU()
	}
	if cfg.Builder.BatchSize == 0 {
		cfg.Builder.BatchSize = 64
	}
	if cfg.Builder.MemoryBudgetMB == 0 {
		cfg.Builder.MemoryBudgetMB = 2048
	}
	if cfg.Builder.MemoryFraction == 0 {
		cfg.Builder.MemoryFraction = 0.8
	}
	if cfg.Builder.ProgressLogInterval == 0 {
		cfg.Builder.ProgressLogInterval = 2 * time.Second
	}

	if cfg.Resolver.ImportConcurrency == 0 {
		cfg.Resolver.ImportConcurrency = 20
	}
	if cfg.Enrichment.FanOut == "" {
		cfg.Enrichment.FanOut = "all"
	}
	if len(cfg.Impact.EdgeKinds) == 0 {
		cfg.Impact.EdgeKinds = []string{"CALLS", "CALLS_IMPLEMENTATION", "IMPORTS", "IMPLEMENTS"}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".codegraph/graphs.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Observability.MetricsPort == 0 {
		cfg.Observability.MetricsPort = 9464
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "codegraph"
	}
}

// MaxFileSizeBytes converts the scan limit for the analyzer.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Scan.MaxFileSizeMB) * 1024 * 1024
}
