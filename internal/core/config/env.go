package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CODEGRAPH_[SECTION]_[KEY] (e.g., CODEGRAPH_BUILDER_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	// Scan
	setEnvInt(&cfg.Scan.MaxFileSizeMB, "CODEGRAPH_SCAN_MAX_FILE_SIZE_MB")
	setEnvList(&cfg.Scan.ExcludeDirs, "CODEGRAPH_SCAN_EXCLUDE_DIRS")
	setEnvList(&cfg.Scan.ExcludeFiles, "CODEGRAPH_SCAN_EXCLUDE_FILES")
	if val, ok := os.LookupEnv("CODEGRAPH_SCAN_RESPECT_GITIGNORE"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			logOverride("CODEGRAPH_SCAN_RESPECT_GITIGNORE", val)
			cfg.Scan.RespectGitignore = &b
		}
	}

	// Builder
	setEnvInt(&cfg.Builder.Workers, "CODEGRAPH_BUILDER_WORKERS")
	setEnvInt(&cfg.Builder.BatchSize, "CODEGRAPH_BUILDER_BATCH_SIZE")
	setEnvInt(&cfg.Builder.MemoryBudgetMB, "CODEGRAPH_BUILDER_MEMORY_BUDGET_MB")
	setEnvFloat64(&cfg.Builder.MemoryFraction, "CODEGRAPH_BUILDER_MEMORY_FRACTION")
	setEnvDuration(&cfg.Builder.ProgressLogInterval, "CODEGRAPH_BUILDER_PROGRESS_LOG_INTERVAL")

	setEnvInt(&cfg.Resolver.ImportConcurrency, "CODEGRAPH_RESOLVER_IMPORT_CONCURRENCY")

	setEnvString(&cfg.Enrichment.FanOut, "CODEGRAPH_ENRICHMENT_FAN_OUT")
	setEnvInt(&cfg.Enrichment.Limit, "CODEGRAPH_ENRICHMENT_LIMIT")

	setEnvInt(&cfg.Impact.MaxDepth, "CODEGRAPH_IMPACT_MAX_DEPTH")
	setEnvList(&cfg.Impact.EdgeKinds, "CODEGRAPH_IMPACT_EDGE_KINDS")

	// Store
	setEnvBool(&cfg.Store.Enabled, "CODEGRAPH_STORE_ENABLED")
	setEnvString(&cfg.Store.Path, "CODEGRAPH_STORE_PATH")

	setEnvDuration(&cfg.Watch.Debounce, "CODEGRAPH_WATCH_DEBOUNCE")

	// Observability
	setEnvBool(&cfg.Observability.EnableMetrics, "CODEGRAPH_OBSERVABILITY_ENABLE_METRICS")
	setEnvInt(&cfg.Observability.MetricsPort, "CODEGRAPH_OBSERVABILITY_METRICS_PORT")
	setEnvBool(&cfg.Observability.EnableTracing, "CODEGRAPH_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CODEGRAPH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "CODEGRAPH_OBSERVABILITY_SERVICE_NAME")
}

func logOverride(key, val string) {
	slog.Debug("applying env override", "key", key, "value", val)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		*target = val
	}
}

// setEnvList splits a comma separated value, dropping blanks.
func setEnvList(target *[]string, key string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	logOverride(key, val)
	out := make([]string, 0)
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*target = out
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			logOverride(key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			logOverride(key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			logOverride(key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			logOverride(key, val)
			*target = d
		}
	}
}
