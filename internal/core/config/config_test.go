package config

import (
	"codegraph/internal/core/errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[scan]
exclude_dirs = ["third_party"]
exclude_files = ["*.gen.ts"]
max_file_size_mb = 2
respect_gitignore = false

[languages.ruby]
enabled = false

[languages.typescript]
extensions = [".mts"]

[builder]
workers = 3
batch_size = 16
memory_fraction = 0.5
progress_log_interval = "5s"

[enrichment]
fan_out = "limit"
limit = 2

[impact]
max_depth = 4
edge_kinds = ["CALLS"]

[store]
enabled = true
path = "snap.db"

[watch]
debounce = "1s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scan.MaxFileSizeMB != 2 || cfg.MaxFileSizeBytes() != 2*1024*1024 {
		t.Errorf("unexpected max file size %d", cfg.Scan.MaxFileSizeMB)
	}
	if *cfg.Scan.RespectGitignore {
		t.Error("respect_gitignore should be false")
	}
	if cfg.Languages["ruby"].IsEnabled() {
		t.Error("ruby should be disabled")
	}
	if !cfg.Languages["typescript"].IsEnabled() {
		t.Error("typescript should stay enabled")
	}
	if cfg.Builder.Workers != 3 || cfg.Builder.BatchSize != 16 {
		t.Errorf("unexpected builder %+v", cfg.Builder)
	}
	if cfg.Builder.ProgressLogInterval != 5*time.Second {
		t.Errorf("expected 5s interval, got %v", cfg.Builder.ProgressLogInterval)
	}
	if cfg.Enrichment.FanOut != "limit" || cfg.Enrichment.Limit != 2 {
		t.Errorf("unexpected enrichment %+v", cfg.Enrichment)
	}
	if cfg.Impact.MaxDepth != 4 || len(cfg.Impact.EdgeKinds) != 1 {
		t.Errorf("unexpected impact %+v", cfg.Impact)
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "snap.db" {
		t.Errorf("unexpected store %+v", cfg.Store)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected 1s debounce, got %v", cfg.Watch.Debounce)
	}
	// untouched sections keep their defaults
	if cfg.Resolver.ImportConcurrency != 20 {
		t.Errorf("expected import concurrency 20, got %d", cfg.Resolver.ImportConcurrency)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.Builder.Workers != runtime.NumCPU() || cfg.Builder.Workers != def.Builder.Workers {
		t.Errorf("expected NumCPU workers, got %d", cfg.Builder.Workers)
	}
	if cfg.Scan.MaxFileSizeMB != 5 {
		t.Errorf("expected 5MB limit, got %d", cfg.Scan.MaxFileSizeMB)
	}
	if !*cfg.Scan.RespectGitignore {
		t.Error("gitignore should be respected by default")
	}
	if cfg.Enrichment.FanOut != "all" {
		t.Errorf("expected fan_out=all, got %q", cfg.Enrichment.FanOut)
	}
	if len(cfg.Impact.EdgeKinds) != 4 {
		t.Errorf("expected 4 default edge kinds, got %v", cfg.Impact.EdgeKinds)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODEGRAPH_BUILDER_WORKERS", "7")
	t.Setenv("CODEGRAPH_BUILDER_MEMORY_FRACTION", "0.25")
	t.Setenv("CODEGRAPH_SCAN_EXCLUDE_DIRS", "gen, ,out")
	t.Setenv("CODEGRAPH_SCAN_RESPECT_GITIGNORE", "false")
	t.Setenv("CODEGRAPH_WATCH_DEBOUNCE", "250ms")
	t.Setenv("CODEGRAPH_STORE_ENABLED", "TRUE")
	t.Setenv("CODEGRAPH_RESOLVER_IMPORT_CONCURRENCY", "not-a-number")

	path := writeConfig(t, "[builder]\nworkers = 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Builder.Workers != 7 {
		t.Errorf("env should win over file, got %d", cfg.Builder.Workers)
	}
	if cfg.Builder.MemoryFraction != 0.25 {
		t.Errorf("expected 0.25, got %v", cfg.Builder.MemoryFraction)
	}
	if strings.Join(cfg.Scan.ExcludeDirs, ",") != "gen,out" {
		t.Errorf("unexpected exclude dirs %v", cfg.Scan.ExcludeDirs)
	}
	if *cfg.Scan.RespectGitignore {
		t.Error("gitignore override ignored")
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("unexpected debounce %v", cfg.Watch.Debounce)
	}
	if !cfg.Store.Enabled {
		t.Error("store override ignored")
	}
	if cfg.Resolver.ImportConcurrency != 20 {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Resolver.ImportConcurrency)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"fan out", "[enrichment]\nfan_out = \"some\"\n", "FanOut"},
		{"limit without value", "[enrichment]\nfan_out = \"limit\"\n", "enrichment.limit"},
		{"memory fraction", "[builder]\nmemory_fraction = 1.5\n", "MemoryFraction"},
		{"edge kind", "[impact]\nedge_kinds = [\"CALLS\", \"FRIENDS\"]\n", "EdgeKinds"},
		{"language", "[languages.cobol]\nenabled = true\n", "Languages"},
		{"extension", "[languages.python]\nextensions = [\"pyx\"]\n", "Extensions"},
		{"tracing endpoint", "[observability]\nenable_tracing = true\n", "OTLPEndpoint"},
		{"version", "version = 3\n", "Version"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsCode(err, errors.CodeValidationError) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	_, err := Load(writeConfig(t, "[builder\nworkers = \n"))
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
