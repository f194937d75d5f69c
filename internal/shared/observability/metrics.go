package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegraph_parse_duration_seconds",
		Help:    "Time spent parsing and walking a single source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	FilesAnalyzedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegraph_files_analyzed_total",
		Help: "Files analyzed, partitioned by outcome (ok, partial, skipped, failed).",
	}, []string{"outcome"})

	ImportsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegraph_imports_resolved_total",
		Help: "Import resolutions, partitioned by outcome (local, external, unresolved).",
	}, []string{"outcome"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codegraph_build_duration_seconds",
		Help:    "Wall time to build a code graph for one repository snapshot.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	BuildThroughput = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_build_files_per_second",
		Help: "Throughput of the most recent graph build batch.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_graph_nodes",
		Help: "Number of nodes in the most recently enriched graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codegraph_graph_edges",
		Help: "Number of edges in the most recently enriched graph.",
	})

	ImpactedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codegraph_impacted_nodes",
		Help:    "Nodes reached by one impact propagation.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegraph_analysis_seconds",
		Help:    "Time spent on high-level tasks (enrich, detect, impact, review).",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	ResolverStatCache = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "codegraph_resolver_stat_cache",
		Help: "Import resolver stat cache counters for the last built root (hits, misses, entries).",
	}, []string{"stat"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegraph_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
