package graph

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/analyzer"
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	memoryPollInterval = 50 * time.Millisecond
	memoryMaxWait      = 2 * time.Second
)

// Build analyzes every supported file under root (or only filePaths when
// non-nil) and returns the finished graph. Per-file failures are recorded
// in CodeGraph.Errors and never abort the build.
func (b *Builder) Build(ctx context.Context, root string, filePaths []string) (*CodeGraph, error) {
	s, err := b.Stream(ctx, root, filePaths)
	if err != nil {
		return nil, err
	}
	for s.Next() {
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.Graph(), nil
}

// Stream prepares a consumer-paced build. No file is analyzed until Next is
// called, and each call analyzes exactly one batch.
//
//	s, err := b.Stream(ctx, root, nil)
//	for s.Next() {
//		p := s.Progress()
//	}
//	g := s.Graph()
func (b *Builder) Stream(ctx context.Context, root string, filePaths []string) (*Stream, error) {
	abs, err := b.checkRoot(root)
	if err != nil {
		return nil, err
	}
	files, err := b.Enumerate(abs, filePaths)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.Tracer.Start(ctx, "graph.Build",
		trace.WithAttributes(
			attribute.String("build.root", abs),
			attribute.Int("build.files", len(files)),
			attribute.Int("build.workers", b.opts.WorkerCount),
		))

	slog.Info("building code graph", "root", abs, "files", len(files), "workers", b.opts.WorkerCount)
	return &Stream{
		b:       b,
		ctx:     ctx,
		span:    span,
		root:    abs,
		files:   files,
		graph:   New(abs),
		started: time.Now(),
		logs:    util.NewThrottle(b.opts.ProgressLogInterval),
	}, nil
}

// Stream is an in-progress build. It is not safe for concurrent use.
type Stream struct {
	b     *Builder
	ctx   context.Context
	span  trace.Span
	root  string
	files []string
	graph *CodeGraph

	next     int
	batch    int
	latency  time.Duration
	started  time.Time
	progress Progress
	logs     *util.Throttle
	err      error
	done     bool
}

// Next analyzes and merges the next batch. It returns false once every
// file has been processed or the build's context ends.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.next >= len(s.files) {
		s.finish()
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.fail(err)
		return false
	}
	if err := s.waitForMemory(); err != nil {
		s.fail(err)
		return false
	}

	end := min(s.next+s.b.opts.BatchSize, len(s.files))
	batch := s.files[s.next:end]
	results, batchErrs, latency := s.b.runBatch(s.ctx, s.root, batch)

	// Merge is single-threaded: only this goroutine writes to the graph.
	for _, res := range results {
		s.graph.merge(res)
	}
	for _, fe := range batchErrs {
		s.graph.recordError(fe.Path, fe.Code, fe.Message)
	}

	s.next = end
	s.batch++
	s.latency += latency
	s.updateProgress(batchErrs)
	if s.b.opts.OnProgress != nil {
		s.b.opts.OnProgress(s.progress)
	}
	return true
}

func (s *Stream) updateProgress(batchErrs []FileError) {
	elapsed := time.Since(s.started).Seconds()
	p := Progress{
		ProcessedFiles: s.next,
		TotalFiles:     len(s.files),
		Percentage:     100,
		BatchErrors:    batchErrs,
		Batch:          s.batch,
	}
	if len(s.files) > 0 {
		p.Percentage = float64(s.next) * 100 / float64(len(s.files))
	}
	if elapsed > 0 {
		p.FilesPerSec = float64(s.next) / elapsed
	}
	if s.next > 0 {
		p.AvgLatency = s.latency / time.Duration(s.next)
	}
	s.progress = p
	observability.BuildThroughput.Set(p.FilesPerSec)

	if ok, skipped := s.logs.Allow(); ok {
		slog.Info("graph build progress",
			"processed", p.ProcessedFiles,
			"total", p.TotalFiles,
			"percent", fmt.Sprintf("%.1f", p.Percentage),
			"files_per_sec", fmt.Sprintf("%.1f", p.FilesPerSec),
			"batch_errors", len(batchErrs),
			"batches_since_last", skipped+1)
	}
}

// waitForMemory holds the next batch back while heap usage is over budget.
// After memoryMaxWait it proceeds anyway so a tight budget cannot stall a
// build forever.
func (s *Stream) waitForMemory() error {
	budget := util.MemoryBudget{BudgetMB: s.b.opts.MemoryBudgetMB, Fraction: s.b.opts.MemoryFraction}
	if _, over := budget.Exceeded(); !over {
		return nil
	}
	runtime.GC()
	deadline := time.Now().Add(memoryMaxWait)
	for heap, over := budget.Exceeded(); over; heap, over = budget.Exceeded() {
		if time.Now().After(deadline) {
			slog.Warn("memory budget still exceeded, continuing build",
				"heap_mb", heap, "limit_mb", budget.LimitMB())
			return nil
		}
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(memoryPollInterval):
		}
	}
	return nil
}

func (s *Stream) fail(err error) {
	s.done = true
	s.err = errors.AddContext(errors.Wrap(err, errors.CodeInternal, "graph build interrupted"), errors.CtxPath, s.root)
	s.span.RecordError(err)
	s.span.End()
}

func (s *Stream) finish() {
	s.done = true
	finalize(s.graph)
	if len(s.files) == 0 {
		s.updateProgress(nil)
	}
	elapsed := time.Since(s.started)
	observability.BuildDuration.Observe(elapsed.Seconds())
	s.span.SetAttributes(
		attribute.Int("graph.files", len(s.graph.Files)),
		attribute.Int("graph.functions", len(s.graph.Functions)),
		attribute.Int("graph.types", len(s.graph.Types)),
		attribute.Int("graph.errors", len(s.graph.Errors)),
	)
	s.span.End()
	s.reportResolverCache()
	slog.Info("code graph built",
		"root", s.root,
		"files", len(s.graph.Files),
		"functions", len(s.graph.Functions),
		"types", len(s.graph.Types),
		"errors", len(s.graph.Errors),
		"duration", elapsed)
}

func (s *Stream) reportResolverCache() {
	st, ok := s.b.resolvers.StatCacheStats(s.root)
	if !ok {
		return
	}
	observability.ResolverStatCache.WithLabelValues("hits").Set(float64(st.Hits))
	observability.ResolverStatCache.WithLabelValues("misses").Set(float64(st.Misses))
	observability.ResolverStatCache.WithLabelValues("entries").Set(float64(st.Entries))
	slog.Debug("resolver stat cache", "root", s.root, "hits", st.Hits, "misses", st.Misses, "entries", st.Entries)
}

// Progress returns the progress after the most recent batch.
func (s *Stream) Progress() Progress {
	return s.progress
}

// Graph returns the finished graph, or nil while batches remain or after a
// failed build.
func (s *Stream) Graph() *CodeGraph {
	if !s.done || s.err != nil {
		return nil
	}
	return s.graph
}

// Err returns the error that ended the build early.
func (s *Stream) Err() error {
	return s.err
}

// runBatch analyzes files on the worker pool. Each task leases a worker so
// parser state never crosses goroutines; results come back in file order.
func (b *Builder) runBatch(ctx context.Context, root string, files []string) ([]*parser.FileResult, []FileError, time.Duration) {
	results := make([]*parser.FileResult, len(files))
	errs := make([]error, len(files))
	latencies := make([]time.Duration, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.WorkerCount)
	for i, path := range files {
		g.Go(func() error {
			w := <-b.workers
			defer func() { b.workers <- w }()
			start := time.Now()
			results[i], errs[i] = analyzeOne(gctx, w, root, path)
			latencies[i] = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	var batchErrs []FileError
	var total time.Duration
	for i, err := range errs {
		total += latencies[i]
		if err == nil {
			continue
		}
		code := errors.CodeOf(err)
		slog.Warn("file analysis failed", "path", files[i], "stage", errors.ContextValue(err, errors.CtxStage), "error", err)
		batchErrs = append(batchErrs, FileError{Path: files[i], Code: string(code), Message: err.Error()})
	}
	return results, batchErrs, total
}

func analyzeOne(ctx context.Context, w *analyzer.Analyzer, root, path string) (res *parser.FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.New(errors.CodeParseFailure, fmt.Sprintf("analysis panicked: %v", r))
			err = errors.AddContext(err, errors.CtxPath, path)
			err = errors.AddContext(err, errors.CtxStage, errors.StageParse)
		}
	}()
	return w.AnalyzeSourceFile(ctx, root, path)
}
