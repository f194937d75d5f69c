package app

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

type ReviewRequest struct {
	BaseRoot string
	HeadRoot string
	Diff     string
	// PerFunction adds one impact result per changed function.
	PerFunction bool
}

type HunkContent struct {
	Header  string `json:"header"`
	Content string `json:"content"`
}

type FileReview struct {
	Path    string              `json:"path"`
	IsNew   bool                `json:"isNew"`
	Deleted bool                `json:"deleted"`
	Changes impact.ChangeResult `json:"changes"`
	// Impact covers added and modified functions, traced in the head graph.
	Impact impact.ImpactResult `json:"impact"`
	// DeletedImpact traces deleted functions through the base graph, where
	// their callers were last known.
	DeletedImpact *impact.ImpactResult  `json:"deletedImpact,omitempty"`
	PerFunction   []impact.ImpactResult `json:"perFunction,omitempty"`
	Contents      []HunkContent         `json:"contents"`
}

type ReviewSummary struct {
	FilesChanged      int `json:"filesChanged"`
	FunctionsAdded    int `json:"functionsAdded"`
	FunctionsModified int `json:"functionsModified"`
	FunctionsDeleted  int `json:"functionsDeleted"`
	ImpactedNodes     int `json:"impactedNodes"`
}

type ReviewReport struct {
	BaseGraphID string        `json:"baseGraphId"`
	HeadGraphID string        `json:"headGraphId"`
	Files       []FileReview  `json:"files"`
	Summary     ReviewSummary `json:"summary"`
}

// Review builds the base then the head checkout and reviews diff against
// them. The builds run one after the other to keep peak memory at one graph
// under construction.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*ReviewReport, error) {
	ctx, span := startSpan(ctx, "Service.Review")
	defer span.End()

	base, err := s.BuildGraph(ctx, req.BaseRoot, nil)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "build_base")
	}
	head, err := s.BuildGraph(ctx, req.HeadRoot, nil)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "build_head")
	}
	return s.ReviewGraphs(ctx, base, head, req.Diff, req.PerFunction)
}

// ReviewGraphs reviews diff against already built graphs.
func (s *Service) ReviewGraphs(ctx context.Context, base, head *graph.CodeGraph, diff string, perFunction bool) (*ReviewReport, error) {
	if base == nil || head == nil {
		return nil, errors.New(errors.CodeGraphNotFound, "review needs both base and head graphs")
	}
	ctx, span := startSpan(ctx, "Service.ReviewGraphs")
	defer span.End()

	files, err := impact.SplitDiff(diff)
	if err != nil {
		return nil, err
	}
	r := &reviewer{s: s, base: base, head: head, opts: ImpactOptions(s.cfg), perFunction: perFunction}

	report := &ReviewReport{BaseGraphID: base.ID, HeadGraphID: head.ID, Files: make([]FileReview, 0, len(files))}
	for _, fd := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := r.file(ctx, fd.Path)
		if err != nil {
			return nil, err
		}
		fr.IsNew, fr.Deleted = fd.IsNew, fd.Deleted

		source := head
		if fd.Deleted {
			source = base
		}
		fr.Contents = make([]HunkContent, 0, len(fd.Hunks))
		for _, h := range fd.Hunks {
			content, err := impact.ExtractRelevantContent(fd.Path, h.Text, source)
			if err != nil {
				return nil, err
			}
			fr.Contents = append(fr.Contents, HunkContent{Header: h.Header, Content: content})
		}

		report.Summary.add(fr)
		report.Files = append(report.Files, fr)
	}
	report.Summary.FilesChanged = len(report.Files)

	span.SetAttributes(
		attribute.Int("files", report.Summary.FilesChanged),
		attribute.Int("impacted", report.Summary.ImpactedNodes),
	)
	slog.Info("review complete",
		"files", report.Summary.FilesChanged,
		"added", report.Summary.FunctionsAdded,
		"modified", report.Summary.FunctionsModified,
		"deleted", report.Summary.FunctionsDeleted,
		"impacted", report.Summary.ImpactedNodes,
	)
	return report, nil
}

// ImpactOf reports the function changes of one file and what they reach.
// The result carries no hunk contents.
func (s *Service) ImpactOf(ctx context.Context, base, head *graph.CodeGraph, file string, perFunction bool) (*FileReview, error) {
	if base == nil || head == nil {
		return nil, errors.New(errors.CodeGraphNotFound, "impact needs both base and head graphs")
	}
	ctx, span := startSpan(ctx, "Service.ImpactOf")
	defer span.End()
	r := &reviewer{s: s, base: base, head: head, opts: ImpactOptions(s.cfg), perFunction: perFunction}
	fr, err := r.file(ctx, file)
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

func (sum *ReviewSummary) add(fr FileReview) {
	sum.FunctionsAdded += len(fr.Changes.Added)
	sum.FunctionsModified += len(fr.Changes.Modified)
	sum.FunctionsDeleted += len(fr.Changes.Deleted)
	sum.ImpactedNodes += fr.Impact.Impact.Summary.TotalImpacted
	if fr.DeletedImpact != nil {
		sum.ImpactedNodes += fr.DeletedImpact.Impact.Summary.TotalImpacted
	}
}

// reviewer enriches each side at most once, and the base side only when a
// function was deleted.
type reviewer struct {
	s           *Service
	base, head  *graph.CodeGraph
	baseEG      *graph.EnrichedGraph
	headEG      *graph.EnrichedGraph
	opts        impact.Options
	perFunction bool
}

func (r *reviewer) file(ctx context.Context, path string) (FileReview, error) {
	changes, err := impact.DetectChanges(r.base, r.head, path)
	if err != nil {
		return FileReview{}, err
	}
	fr := FileReview{Path: path, Changes: changes}

	if r.headEG == nil {
		if r.headEG, err = r.s.Enrich(ctx, r.head); err != nil {
			return FileReview{}, err
		}
	}
	live := impact.ChangeResult{File: changes.File, Added: changes.Added, Modified: changes.Modified}
	if fr.Impact, err = impact.ComputeImpact(r.headEG, live, r.opts); err != nil {
		return FileReview{}, err
	}
	if r.perFunction {
		if fr.PerFunction, err = impact.ComputeImpactPerFunction(r.headEG, live, r.opts); err != nil {
			return FileReview{}, err
		}
	}

	if len(changes.Deleted) > 0 {
		if r.baseEG == nil {
			if r.baseEG, err = r.s.Enrich(ctx, r.base); err != nil {
				return FileReview{}, err
			}
		}
		gone := impact.ChangeResult{File: changes.File, Deleted: changes.Deleted}
		res, err := impact.ComputeImpact(r.baseEG, gone, r.opts)
		if err != nil {
			return FileReview{}, err
		}
		fr.DeletedImpact = &res
	}
	return fr, nil
}
