package main

import (
	"codegraph/internal/core/app"
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"codegraph/internal/shared/util"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func (c *cli) buildCmd() *cobra.Command {
	var (
		outPath string
		save    string
	)
	cmd := &cobra.Command{
		Use:   "build <root>",
		Short: "Build the code graph of a repository",
		Long: `Build the code graph of a repository.

Examples:
  codegraph build .
  codegraph build . --out graph.json
  codegraph build . --save base`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.svc.BuildGraph(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if save != "" {
				entry, err := c.svc.SaveSnapshot(save, g)
				if err != nil {
					return err
				}
				slog.Info("snapshot saved", "label", entry.Label, "id", entry.ID, "bytes", entry.RawSize)
			}
			if outPath != "" {
				data, err := graph.Marshal(g)
				if err != nil {
					return err
				}
				if err := util.WriteFileWithDirs(outPath, data, 0o644); err != nil {
					err = errors.Wrap(err, errors.CodeInternal, "write graph")
					return errors.AddContext(err, errors.CtxPath, outPath)
				}
			}

			switch {
			case c.human():
				renderGraphSummary(c.out, g)
			case outPath == "" && save == "":
				return c.writeJSON(g)
			default:
				return c.writeJSON(graphSummaryOf(g))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the graph as JSON to this file")
	cmd.Flags().StringVar(&save, "save", "", "Save the graph in the snapshot store under this label")
	return cmd
}

func (c *cli) enrichCmd() *cobra.Command {
	var fanOut string
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich <graph>",
		Short: "Derive the relationship graph from a code graph",
		Long: `Derive nodes and CALLS, IMPORTS, IMPLEMENTS and EXTENDS edges.

<graph> is a repository directory, a graph .json file or a snapshot label.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("fan-out") {
				c.cfg.Enrichment.FanOut = fanOut
			}
			if cmd.Flags().Changed("limit") {
				c.cfg.Enrichment.Limit = limit
			}
			g, err := c.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			eg, err := c.svc.Enrich(cmd.Context(), g)
			if err != nil {
				return err
			}
			if c.human() {
				renderEnriched(c.out, eg)
				return nil
			}
			return c.writeJSON(eg)
		},
	}
	cmd.Flags().StringVar(&fanOut, "fan-out", "", "Interface call fan-out policy (all, none, limit)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Implementations per interface call when fan-out is limit")
	return cmd
}

func (c *cli) changesCmd() *cobra.Command {
	var base, head string
	cmd := &cobra.Command{
		Use:   "changes <file> --base <graph> --head <graph>",
		Short: "List functions added, modified and deleted in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bg, hg, err := c.loadPair(cmd, base, head)
			if err != nil {
				return err
			}
			changes, err := impact.DetectChanges(bg, hg, args[0])
			if err != nil {
				return err
			}
			if c.human() {
				renderChanges(c.out, changes)
				return nil
			}
			return c.writeJSON(changes)
		},
	}
	pairFlags(cmd, &base, &head)
	return cmd
}

func (c *cli) impactCmd() *cobra.Command {
	var (
		base, head  string
		depth       int
		perFunction bool
	)
	cmd := &cobra.Command{
		Use:   "impact <file> --base <graph> --head <graph>",
		Short: "Trace what the function changes in a file reach",
		Long: `Trace what the function changes in a file reach.

Added and modified functions are traced through the head graph, deleted
functions through the base graph.

Examples:
  codegraph impact src/c.ts --base base --head .
  codegraph impact src/c.ts --base ../main --head . --depth 2 --per-function`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("depth") {
				c.cfg.Impact.MaxDepth = depth
			}
			bg, hg, err := c.loadPair(cmd, base, head)
			if err != nil {
				return err
			}
			fr, err := c.svc.ImpactOf(cmd.Context(), bg, hg, args[0], perFunction)
			if err != nil {
				return err
			}
			if c.human() {
				renderFileReview(c.out, *fr)
				return nil
			}
			return c.writeJSON(fr)
		},
	}
	pairFlags(cmd, &base, &head)
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum propagation depth (0 is unbounded)")
	cmd.Flags().BoolVar(&perFunction, "per-function", false, "Also report impact per changed function")
	return cmd
}

func (c *cli) contentCmd() *cobra.Command {
	var ref, hunkPath string
	cmd := &cobra.Command{
		Use:   "content <file> --graph <graph> --hunk <path|->",
		Short: "Print the function or type enclosing a diff hunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hunk, err := c.readInput(hunkPath)
			if err != nil {
				return err
			}
			g, err := c.loadGraph(cmd.Context(), ref)
			if err != nil {
				return err
			}
			content, err := impact.ExtractRelevantContent(args[0], hunk, g)
			if err != nil {
				return err
			}
			if c.human() {
				fmt.Fprintln(c.out, content)
				return nil
			}
			return c.writeJSON(app.HunkContent{Content: content})
		},
	}
	cmd.Flags().StringVar(&ref, "graph", ".", "Repository directory, graph .json file or snapshot label")
	cmd.Flags().StringVar(&hunkPath, "hunk", "-", "File holding the hunk, or - for stdin")
	return cmd
}

func (c *cli) reviewCmd() *cobra.Command {
	var (
		base, head  string
		diffPath    string
		perFunction bool
	)
	cmd := &cobra.Command{
		Use:   "review --base <graph> --head <graph> --diff <path|->",
		Short: "Review a unified diff: changes, impact and relevant content per file",
		Long: `Review a unified diff: changes, impact and relevant content per file.

Examples:
  git diff main... | codegraph review --base ../main --head .
  codegraph review --base base --head head --diff change.patch --format human`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			diff, err := c.readInput(diffPath)
			if err != nil {
				return err
			}
			var report *app.ReviewReport
			if util.DirExists(base) && util.DirExists(head) {
				report, err = c.svc.Review(cmd.Context(), app.ReviewRequest{
					BaseRoot: base, HeadRoot: head, Diff: diff, PerFunction: perFunction,
				})
			} else {
				bg, hg, lerr := c.loadPair(cmd, base, head)
				if lerr != nil {
					return lerr
				}
				report, err = c.svc.ReviewGraphs(cmd.Context(), bg, hg, diff, perFunction)
			}
			if err != nil {
				return err
			}
			if c.human() {
				renderReview(c.out, report)
				return nil
			}
			return c.writeJSON(report)
		},
	}
	pairFlags(cmd, &base, &head)
	cmd.Flags().StringVar(&diffPath, "diff", "-", "Unified diff file, or - for stdin")
	cmd.Flags().BoolVar(&perFunction, "per-function", false, "Also report impact per changed function")
	return cmd
}

func pairFlags(cmd *cobra.Command, base, head *string) {
	cmd.Flags().StringVar(base, "base", "", "Base graph: directory, .json file or snapshot label")
	cmd.Flags().StringVar(head, "head", "", "Head graph: directory, .json file or snapshot label")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("head")
}

// loadPair loads base before head; builds never overlap.
func (c *cli) loadPair(cmd *cobra.Command, base, head string) (*graph.CodeGraph, *graph.CodeGraph, error) {
	bg, err := c.loadGraph(cmd.Context(), base)
	if err != nil {
		return nil, nil, errors.AddContext(err, errors.CtxOperation, "load_base")
	}
	hg, err := c.loadGraph(cmd.Context(), head)
	if err != nil {
		return nil, nil, errors.AddContext(err, errors.CtxOperation, "load_head")
	}
	return bg, hg, nil
}
