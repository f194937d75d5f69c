package main

import (
	"codegraph/internal/core/app"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"codegraph/internal/shared/util"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type GraphSummary struct {
	ID        string `json:"id"`
	Root      string `json:"root"`
	Files     int    `json:"files"`
	Functions int    `json:"functions"`
	Types     int    `json:"types"`
	Errors    int    `json:"errors"`
}

func graphSummaryOf(g *graph.CodeGraph) GraphSummary {
	return GraphSummary{
		ID:        g.ID,
		Root:      g.Root,
		Files:     g.FileCount(),
		Functions: len(g.Functions),
		Types:     len(g.Types),
		Errors:    len(g.Errors),
	}
}

// styles are bound to the output's renderer, so colors disappear when the
// output is not a terminal.
type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	high   lipgloss.Style
	medium lipgloss.Style
	low    lipgloss.Style
	added  lipgloss.Style
	gone   lipgloss.Style
	box    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true),
		label:  r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#64748B")).Italic(true),
		high:   r.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true),
		medium: r.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true),
		low:    r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		added:  r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		gone:   r.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true),
		box:    r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (st styles) severity(s impact.Severity) lipgloss.Style {
	switch s {
	case impact.SeverityHigh:
		return st.high
	case impact.SeverityMedium:
		return st.medium
	default:
		return st.low
	}
}

func renderGraphSummary(w io.Writer, g *graph.CodeGraph) {
	st := newStyles(w)
	s := graphSummaryOf(g)
	body := strings.Join([]string{
		st.title.Render("Code graph"),
		fmt.Sprintf("%s %s", st.label.Render("root:     "), s.Root),
		fmt.Sprintf("%s %s", st.label.Render("id:       "), s.ID),
		fmt.Sprintf("%s %d", st.label.Render("files:    "), s.Files),
		fmt.Sprintf("%s %d", st.label.Render("functions:"), s.Functions),
		fmt.Sprintf("%s %d", st.label.Render("types:    "), s.Types),
	}, "\n")
	fmt.Fprintln(w, st.box.Render(body))
	for _, fe := range g.Errors {
		fmt.Fprintf(w, "%s %s: %s\n", st.gone.Render(fe.Code), fe.Path, fe.Message)
	}
}

func renderEnriched(w io.Writer, eg *graph.EnrichedGraph) {
	st := newStyles(w)
	nodes := make(map[string]int)
	for _, n := range eg.Nodes {
		nodes[string(n.Type)]++
	}
	edges := make(map[string]int)
	for _, e := range eg.Edges {
		edges[string(e.Type)]++
	}
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Enriched graph %s", eg.GraphID)))
	fmt.Fprintf(w, "%s %d\n", st.label.Render("nodes"), len(eg.Nodes))
	for _, k := range util.SortedStringKeys(nodes) {
		fmt.Fprintf(w, "  %-22s %d\n", k, nodes[k])
	}
	fmt.Fprintf(w, "%s %d\n", st.label.Render("edges"), len(eg.Edges))
	for _, k := range util.SortedStringKeys(edges) {
		fmt.Fprintf(w, "  %-22s %d\n", k, edges[k])
	}
}

func renderChanges(w io.Writer, c impact.ChangeResult) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Changes in "+c.File))
	if c.Empty() {
		fmt.Fprintln(w, st.muted.Render("  no function changes"))
		return
	}
	for _, fc := range c.Added {
		fmt.Fprintf(w, "  %s %s %s\n", st.added.Render("+"), fc.FullName, lines(fc))
	}
	for _, fc := range c.Modified {
		note := ""
		if fc.SignatureChanged {
			note = st.medium.Render(" signature changed")
		}
		fmt.Fprintf(w, "  %s %s %s%s\n", st.medium.Render("~"), fc.FullName, lines(fc), note)
	}
	for _, fc := range c.Deleted {
		fmt.Fprintf(w, "  %s %s %s\n", st.gone.Render("-"), fc.FullName, lines(fc))
	}
}

func lines(fc impact.FunctionChange) string {
	return fmt.Sprintf("(L%d-%d)", fc.StartLine, fc.EndLine)
}

func renderImpact(w io.Writer, title string, res impact.ImpactResult) {
	st := newStyles(w)
	sum := res.Impact.Summary
	fmt.Fprintf(w, "%s %s\n", st.label.Render(title), st.muted.Render(fmt.Sprintf("%d impacted, depth %d", sum.TotalImpacted, sum.MaxLevel)))
	if sum.TotalImpacted == 0 {
		return
	}
	levels := make([]int, 0, len(res.Impact.GroupedByLevel))
	for level := range res.Impact.GroupedByLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		for _, n := range res.Impact.GroupedByLevel[level] {
			name := n.Name
			if n.Type != graph.NodeFile {
				name = fmt.Sprintf("%s %s", n.Name, st.muted.Render(n.FilePath))
			}
			fmt.Fprintf(w, "  L%d %-6s %-9s %s\n", level, st.severity(n.Severity).Render(string(n.Severity)), n.Type, name)
		}
	}
}

func renderFileReview(w io.Writer, fr app.FileReview) {
	renderChanges(w, fr.Changes)
	renderImpact(w, "impact", fr.Impact)
	if fr.DeletedImpact != nil {
		renderImpact(w, "impact of deletions", *fr.DeletedImpact)
	}
	for _, res := range fr.PerFunction {
		renderImpact(w, "impact of "+res.Function, res)
	}
}

func renderReview(w io.Writer, r *app.ReviewReport) {
	st := newStyles(w)
	s := r.Summary
	fmt.Fprintln(w, st.box.Render(strings.Join([]string{
		st.title.Render("Review"),
		fmt.Sprintf("%d files, %s added, %s modified, %s deleted, %d impacted",
			s.FilesChanged,
			st.added.Render(fmt.Sprint(s.FunctionsAdded)),
			st.medium.Render(fmt.Sprint(s.FunctionsModified)),
			st.gone.Render(fmt.Sprint(s.FunctionsDeleted)),
			s.ImpactedNodes),
	}, "\n")))
	for _, fr := range r.Files {
		fmt.Fprintln(w)
		renderFileReview(w, fr)
		for _, c := range fr.Contents {
			fmt.Fprintln(w, st.muted.Render(c.Header))
			fmt.Fprintln(w, c.Content)
		}
	}
}

func renderRebuild(w io.Writer, g *graph.CodeGraph, changed []string) {
	st := newStyles(w)
	s := graphSummaryOf(g)
	trigger := "initial build"
	if len(changed) > 0 {
		trigger = fmt.Sprintf("%d changed", len(changed))
	}
	fmt.Fprintf(w, "%s %d files, %d functions, %d types %s\n",
		st.title.Render("rebuilt"), s.Files, s.Functions, s.Types, st.muted.Render(trigger))
}
