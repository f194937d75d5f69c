package impact

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"log/slog"
)

// ExtractRelevantContent returns the source of the smallest function or type
// that fully encloses the lines changed by hunk. When nothing encloses them,
// for top-level edits or files the graph does not know, the hunk text itself
// is returned.
func ExtractRelevantContent(filePath, hunk string, g *graph.CodeGraph) (string, error) {
	if g == nil {
		err := errors.New(errors.CodeGraphNotFound, "code graph is missing")
		err = errors.AddContext(err, errors.CtxOperation, "extract_content")
		return "", errors.AddContext(err, errors.CtxPath, filePath)
	}
	h, ok := parseHunk(hunk)
	if !ok {
		slog.Debug("hunk not parseable, returning raw text", "path", filePath)
		return hunk, nil
	}
	fa, ok := g.FindFile(filePath)
	if !ok {
		return hunk, nil
	}
	lo, hi := h.ChangedRange()

	best, bestSpan := "", -1
	consider := func(start, end int, text string) {
		if start > lo || end < hi {
			return
		}
		if span := end - start; bestSpan < 0 || span < bestSpan {
			best, bestSpan = text, span
		}
	}
	// Functions first so they win ties against a type of the same extent.
	for _, fn := range g.FunctionsInFile(fa.Path) {
		consider(fn.StartLine, fn.EndLine, fn.FullText)
	}
	for _, t := range g.TypesInFile(fa.Path) {
		consider(t.StartLine, t.EndLine, t.FullText)
	}
	if bestSpan < 0 {
		return hunk, nil
	}
	return best, nil
}
