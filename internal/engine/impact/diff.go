package impact

import (
	"codegraph/internal/core/errors"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// Hunk is one @@ section of a unified diff. Added and Removed hold the new
// and old line numbers touched by the hunk.
type Hunk struct {
	Header   string `json:"header"`
	Text     string `json:"text"`
	OldStart int    `json:"oldStart"`
	OldLines int    `json:"oldLines"`
	NewStart int    `json:"newStart"`
	NewLines int    `json:"newLines"`
	Added    []int  `json:"added"`
	Removed  []int  `json:"removed"`
}

// ChangedRange is the span of new-file lines the hunk touches. Pure
// deletions collapse to the line where the removal happened.
func (h Hunk) ChangedRange() (int, int) {
	lo, hi := 0, 0
	span := func(n int) {
		if lo == 0 || n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	for _, n := range h.Added {
		span(n)
	}
	if len(h.Removed) > 0 && len(h.Added) == 0 {
		// map the first removed line onto the new file
		span(h.NewStart + (h.Removed[0] - h.OldStart))
	}
	if lo == 0 {
		lo = h.NewStart
		hi = h.NewStart + h.NewLines - 1
		if hi < lo {
			hi = lo
		}
	}
	return lo, hi
}

type FileDiff struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
	// Path is the new path, or the old one for deletions.
	Path    string `json:"path"`
	IsNew   bool   `json:"isNew"`
	Deleted bool   `json:"deleted"`
	Hunks   []Hunk `json:"hunks"`
}

// SplitDiff parses a multi-file unified diff. An empty diff yields no files.
func SplitDiff(text string) ([]FileDiff, error) {
	if strings.TrimSpace(text) == "" {
		return []FileDiff{}, nil
	}
	fds, err := godiff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		err = errors.Wrap(err, errors.CodeValidationError, "parse unified diff")
		return nil, errors.AddContext(err, errors.CtxStage, errors.StageDiff)
	}
	out := make([]FileDiff, 0, len(fds))
	for _, fd := range fds {
		out = append(out, convertFileDiff(fd))
	}
	return out, nil
}

func convertFileDiff(fd *godiff.FileDiff) FileDiff {
	out := FileDiff{
		OldPath: cleanPath(fd.OrigName),
		NewPath: cleanPath(fd.NewName),
		Hunks:   make([]Hunk, 0, len(fd.Hunks)),
	}
	if fd.OrigName == "" || fd.OrigName == "/dev/null" {
		out.IsNew = true
		out.OldPath = ""
	}
	if fd.NewName == "" || fd.NewName == "/dev/null" {
		out.Deleted = true
		out.NewPath = ""
	}
	out.Path = out.NewPath
	if out.Deleted {
		out.Path = out.OldPath
	}
	for _, h := range fd.Hunks {
		out.Hunks = append(out.Hunks, convertHunk(h))
	}
	return out
}

func convertHunk(h *godiff.Hunk) Hunk {
	out := Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
		Added:    []int{},
		Removed:  []int{},
	}
	out.Header = fmt.Sprintf("@@ -%d,%d +%d,%d @@", out.OldStart, out.OldLines, out.NewStart, out.NewLines)
	if h.Section != "" {
		out.Header += " " + h.Section
	}
	body := string(h.Body)
	out.Text = out.Header + "\n" + body

	oldLine, newLine := out.OldStart, out.NewStart
	for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		if line == "" {
			oldLine++
			newLine++
			continue
		}
		switch line[0] {
		case '+':
			out.Added = append(out.Added, newLine)
			newLine++
		case '-':
			out.Removed = append(out.Removed, oldLine)
			oldLine++
		case '\\':
		default:
			oldLine++
			newLine++
		}
	}
	return out
}

// parseHunk accepts either a bare "@@" hunk or a full file diff and returns
// the first hunk found.
func parseHunk(text string) (Hunk, bool) {
	if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "@@") {
		hs, err := godiff.ParseHunks([]byte(strings.TrimLeft(text, " \t\r\n")))
		if err != nil || len(hs) == 0 {
			return Hunk{}, false
		}
		return convertHunk(hs[0]), true
	}
	files, err := SplitDiff(text)
	if err != nil {
		return Hunk{}, false
	}
	for _, f := range files {
		if len(f.Hunks) > 0 {
			return f.Hunks[0], true
		}
	}
	return Hunk{}, false
}

// cleanPath strips the a/ and b/ prefixes git puts on diff paths.
func cleanPath(p string) string {
	if p == "" || p == "/dev/null" {
		return p
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}
