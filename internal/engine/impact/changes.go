package impact

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/parser"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"fmt"
	"time"
)

// FunctionChange describes one added, modified or deleted function.
type FunctionChange struct {
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	FunctionHash  string `json:"functionHash"`
	SignatureHash string `json:"signatureHash"`
	FullText      string `json:"fullText"`
	Lines         int    `json:"lines"`

	// NodeID is the head node for added and modified functions and the
	// base node for deleted ones.
	NodeID           string `json:"nodeId"`
	File             string `json:"file"`
	StartLine        int    `json:"startLine"`
	EndLine          int    `json:"endLine"`
	SignatureChanged bool   `json:"signatureChanged,omitempty"`
}

type ChangeResult struct {
	File     string           `json:"file"`
	Added    []FunctionChange `json:"added"`
	Modified []FunctionChange `json:"modified"`
	Deleted  []FunctionChange `json:"deleted"`
}

// Empty reports whether no function changed.
func (c ChangeResult) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// All returns every change, added first.
func (c ChangeResult) All() []FunctionChange {
	out := make([]FunctionChange, 0, len(c.Added)+len(c.Modified)+len(c.Deleted))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	return append(out, c.Deleted...)
}

func emptyChanges(file string) ChangeResult {
	return ChangeResult{
		File:     file,
		Added:    []FunctionChange{},
		Modified: []FunctionChange{},
		Deleted:  []FunctionChange{},
	}
}

// DetectChanges classifies the functions of fileName between two snapshots.
// Functions are matched by qualified name; equal function hashes mean the
// edit was cosmetic and the function is left out. A file present in neither
// graph yields an empty result.
func DetectChanges(base, head *graph.CodeGraph, fileName string) (ChangeResult, error) {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	}()

	if err := requireGraph(base, "base"); err != nil {
		return ChangeResult{}, err
	}
	if err := requireGraph(head, "head"); err != nil {
		return ChangeResult{}, err
	}

	result := emptyChanges(fileName)
	before := functionsOf(base, fileName)
	after := functionsOf(head, fileName)

	for _, key := range util.SortedStringKeys(after) {
		fn := after[key]
		old, existed := before[key]
		switch {
		case !existed:
			result.Added = append(result.Added, toChange(head, fn))
		case old.FunctionHash != fn.FunctionHash:
			c := toChange(head, fn)
			c.SignatureChanged = old.SignatureHash != fn.SignatureHash
			result.Modified = append(result.Modified, c)
		}
	}
	for _, key := range util.SortedStringKeys(before) {
		if _, kept := after[key]; !kept {
			result.Deleted = append(result.Deleted, toChange(base, before[key]))
		}
	}
	return result, nil
}

func requireGraph(g *graph.CodeGraph, which string) error {
	if g != nil {
		return nil
	}
	err := errors.New(errors.CodeGraphNotFound, fmt.Sprintf("%s graph is missing", which))
	err = errors.AddContext(err, errors.CtxOperation, "detect_changes")
	return errors.AddContext(err, errors.CtxStage, errors.StageDiff)
}

// functionsOf keys a file's functions by qualified name. Repeated names,
// such as overloads, get an occurrence suffix in line order.
func functionsOf(g *graph.CodeGraph, fileName string) map[string]*parser.FunctionAnalysis {
	out := make(map[string]*parser.FunctionAnalysis)
	fa, ok := g.FindFile(fileName)
	if !ok {
		return out
	}
	seen := make(map[string]int)
	for _, fn := range g.FunctionsInFile(fa.Path) {
		key := fn.FullName()
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			key = fmt.Sprintf("%s#%d", key, n)
		} else {
			seen[key] = 1
		}
		out[key] = fn
	}
	return out
}

func toChange(g *graph.CodeGraph, fn *parser.FunctionAnalysis) FunctionChange {
	file := fn.File
	if fa, ok := g.Files[fn.File]; ok {
		file = fa.RelativePath
	}
	return FunctionChange{
		Name:          fn.Name,
		FullName:      fn.FullName(),
		FunctionHash:  fn.FunctionHash,
		SignatureHash: fn.SignatureHash,
		FullText:      fn.FullText,
		Lines:         fn.Lines,
		NodeID:        fn.NodeID,
		File:          file,
		StartLine:     fn.StartLine,
		EndLine:       fn.EndLine,
	}
}
