package impact

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, files map[string]string) *graph.CodeGraph {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		require.NoError(t, util.WriteFileWithDirs(filepath.Join(root, filepath.FromSlash(rel)), []byte(content), 0o644))
	}
	b, err := graph.NewBuilder(graph.WithWorkerCount(2), graph.WithProgressLogInterval(0))
	require.NoError(t, err)
	g, err := b.Build(context.Background(), root, nil)
	require.NoError(t, err)
	return g
}

func names(changes []FunctionChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.FullName)
	}
	return out
}

const baseF = `export function foo(a: number): number {
  return a * 2;
}

export function bar(a: number, b: number): number {
  return a + b;
}
`

const headF = `export function foo(a: number): number {
  return a * 2;
}

export function bar(a: number, b: number): number {
  return a - b;
}
`

func TestDetectChangesReportsOnlyEditedFunction(t *testing.T) {
	base := buildTree(t, map[string]string{"f.ts": baseF})
	head := buildTree(t, map[string]string{"f.ts": headF})

	res, err := DetectChanges(base, head, "f.ts")
	require.NoError(t, err)

	assert.Equal(t, []string{"bar"}, names(res.Modified))
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Deleted)
	assert.False(t, res.Modified[0].SignatureChanged)
	assert.Equal(t, "f.ts", res.Modified[0].File)
	assert.Equal(t, 5, res.Modified[0].StartLine)
}

func TestDetectChangesAddedAndDeleted(t *testing.T) {
	base := buildTree(t, map[string]string{"m.py": "def keep():\n    return 1\n\ndef gone():\n    return 2\n"})
	head := buildTree(t, map[string]string{"m.py": "def keep():\n    return 1\n\ndef fresh(x: int) -> int:\n    return x\n"})

	res, err := DetectChanges(base, head, "m.py")
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh"}, names(res.Added))
	assert.Equal(t, []string{"gone"}, names(res.Deleted))
	assert.Empty(t, res.Modified)
	assert.Len(t, res.All(), 2)
}

func TestDetectChangesIgnoresCosmeticEdits(t *testing.T) {
	base := buildTree(t, map[string]string{"f.js": "function add(a,b){return a+b;}\n"})
	head := buildTree(t, map[string]string{"f.js": "// adds\nfunction add(x,y){ return x + y; }\n"})

	res, err := DetectChanges(base, head, "f.js")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestDetectChangesSignatureChange(t *testing.T) {
	base := buildTree(t, map[string]string{"f.ts": "export function g(a: number): number {\n  return a;\n}\n"})
	head := buildTree(t, map[string]string{"f.ts": "export function g(a: string): number {\n  return a.length;\n}\n"})

	res, err := DetectChanges(base, head, "f.ts")
	require.NoError(t, err)
	require.Len(t, res.Modified, 1)
	assert.True(t, res.Modified[0].SignatureChanged)
}

func TestDetectChangesParameterTypeChange(t *testing.T) {
	base := buildTree(t, map[string]string{"f.go": "package f\n\nfunc F(a int) int {\n\treturn g(a)\n}\n"})
	head := buildTree(t, map[string]string{"f.go": "package f\n\nfunc F(a string) int {\n\treturn g(a)\n}\n"})

	res, err := DetectChanges(base, head, "f.go")
	require.NoError(t, err)
	require.Equal(t, []string{"F"}, names(res.Modified))
	assert.True(t, res.Modified[0].SignatureChanged)
}

func TestDetectChangesUnknownFileIsEmpty(t *testing.T) {
	base := buildTree(t, map[string]string{"f.ts": baseF})
	head := buildTree(t, map[string]string{"f.ts": headF})

	res, err := DetectChanges(base, head, "nowhere.ts")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Added)
	assert.NotNil(t, res.Modified)
	assert.NotNil(t, res.Deleted)
}

func TestDetectChangesMissingGraph(t *testing.T) {
	head := buildTree(t, map[string]string{"f.ts": headF})

	_, err := DetectChanges(nil, head, "f.ts")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))

	_, err = DetectChanges(head, nil, "f.ts")
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))
}

var chain = map[string]string{
	"src/c.ts": "export function c(n: number): number {\n  return n + 1;\n}\n",
	"src/b.ts": "import { c } from './c';\n\nexport function b(n: number): number {\n  return c(n) * 2;\n}\n",
	"src/a.ts": "import { b } from './b';\n\nexport function a(): number {\n  return b(3);\n}\n",
}

func modifiedChain() map[string]string {
	head := make(map[string]string, len(chain))
	for k, v := range chain {
		head[k] = v
	}
	head["src/c.ts"] = "export function c(n: number): number {\n  return n - 1;\n}\n"
	return head
}

func levelIDs(res ImpactResult, level int) []string {
	var out []string
	for _, n := range res.Impact.GroupedByLevel[level] {
		out = append(out, n.ID)
	}
	return out
}

func TestComputeImpactLevels(t *testing.T) {
	base := buildTree(t, chain)
	head := buildTree(t, modifiedChain())

	changes, err := DetectChanges(base, head, "src/c.ts")
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, names(changes.Modified))

	eg := graph.Enrich(head, graph.DefaultEnrichOptions())
	ix := graph.NewIndex(eg)
	aNodes := ix.FindFunction("src/a.ts", "a")
	bNodes := ix.FindFunction("src/b.ts", "b")
	require.Len(t, aNodes, 1)
	require.Len(t, bNodes, 1)

	res, err := ComputeImpact(eg, changes, DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, levelIDs(res, 1), bNodes[0].ID)
	assert.Contains(t, levelIDs(res, 2), aNodes[0].ID)
	assert.NotContains(t, levelIDs(res, 1), aNodes[0].ID)
	assert.Equal(t, 2, res.Impact.Summary.MaxLevel)
	assert.Equal(t, "c", res.Function)

	for _, n := range res.Nodes() {
		assert.Equal(t, SeverityForLevel(n.Level), n.Severity)
		if n.ID == bNodes[0].ID {
			assert.Equal(t, SeverityHigh, n.Severity)
			assert.Equal(t, "b", n.Name)
			assert.Equal(t, changes.Modified[0].NodeID, n.Via)
			assert.Empty(t, n.ImportedBy)
			assert.Equal(t, []string{n.Via}, n.Calls)
		}
		if n.ID == aNodes[0].ID {
			assert.Equal(t, SeverityMedium, n.Severity)
		}
	}

	// Importing files are reached through the changed file's node.
	var files []string
	for _, n := range res.Nodes() {
		if n.Type == graph.NodeFile {
			files = append(files, n.Name)
		}
	}
	assert.ElementsMatch(t, []string{"a.ts", "b.ts"}, files)
}

func TestComputeImpactJavaSamePackage(t *testing.T) {
	callee := func(body string) string {
		return "package p;\n\npublic class C {\n    public int c() {\n        return " + body + ";\n    }\n}\n"
	}
	caller := "package p;\n\npublic class B {\n    public int b() {\n        C x = new C();\n        return x.c();\n    }\n}\n"
	base := buildTree(t, map[string]string{"p/C.java": callee("1"), "p/B.java": caller})
	head := buildTree(t, map[string]string{"p/C.java": callee("2"), "p/B.java": caller})

	changes, err := DetectChanges(base, head, "p/C.java")
	require.NoError(t, err)
	require.Equal(t, []string{"C.c"}, names(changes.Modified))

	eg := graph.Enrich(head, graph.DefaultEnrichOptions())
	bNodes := graph.NewIndex(eg).FindFunction("p/B.java", "B.b")
	require.Len(t, bNodes, 1)

	res, err := ComputeImpact(eg, changes, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, levelIDs(res, 1), bNodes[0].ID)
}

func TestComputeImpactMaxDepth(t *testing.T) {
	base := buildTree(t, chain)
	head := buildTree(t, modifiedChain())
	changes, err := DetectChanges(base, head, "src/c.ts")
	require.NoError(t, err)

	eg := graph.Enrich(head, graph.DefaultEnrichOptions())
	res, err := ComputeImpact(eg, changes, Options{MaxDepth: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Impact.Summary.MaxLevel)
	assert.Empty(t, res.Impact.GroupedByLevel[2])
}

func TestComputeImpactPerFunction(t *testing.T) {
	base := buildTree(t, map[string]string{"f.ts": baseF + "\nexport function use(): number {\n  return bar(1, 2);\n}\n"})
	head := buildTree(t, map[string]string{"f.ts": headF + "\nexport function use(): number {\n  return bar(1, 2);\n}\n\nexport function extra(): number {\n  return foo(1);\n}\n"})

	changes, err := DetectChanges(base, head, "f.ts")
	require.NoError(t, err)
	require.Equal(t, []string{"extra"}, names(changes.Added))
	require.Equal(t, []string{"bar"}, names(changes.Modified))

	eg := graph.Enrich(head, graph.DefaultEnrichOptions())
	results, err := ComputeImpactPerFunction(eg, changes, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "extra", results[0].Function)
	assert.Equal(t, "bar", results[1].Function)

	var callers []string
	for _, n := range results[1].Impact.GroupedByLevel[1] {
		callers = append(callers, n.Name)
	}
	assert.Contains(t, callers, "use")
}

func TestComputeImpactEmptyAndMissing(t *testing.T) {
	_, err := ComputeImpact(nil, ChangeResult{}, DefaultOptions())
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))

	_, err = ComputeImpactPerFunction(nil, ChangeResult{}, DefaultOptions())
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))

	eg := graph.Enrich(buildTree(t, chain), graph.DefaultEnrichOptions())
	res, err := ComputeImpact(eg, emptyChanges("src/c.ts"), DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, res.Impact.Summary.TotalImpacted)
	assert.Empty(t, res.Seeds)
}

func TestExtractRelevantContentInsideFunction(t *testing.T) {
	head := buildTree(t, map[string]string{"f.ts": headF})
	hunk := "@@ -5,3 +5,3 @@\n export function bar(a: number, b: number): number {\n-  return a + b;\n+  return a - b;\n }\n"

	got, err := ExtractRelevantContent("f.ts", hunk, head)
	require.NoError(t, err)

	fa, ok := head.FindFile("f.ts")
	require.True(t, ok)
	var bar string
	for _, fn := range head.FunctionsInFile(fa.Path) {
		if fn.Name == "bar" {
			bar = fn.FullText
		}
	}
	require.NotEmpty(t, bar)
	assert.Equal(t, bar, got)
	assert.Contains(t, got, "return a - b;")
	assert.NotContains(t, got, "foo")
}

func TestExtractRelevantContentFallsBackToHunk(t *testing.T) {
	head := buildTree(t, map[string]string{"main.py": "import os\n\nVALUE = 2\n\ndef f():\n    return VALUE\n"})
	hunk := "@@ -3,1 +3,1 @@\n-VALUE = 1\n+VALUE = 2\n"

	got, err := ExtractRelevantContent("main.py", hunk, head)
	require.NoError(t, err)
	assert.Equal(t, hunk, got)

	got, err = ExtractRelevantContent("other.py", hunk, head)
	require.NoError(t, err)
	assert.Equal(t, hunk, got)

	got, err = ExtractRelevantContent("main.py", "not a hunk", head)
	require.NoError(t, err)
	assert.Equal(t, "not a hunk", got)

	_, err = ExtractRelevantContent("main.py", hunk, nil)
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))
}

const multiDiff = `diff --git a/f.ts b/f.ts
index 1111111..2222222 100644
--- a/f.ts
+++ b/f.ts
@@ -5,3 +5,3 @@ export function bar(a: number, b: number): number {
 export function bar(a: number, b: number): number {
-  return a + b;
+  return a - b;
 }
diff --git a/new.py b/new.py
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/new.py
@@ -0,0 +1,2 @@
+def hello():
+    return 1
`

func TestSplitDiff(t *testing.T) {
	files, err := SplitDiff(multiDiff)
	require.NoError(t, err)
	require.Len(t, files, 2)

	f := files[0]
	assert.Equal(t, "f.ts", f.Path)
	assert.False(t, f.IsNew)
	require.Len(t, f.Hunks, 1)
	h := f.Hunks[0]
	assert.Equal(t, []int{6}, h.Added)
	assert.Equal(t, []int{6}, h.Removed)
	assert.True(t, strings.HasPrefix(h.Text, "@@ -5,3 +5,3 @@"))
	lo, hi := h.ChangedRange()
	assert.Equal(t, 6, lo)
	assert.Equal(t, 6, hi)

	n := files[1]
	assert.Equal(t, "new.py", n.Path)
	assert.True(t, n.IsNew)
	assert.Empty(t, n.OldPath)
	require.Len(t, n.Hunks, 1)
	assert.Equal(t, []int{1, 2}, n.Hunks[0].Added)

	empty, err := SplitDiff("  \n")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
