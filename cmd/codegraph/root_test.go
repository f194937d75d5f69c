package main

import (
	"bytes"
	"codegraph/internal/core/app"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"codegraph/internal/shared/util"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		require.NoError(t, util.WriteFileWithDirs(filepath.Join(root, filepath.FromSlash(rel)), []byte(content), 0o644))
	}
	return root
}

// noConfig points at a file that does not exist so defaults apply.
func noConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "codegraph.toml")
}

func storeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codegraph.toml")
	body := fmt.Sprintf("version = 1\n\n[builder]\nworkers = 2\n\n[store]\nenabled = true\npath = %q\n", filepath.Join(dir, "graphs.db"))
	require.NoError(t, util.WriteFileWithDirs(path, []byte(body), 0o644))
	return path
}

var baseFiles = map[string]string{
	"src/c.ts": "export function c(n: number): number {\n  return n + 1;\n}\n",
	"src/b.ts": "import { c } from './c';\n\nexport function b(n: number): number {\n  return c(n) * 2;\n}\n",
}

func headFiles() map[string]string {
	return map[string]string{
		"src/c.ts": "export function c(n: number): number {\n  return n - 1;\n}\n",
		"src/b.ts": baseFiles["src/b.ts"],
	}
}

const cDiff = `diff --git a/src/c.ts b/src/c.ts
--- a/src/c.ts
+++ b/src/c.ts
@@ -1,3 +1,3 @@
 export function c(n: number): number {
-  return n + 1;
+  return n - 1;
 }
`

func TestBuildWritesGraphJSON(t *testing.T) {
	root := writeRepo(t, baseFiles)
	res := runCLI(t, "", "build", root, "--config", noConfig(t), "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)

	g, err := graph.UnmarshalCodeGraph([]byte(res.stdout))
	require.NoError(t, err)
	assert.Equal(t, 2, g.FileCount())
	_, ok := g.FindFile("src/b.ts")
	assert.True(t, ok)
}

func TestBuildOutFileFeedsOtherCommands(t *testing.T) {
	root := writeRepo(t, baseFiles)
	out := filepath.Join(t.TempDir(), "graphs", "base.json")
	cfg := noConfig(t)

	res := runCLI(t, "", "build", root, "--config", cfg, "--format", "json", "--out", out)
	require.Equal(t, 0, res.code, res.stderr)
	var sum GraphSummary
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sum))
	assert.Equal(t, 2, sum.Files)
	assert.True(t, util.FileExists(out))

	res = runCLI(t, "", "enrich", out, "--config", cfg, "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	eg, err := graph.UnmarshalEnriched([]byte(res.stdout))
	require.NoError(t, err)
	assert.Equal(t, sum.ID, eg.GraphID)
	assert.NotEmpty(t, eg.Edges)
}

func TestEnrichedOutputIsNotAGraphFile(t *testing.T) {
	root := writeRepo(t, baseFiles)
	cfg := noConfig(t)
	res := runCLI(t, "", "enrich", root, "--config", cfg, "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)

	enriched := filepath.Join(t.TempDir(), "enriched.json")
	require.NoError(t, util.WriteFileWithDirs(enriched, []byte(res.stdout), 0o644))
	res = runCLI(t, "", "enrich", enriched, "--config", cfg)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "enriched graph")
}

func TestChangesAndImpactBetweenCheckouts(t *testing.T) {
	base := writeRepo(t, baseFiles)
	head := writeRepo(t, headFiles())
	cfg := noConfig(t)

	res := runCLI(t, "", "changes", "src/c.ts", "--base", base, "--head", head, "--config", cfg, "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var changes impact.ChangeResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &changes))
	require.Len(t, changes.Modified, 1)
	assert.Equal(t, "c", changes.Modified[0].Name)

	res = runCLI(t, "", "impact", "src/c.ts", "--base", base, "--head", head, "--config", cfg, "--format", "json", "--depth", "1")
	require.Equal(t, 0, res.code, res.stderr)
	var fr app.FileReview
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &fr))
	names := map[string]int{}
	for _, n := range fr.Impact.Nodes() {
		names[n.Name] = n.Level
	}
	assert.Equal(t, 1, names["b"])
	assert.Equal(t, 1, fr.Impact.Impact.Summary.MaxLevel)
}

func TestReviewFromStdin(t *testing.T) {
	base := writeRepo(t, baseFiles)
	head := writeRepo(t, headFiles())

	res := runCLI(t, cDiff, "review", "--base", base, "--head", head, "--config", noConfig(t), "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var report app.ReviewReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	require.Len(t, report.Files, 1)
	assert.Equal(t, 1, report.Summary.FunctionsModified)
	require.Len(t, report.Files[0].Contents, 1)
	assert.Contains(t, report.Files[0].Contents[0].Content, "return n - 1;")
}

func TestReviewHumanReport(t *testing.T) {
	base := writeRepo(t, baseFiles)
	head := writeRepo(t, headFiles())

	res := runCLI(t, cDiff, "review", "--base", base, "--head", head, "--config", noConfig(t), "--format", "human")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Review")
	assert.Contains(t, res.stdout, "Changes in src/c.ts")
	assert.Contains(t, res.stdout, "high")
	assert.Contains(t, res.stdout, "return n - 1;")
}

func TestContentFromHunkFile(t *testing.T) {
	head := writeRepo(t, headFiles())
	hunk := "@@ -1,3 +1,3 @@\n export function c(n: number): number {\n-  return n + 1;\n+  return n - 1;\n }\n"

	res := runCLI(t, hunk, "content", "src/c.ts", "--graph", head, "--config", noConfig(t), "--format", "human")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "export function c(n: number): number {")
	assert.NotContains(t, res.stdout, "@@")
}

func TestSnapshotLabelsNeedStore(t *testing.T) {
	head := writeRepo(t, headFiles())
	res := runCLI(t, "", "changes", "src/c.ts", "--base", "base", "--head", head, "--config", noConfig(t))
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "snapshot store is disabled")
}

func TestSavedSnapshotsServeAsBase(t *testing.T) {
	base := writeRepo(t, baseFiles)
	head := writeRepo(t, headFiles())
	cfg := storeConfig(t)

	res := runCLI(t, "", "build", base, "--config", cfg, "--format", "json", "--save", "main")
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, cDiff, "review", "--base", "main", "--head", head, "--config", cfg, "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var report app.ReviewReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, 1, report.Summary.FunctionsModified)

	res = runCLI(t, "", "enrich", "missing", "--config", cfg)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "GRAPH_NOT_FOUND")

	res = runCLI(t, "", "snapshots", "list", "--config", cfg, "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var entries []struct {
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "main", entries[0].Label)

	res = runCLI(t, "", "snapshots", "delete", "main", "--config", cfg)
	require.Equal(t, 0, res.code, res.stderr)
	res = runCLI(t, "", "snapshots", "delete", "main", "--config", cfg)
	assert.Equal(t, 1, res.code)
}

func TestRejectsBadInvocations(t *testing.T) {
	cfg := noConfig(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown format", []string{"build", t.TempDir(), "--config", cfg, "--format", "xml"}, 2},
		{"missing root", []string{"build", filepath.Join(t.TempDir(), "absent"), "--config", cfg}, 2},
		{"missing args", []string{"build", "--config", cfg}, 1},
		{"missing base flag", []string{"changes", "a.ts", "--head", ".", "--config", cfg}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			assert.Equal(t, tt.code, res.code, res.stderr)
		})
	}
}

func TestHealthReport(t *testing.T) {
	st := &watchStatus{}
	assert.Equal(t, "starting", st.snapshot().Status)

	g := graph.New(t.TempDir())
	st.record(g, 3)
	st.record(g, 1)
	rep := st.snapshot()
	assert.Equal(t, "up", rep.Status)
	assert.Equal(t, g.ID, rep.GraphID)
	assert.Equal(t, 2, rep.Rebuilds)
	assert.Equal(t, 1, rep.Changed)
}
