package app

import (
	"codegraph/internal/core/config"
	"codegraph/internal/core/errors"
	"codegraph/internal/data/store"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/impact"
	"codegraph/internal/shared/util"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		require.NoError(t, util.WriteFileWithDirs(filepath.Join(root, filepath.FromSlash(rel)), []byte(content), 0o644))
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Builder.Workers = 2
	cfg.Builder.BatchSize = 4
	cfg.Builder.ProgressLogInterval = time.Hour
	cfg.Watch.Debounce = 50 * time.Millisecond
	return cfg
}

func newService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var chainBase = map[string]string{
	"src/c.ts": "export function c(n: number): number {\n  return n + 1;\n}\n",
	"src/b.ts": "import { c } from './c';\n\nexport function b(n: number): number {\n  return c(n) * 2;\n}\n",
	"src/a.ts": "import { b } from './b';\n\nexport function a(): number {\n  return b(3);\n}\n",
}

const chainDiff = `diff --git a/src/c.ts b/src/c.ts
index 1111111..2222222 100644
--- a/src/c.ts
+++ b/src/c.ts
@@ -1,3 +1,3 @@
 export function c(n: number): number {
-  return n + 1;
+  return n - 1;
 }
`

func TestReviewReportsChangesImpactAndContent(t *testing.T) {
	baseRoot, headRoot := t.TempDir(), t.TempDir()
	writeTree(t, baseRoot, chainBase)
	writeTree(t, headRoot, chainBase)
	writeTree(t, headRoot, map[string]string{"src/c.ts": "export function c(n: number): number {\n  return n - 1;\n}\n"})

	s := newService(t, testConfig())
	report, err := s.Review(context.Background(), ReviewRequest{
		BaseRoot: baseRoot, HeadRoot: headRoot, Diff: chainDiff, PerFunction: true,
	})
	require.NoError(t, err)

	require.Len(t, report.Files, 1)
	fr := report.Files[0]
	assert.Equal(t, "src/c.ts", fr.Path)
	require.Len(t, fr.Changes.Modified, 1)
	assert.Equal(t, "c", fr.Changes.Modified[0].Name)
	assert.Nil(t, fr.DeletedImpact)
	assert.Len(t, fr.PerFunction, 1)

	level := func(name string) int {
		for _, n := range fr.Impact.Nodes() {
			if n.Name == name && n.Type == graph.NodeFunction {
				return n.Level
			}
		}
		return -1
	}
	assert.Equal(t, 1, level("b"))
	assert.Equal(t, 2, level("a"))

	require.Len(t, fr.Contents, 1)
	assert.Contains(t, fr.Contents[0].Content, "return n - 1;")
	assert.Contains(t, fr.Contents[0].Content, "export function c")
	assert.Equal(t, "@@ -1,3 +1,3 @@", fr.Contents[0].Header)

	assert.Equal(t, 1, report.Summary.FilesChanged)
	assert.Equal(t, 1, report.Summary.FunctionsModified)
	assert.GreaterOrEqual(t, report.Summary.ImpactedNodes, 2)
	assert.NotEqual(t, report.BaseGraphID, report.HeadGraphID)
}

func TestReviewTracesDeletedFunctionsThroughBase(t *testing.T) {
	baseRoot, headRoot := t.TempDir(), t.TempDir()
	main := "import { helper } from './lib';\n\nexport function main(): number {\n  return helper();\n}\n"
	writeTree(t, baseRoot, map[string]string{
		"src/lib.ts":  "export function helper(): number {\n  return 1;\n}\n\nexport function other(): number {\n  return 2;\n}\n",
		"src/main.ts": main,
	})
	writeTree(t, headRoot, map[string]string{
		"src/lib.ts":  "export function other(): number {\n  return 2;\n}\n",
		"src/main.ts": main,
	})
	diff := `diff --git a/src/lib.ts b/src/lib.ts
--- a/src/lib.ts
+++ b/src/lib.ts
@@ -1,7 +1,3 @@
-export function helper(): number {
-  return 1;
-}
-
 export function other(): number {
   return 2;
 }
`
	s := newService(t, testConfig())
	report, err := s.Review(context.Background(), ReviewRequest{BaseRoot: baseRoot, HeadRoot: headRoot, Diff: diff})
	require.NoError(t, err)

	require.Len(t, report.Files, 1)
	fr := report.Files[0]
	require.Len(t, fr.Changes.Deleted, 1)
	assert.Equal(t, "helper", fr.Changes.Deleted[0].Name)
	require.NotNil(t, fr.DeletedImpact)

	var callers []string
	for _, n := range fr.DeletedImpact.Impact.GroupedByLevel[1] {
		callers = append(callers, n.Name)
	}
	assert.Contains(t, callers, "main")
	assert.Equal(t, 1, report.Summary.FunctionsDeleted)
}

func TestReviewGraphsNeedsBothGraphs(t *testing.T) {
	s := newService(t, testConfig())
	_, err := s.ReviewGraphs(context.Background(), nil, graph.New(t.TempDir()), "", false)
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))
}

func TestReviewRejectsMissingRoot(t *testing.T) {
	s := newService(t, testConfig())
	_, err := s.Review(context.Background(), ReviewRequest{BaseRoot: filepath.Join(t.TempDir(), "absent"), HeadRoot: t.TempDir()})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestSnapshotsRequireStore(t *testing.T) {
	s := newService(t, testConfig())
	_, err := s.SaveSnapshot("head", graph.New(t.TempDir()))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	_, err = s.LoadSnapshot("head")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestSnapshotRoundTripThroughService(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, chainBase)

	cfg := testConfig()
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(t.TempDir(), "graphs.db")
	s := newService(t, cfg)

	g, err := s.BuildGraph(context.Background(), root, nil)
	require.NoError(t, err)
	_, err = s.SaveSnapshot("base", g)
	require.NoError(t, err)

	back, err := s.LoadSnapshot("base")
	require.NoError(t, err)
	assert.Equal(t, g.ID, back.ID)
	assert.Equal(t, g.FileCount(), back.FileCount())

	_, err = s.LoadSnapshot("missing")
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))
}

func TestConfigDrivesBuildAndAnalysis(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.rb":        "def greet\n  'hi'\nend\n",
		"app.py":        "def greet():\n    return 'hi'\n",
		"gen/skip.py":   "def skipped():\n    pass\n",
		"extra/lib.tsm": "export function m(): number { return 1; }\n",
	})

	disabled := false
	cfg := testConfig()
	cfg.Languages["ruby"] = config.Language{Enabled: &disabled}
	cfg.Languages["typescript"] = config.Language{Extensions: []string{".tsm"}}
	cfg.Scan.ExcludeDirs = []string{"gen"}
	cfg.Enrichment.FanOut = "none"
	cfg.Impact.MaxDepth = 3

	s := newService(t, cfg)
	g, err := s.BuildGraph(context.Background(), root, nil)
	require.NoError(t, err)

	_, ok := g.FindFile("app.rb")
	assert.False(t, ok, "ruby is disabled")
	_, ok = g.FindFile("gen/skip.py")
	assert.False(t, ok, "gen is excluded")
	_, ok = g.FindFile("app.py")
	assert.True(t, ok)
	_, ok = g.FindFile("extra/lib.tsm")
	assert.True(t, ok, "extra extension is enabled")

	assert.Equal(t, graph.FanOutNone, EnrichOptions(cfg).FanOut)
	opts := ImpactOptions(cfg)
	assert.Equal(t, 3, opts.MaxDepth)
	assert.Equal(t, impact.DefaultEdgeTypes, opts.EdgeTypes)
}

func TestStreamGraphThroughService(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, chainBase)

	var batches int
	s, err := New(testConfig(), WithProgress(func(graph.Progress) { batches++ }))
	require.NoError(t, err)
	defer s.Close()

	st, err := s.StreamGraph(context.Background(), root, nil)
	require.NoError(t, err)
	for st.Next() {
	}
	require.NoError(t, st.Err())
	require.NotNil(t, st.Graph())
	assert.Equal(t, 3, st.Graph().FileCount())
	assert.Equal(t, 1, batches)
}

func TestWatchRebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.py": "def main():\n    return 1\n"})

	cfg := testConfig()
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(t.TempDir(), "graphs.db")
	s := newService(t, cfg)

	type rebuild struct {
		files   int
		changed []string
	}
	rebuilds := make(chan rebuild, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, root, func(g *graph.CodeGraph, changed []string) {
			rebuilds <- rebuild{files: g.FileCount(), changed: changed}
		})
	}()

	select {
	case r := <-rebuilds:
		assert.Equal(t, 1, r.files)
		assert.Nil(t, r.changed)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for initial build")
	}

	// give the watcher a moment to register directories
	time.Sleep(200 * time.Millisecond)
	added := filepath.Join(root, "extra.py")
	writeTree(t, root, map[string]string{"extra.py": "def extra():\n    return 2\n"})

	deadline := time.After(10 * time.Second)
	for found := false; !found; {
		select {
		case r := <-rebuilds:
			for _, p := range r.changed {
				if p == added {
					found = true
					assert.Equal(t, 2, r.files)
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for rebuild")
		}
	}

	head, err := s.LoadSnapshot(HeadLabel)
	require.NoError(t, err)
	assert.Equal(t, 2, head.FileCount())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestImpactOfSingleFile(t *testing.T) {
	s := newService(t, testConfig())
	base := graph.New(t.TempDir())
	headRoot := t.TempDir()
	writeTree(t, headRoot, chainBase)
	head, err := s.BuildGraph(context.Background(), headRoot, nil)
	require.NoError(t, err)

	fr, err := s.ImpactOf(context.Background(), base, head, "src/b.ts", true)
	require.NoError(t, err)
	require.Len(t, fr.Changes.Added, 1)
	assert.Equal(t, "b", fr.Changes.Added[0].Name)
	assert.Nil(t, fr.DeletedImpact)
	assert.Empty(t, fr.Contents)
	require.Len(t, fr.PerFunction, 1)
	assert.Equal(t, "b", fr.PerFunction[0].Function)

	var callers []string
	for _, n := range fr.Impact.Impact.GroupedByLevel[1] {
		callers = append(callers, n.Name)
	}
	assert.Contains(t, callers, "a")

	_, err = s.ImpactOf(context.Background(), nil, head, "src/b.ts", false)
	assert.True(t, errors.IsCode(err, errors.CodeGraphNotFound))
}

// memoryStore keeps snapshots in a map.
type memoryStore struct {
	graphs map[string]*graph.CodeGraph
	closed bool
}

func (m *memoryStore) Save(label string, g *graph.CodeGraph) (store.Entry, error) {
	m.graphs[label] = g
	return store.Entry{Label: label, GraphID: g.ID}, nil
}

func (m *memoryStore) Load(label string) (*graph.CodeGraph, error) {
	g, ok := m.graphs[label]
	if !ok {
		return nil, errors.New(errors.CodeGraphNotFound, "no snapshot")
	}
	return g, nil
}

func (m *memoryStore) List() ([]store.Entry, error) {
	out := make([]store.Entry, 0, len(m.graphs))
	for _, label := range util.SortedStringKeys(m.graphs) {
		out = append(out, store.Entry{Label: label, GraphID: m.graphs[label].ID})
	}
	return out, nil
}

func (m *memoryStore) Delete(label string) error {
	if _, ok := m.graphs[label]; !ok {
		return errors.New(errors.CodeGraphNotFound, "no snapshot")
	}
	delete(m.graphs, label)
	return nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func TestServiceUsesInjectedStore(t *testing.T) {
	mem := &memoryStore{graphs: make(map[string]*graph.CodeGraph)}
	s, err := New(testConfig(), WithStore(mem))
	require.NoError(t, err)

	g := graph.New(t.TempDir())
	_, err = s.SaveSnapshot("b", g)
	require.NoError(t, err)
	_, err = s.SaveSnapshot("a", g)
	require.NoError(t, err)

	entries, err := s.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Label)

	require.NoError(t, s.DeleteSnapshot("a"))
	assert.True(t, errors.IsCode(s.DeleteSnapshot("a"), errors.CodeGraphNotFound))

	require.NoError(t, s.Close())
	assert.True(t, mem.closed)
}
