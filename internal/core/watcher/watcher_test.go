package watcher

import (
	"codegraph/internal/core/errors"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debounce = 50 * time.Millisecond

// startWatcher watches root and forwards every batch to the returned channel.
func startWatcher(t *testing.T, root string, opts Options) <-chan Batch {
	t.Helper()
	batches := make(chan Batch, 16)
	if opts.Debounce == 0 {
		opts.Debounce = debounce
	}
	w, err := New(opts, func(b Batch) { batches <- b })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx, root))
	return batches
}

// waitFor collects batches until one contains path or the timeout passes.
func waitFor(t *testing.T, batches <-chan Batch, path string) Batch {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, p := range b.Paths() {
				if p == path {
					return b
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for a batch with %s", path)
			return Batch{}
		}
	}
}

func assertQuiet(t *testing.T, batches <-chan Batch, wait time.Duration) {
	t.Helper()
	select {
	case b := <-batches:
		t.Fatalf("unexpected batch %+v", b)
	case <-time.After(wait):
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New(Options{Debounce: debounce}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = New(Options{ExcludeDirs: []string{"[unclosed"}}, func(Batch) {})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestStartRejectsMissingRoot(t *testing.T) {
	w, err := New(Options{Debounce: debounce}, func(Batch) {})
	require.NoError(t, err)
	defer w.Close()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileUnreadable))
}

func TestReportsNewAndEditedSources(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{})

	file := filepath.Join(root, "src", "a.ts")
	write(t, file, "export const a = 1;\n")
	b := waitFor(t, batches, file)
	assert.Contains(t, b.Changed, file)
	assert.Empty(t, b.Removed)

	write(t, file, "export const a = 2;\n")
	b = waitFor(t, batches, file)
	assert.Equal(t, []string{file}, b.Changed)
}

func TestDropsIdenticalRewrites(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.go")
	write(t, file, "package main\n")
	batches := startWatcher(t, root, Options{})

	write(t, file, "package main\n")
	assertQuiet(t, batches, 4*debounce)

	write(t, file, "package main\n\nfunc main() {}\n")
	b := waitFor(t, batches, file)
	assert.Equal(t, []string{file}, b.Changed)
}

func TestSeparatesRemovedFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "old.py")
	write(t, file, "def old():\n    pass\n")
	batches := startWatcher(t, root, Options{})

	require.NoError(t, os.Remove(file))
	b := waitFor(t, batches, file)
	assert.Equal(t, []string{file}, b.Removed)
	assert.Empty(t, b.Changed)
}

func TestRenameReportsBothNames(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "before.go")
	to := filepath.Join(root, "after.go")
	write(t, from, "package main\n")
	batches := startWatcher(t, root, Options{})

	require.NoError(t, os.Rename(from, to))

	seen := map[string]bool{}
	timeout := time.After(3 * time.Second)
	for !seen[from] || !seen[to] {
		select {
		case b := <-batches:
			for _, p := range b.Removed {
				seen[p] = true
			}
			for _, p := range b.Changed {
				seen[p] = true
			}
		case <-timeout:
			t.Fatalf("rename not fully reported, saw %v", seen)
		}
	}
}

func TestWatchesDirectoriesCreatedLater(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{})

	nested := filepath.Join(root, "pkg", "deep", "lib.rs")
	write(t, nested, "pub fn lib() {}\n")
	b := waitFor(t, batches, nested)
	assert.Contains(t, b.Changed, nested)
}

func TestFiltersByExtensionAndExcludes(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{
		ExcludeDirs:  []string{"vendor"},
		ExcludeFiles: []string{"*.gen.go"},
		Extensions:   []string{".go", ".TS"},
	})

	write(t, filepath.Join(root, "notes.md"), "# notes\n")
	write(t, filepath.Join(root, "api.gen.go"), "package api\n")
	assertQuiet(t, batches, 4*debounce)

	kept := filepath.Join(root, "web", "app.ts")
	write(t, kept, "export {};\n")
	b := waitFor(t, batches, kept)
	assert.Equal(t, []string{kept}, b.Changed)
}

func TestExcludedDirectoriesAreNotWatched(t *testing.T) {
	root := t.TempDir()
	vendored := filepath.Join(root, "vendor", "dep.go")
	write(t, vendored, "package dep\n")
	batches := startWatcher(t, root, Options{ExcludeDirs: []string{"vendor"}})

	write(t, vendored, "package dep\n\nvar X = 1\n")
	assertQuiet(t, batches, 4*debounce)
}

func TestBurstCollapsesIntoOneBatch(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{Debounce: 150 * time.Millisecond})

	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "b.go")
	write(t, a, "package a\n")
	write(t, b, "package b\n")

	got := waitFor(t, batches, a)
	assert.Equal(t, []string{a, b}, got.Paths())
}

func TestBatchPathsMergesAndSorts(t *testing.T) {
	b := Batch{Changed: []string{"/r/c.go", "/r/a.go"}, Removed: []string{"/r/b.go"}}
	assert.Equal(t, []string{"/r/a.go", "/r/b.go", "/r/c.go"}, b.Paths())
	assert.True(t, Batch{}.empty())
}
