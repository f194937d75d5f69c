// Package watcher turns filesystem events under a repository into debounced
// batches of changed source files.
package watcher

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/shared/observability"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/zeebo/xxh3"
)

type Options struct {
	Debounce time.Duration
	// ExcludeDirs and ExcludeFiles are globs matched against base names.
	ExcludeDirs  []string
	ExcludeFiles []string
	// Extensions limits events to these file extensions. Empty accepts all.
	Extensions []string
}

// Batch is one debounced set of source file changes. Paths are sorted.
type Batch struct {
	Changed []string
	Removed []string
}

// Paths returns every path in the batch, sorted.
func (b Batch) Paths() []string {
	out := append(append(make([]string, 0, len(b.Changed)+len(b.Removed)), b.Changed...), b.Removed...)
	sort.Strings(out)
	return out
}

func (b Batch) empty() bool { return len(b.Changed) == 0 && len(b.Removed) == 0 }

type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	skipDirs []glob.Glob
	skipFile []glob.Glob
	exts     map[string]bool
	emit     func(Batch)
	emitMu   sync.Mutex

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	// xxh3 of the last content seen per file; identical rewrites are dropped
	sums map[string]uint64
}

func compile(patterns []string, kind string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid watch exclude %s pattern %q", kind, p))
		}
		out = append(out, g)
	}
	return out, nil
}

// New creates a watcher that reports batches to emit.
func New(opts Options, emit func(Batch)) (*Watcher, error) {
	if emit == nil {
		return nil, errors.New(errors.CodeValidationError, "watcher needs a batch callback")
	}
	dirs, err := compile(opts.ExcludeDirs, "dir")
	if err != nil {
		return nil, err
	}
	files, err := compile(opts.ExcludeFiles, "file")
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "start filesystem watcher")
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: opts.Debounce,
		skipDirs: dirs,
		skipFile: files,
		exts:     make(map[string]bool, len(opts.Extensions)),
		emit:     emit,
		pending:  make(map[string]struct{}),
		sums:     make(map[string]uint64),
	}
	for _, ext := range opts.Extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			w.exts[ext] = true
		}
	}
	return w, nil
}

// Start registers every non-excluded directory under roots, then processes
// events until ctx is done or Close is called. Registration errors are
// returned before any event is handled.
func (w *Watcher) Start(ctx context.Context, roots ...string) error {
	for _, root := range roots {
		if err := w.register(root, false); err != nil {
			err = errors.Wrap(err, errors.CodeFileUnreadable, "watch directory")
			return errors.AddContext(err, errors.CtxPath, root)
		}
	}
	go w.loop(ctx)
	return nil
}

// register adds directories to fsnotify. Files found are hashed as the
// baseline, or queued when the directory appeared after startup.
func (w *Watcher) register(root string, queue bool) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && w.excludedDir(path) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if w.excludedFile(path) {
			return nil
		}
		if queue {
			w.queue(path)
			return nil
		}
		if sum, ok := checksum(path); ok {
			w.mu.Lock()
			w.sums[path] = sum
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.excludedDir(ev.Name) {
				if err := w.register(ev.Name, true); err != nil {
					slog.Warn("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}
	if w.excludedFile(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.queue(ev.Name)
	}
}

func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush classifies pending paths by their content now. A path that still
// hashes to its previous sum is not reported.
func (w *Watcher) flush() {
	var b Batch
	w.mu.Lock()
	for path := range w.pending {
		sum, ok := checksum(path)
		if !ok {
			delete(w.sums, path)
			b.Removed = append(b.Removed, path)
			continue
		}
		if prev, seen := w.sums[path]; seen && prev == sum {
			continue
		}
		w.sums[path] = sum
		b.Changed = append(b.Changed, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if b.empty() {
		return
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Removed)
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.emit(b)
}

func checksum(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return xxh3.Hash(data), true
}

func matches(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (w *Watcher) excludedDir(path string) bool {
	return matches(w.skipDirs, filepath.Base(path))
}

func (w *Watcher) excludedFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if len(w.exts) > 0 && !w.exts[filepath.Ext(base)] {
		return true
	}
	return matches(w.skipFile, base)
}

// Close stops the debounce timer and the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
