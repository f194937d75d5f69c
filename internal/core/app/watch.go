package app

import (
	"codegraph/internal/core/watcher"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
	"context"
	"log/slog"
)

// HeadLabel is the snapshot label watch mode keeps current.
const HeadLabel = "head"

// RebuildFunc observes every graph watch mode produces, with the files whose
// change triggered it (nil for the initial build).
type RebuildFunc func(g *graph.CodeGraph, changed []string)

// Watch builds root, then rebuilds it whenever a source file changes until
// ctx is cancelled. With the store enabled each graph is saved as "head".
func (s *Service) Watch(ctx context.Context, root string, onRebuild RebuildFunc) error {
	if err := s.rebuild(ctx, root, nil, onRebuild); err != nil {
		return err
	}

	// Rebuilds are serialised here; bursts collapse into one pending run.
	trigger := make(chan []string, 1)
	w, err := watcher.New(watcher.Options{
		Debounce:     s.cfg.Watch.Debounce,
		ExcludeDirs:  append(append([]string{}, graph.DefaultExcludeDirs...), s.cfg.Scan.ExcludeDirs...),
		ExcludeFiles: s.cfg.Scan.ExcludeFiles,
		Extensions:   s.builder.Registry().Extensions(),
	}, func(b watcher.Batch) {
		paths := b.Paths()
		for {
			select {
			case trigger <- paths:
				return
			default:
			}
			select {
			case prev := <-trigger:
				paths = util.UniqueSorted(append(prev, paths...))
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Start(ctx, root); err != nil {
		return err
	}
	slog.Info("watching for changes", "path", root, "debounce", s.cfg.Watch.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-trigger:
			slog.Info("change detected", "files", len(changed))
			if err := s.rebuild(ctx, root, changed, onRebuild); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("rebuild failed", "path", root, "error", err)
			}
		}
	}
}

func (s *Service) rebuild(ctx context.Context, root string, changed []string, onRebuild RebuildFunc) error {
	g, err := s.BuildGraph(ctx, root, nil)
	if err != nil {
		return err
	}
	if s.store != nil {
		if _, err := s.store.Save(HeadLabel, g); err != nil {
			slog.Warn("snapshot save failed", "label", HeadLabel, "error", err)
		}
	}
	if onRebuild != nil {
		onRebuild(g, changed)
	}
	return nil
}
