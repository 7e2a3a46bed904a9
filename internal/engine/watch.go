package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapmeta/internal/blob"
)

// Watch re-runs the extraction whenever a local artifact changes, until ctx
// is cancelled. Changes are debounced so a dbt invocation rewriting several
// artifacts triggers one run. onRun receives the outcome of every run.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, onRun func(*RunResult, error)) error {
	files := e.watchedFiles()
	if len(files) == 0 {
		return fmt.Errorf("nothing to watch: no artifact is a local file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// dbt replaces artifacts, so watch their directories rather than the files
	dirs := make(map[string]struct{})
	for path := range files {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	e.logger.Info("watching artifacts", "files", len(files))

	runs := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := files[filepath.Clean(event.Name)]; !ok {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			e.logger.Debug("artifact changed", "file", event.Name)
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case runs <- struct{}{}:
				default:
				}
			})

		case <-runs:
			res, err := e.Run(ctx)
			onRun(res, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", "error", err)
		}
	}
}

// watchedFiles returns the configured artifacts that are local files.
func (e *Engine) watchedFiles() map[string]struct{} {
	files := make(map[string]struct{})
	for _, uri := range []string{e.cfg.Manifest, e.cfg.Catalog, e.cfg.RunResults} {
		if uri == "" {
			continue
		}
		loc, err := blob.Parse(uri)
		if err != nil || loc.Scheme != blob.SchemeFile {
			continue
		}
		path, err := filepath.Abs(loc.Key)
		if err != nil {
			continue
		}
		files[path] = struct{}{}
	}
	return files
}
