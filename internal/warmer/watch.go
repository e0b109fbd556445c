package warmer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"thumbcache/internal/logging"
	"thumbcache/internal/thumbnail"
)

// Watch renders supported images under the source directory as they
// appear, until ctx ends. A file is rendered once it has produced no
// create or write events for the debounce interval, so files still being
// copied are not read early. Existing artifacts are trusted: rewriting a
// source whose thumbnail already exists leaves that thumbnail in place.
func (w *Warmer) Watch(ctx context.Context) error {
	return w.watch(ctx, nil)
}

func (w *Warmer) watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	root, dest := w.roots()
	count := w.addTree(watcher, root, root, dest, nil)
	logging.Info("Watching %d directories under %s", count, root)
	if ready != nil {
		close(ready)
	}

	pending := make(map[string]time.Time)
	queue := func(path string) {
		pending[path] = time.Now()
	}
	ticker := time.NewTicker(max(w.opts.Debounce/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writes only push the debounce deadline back.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					w.addTree(watcher, root, event.Name, dest, queue)
				}
				continue
			}
			if thumbnail.ClassifyFormat(event.Name) != thumbnail.FormatUnsupported {
				queue(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.opts.Debounce {
					continue
				}
				delete(pending, path)
				w.renderChanged(ctx, root, path)
			}
		}
	}
}

// addTree watches dir and every directory below it that a warm pass would
// descend into. Supported files found on the way are passed to onFile,
// which covers directories moved into place with their contents.
func (w *Warmer) addTree(watcher *fsnotify.Watcher, root, dir, dest string, onFile func(string)) int {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() && thumbnail.ClassifyFormat(path) != thumbnail.FormatUnsupported {
				onFile(path)
			}
			return nil
		}
		if path != root && skipDir(path, d.Name(), dest) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Warn("failed to walk %s for watcher: %v", dir, err)
	}
	return count
}

func (w *Warmer) renderChanged(ctx context.Context, root, path string) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return
	}
	res, err := w.r.Thumbnail(ctx, w.request(rel))
	if err != nil {
		logging.Warn("Failed to render %s: %v", rel, err)
		return
	}
	logging.Debug("Rendered %s (%s)", rel, res.Kind)
}
