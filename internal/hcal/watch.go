package hcal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the inventory whenever the file changes, emitting each valid
// snapshot on the returned channel (the initial load included). Invalid
// intermediate states, e.g. a half-written file, are logged and skipped. The
// channel closes when ctx is done or the watcher fails.
func Watch(ctx context.Context, path string, logger *zap.Logger) (<-chan *Inventory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files via rename, which drops a
	// watch held on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	out := make(chan *Inventory, 1)
	out <- initial

	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				inv, err := Load(path)
				if err != nil {
					logger.Warn("inventory reload failed", zap.String("path", path), zap.Error(err))
					continue
				}
				select {
				case out <- inv:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("inventory watcher error", zap.Error(err))
			}
		}
	}()
	return out, nil
}
