// Package readiness waits for the higlass-server database to appear before
// the startup sequence touches it.
package readiness

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Wait blocks until path exists, ctx is done, or attempts polling intervals
// have elapsed. Creation in the parent directory is picked up immediately
// through fsnotify; the poll covers directories that cannot be watched.
// It reports whether the file exists on return.
func Wait(ctx context.Context, path string, attempts int, interval time.Duration, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exists(path) {
		return true
	}
	if interval <= 0 {
		interval = time.Second
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("file watch unavailable, polling only", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logger.Debug("cannot watch readiness directory, polling only",
				zap.String("dir", filepath.Dir(path)), zap.Error(err))
		} else {
			events = watcher.Events
			errs = watcher.Errors
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	target := filepath.Clean(path)
	for tick := 0; tick < attempts; {
		select {
		case <-ctx.Done():
			return exists(path)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) && exists(path) {
				return true
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Debug("file watch error", zap.Error(err))

		case <-ticker.C:
			tick++
			if exists(path) {
				return true
			}
			logger.Debug("waiting for readiness file", zap.String("path", path), zap.Int("attempt", tick))
		}
	}
	return exists(path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
