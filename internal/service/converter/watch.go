package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hz-b/phoebusalarm/internal/logger"
)

// debounceDelay coalesces the event bursts editors produce on save.
const debounceDelay = 250 * time.Millisecond

// watchAndRun re-runs convert whenever inputPath changes, until the context
// is canceled. The containing directory is watched rather than the file,
// atomic saves replace the file and would silently drop a watch on it.
func watchAndRun(ctx context.Context, inputPath string, convert func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	dir := filepath.Dir(inputPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger.InfoKV(ctx, "Watching for changes", "path", inputPath)

	target := filepath.Base(inputPath)

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != target {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			debounce.Reset(debounceDelay)

		case <-debounce.C:
			if err := convert(ctx); err != nil {
				logger.ErrorKV(ctx, "Conversion failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "Watcher error", "error", err)
		}
	}
}
