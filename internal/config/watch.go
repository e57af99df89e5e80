package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModified returns a context canceled when the file at path is written,
// created, removed or renamed. The cause of the cancellation names the event.
func UntilModified(ctx context.Context, path string) (context.Context, context.CancelFunc, error) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		cancel(err)
		_ = w.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op))
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watcher failed: %w", err))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
