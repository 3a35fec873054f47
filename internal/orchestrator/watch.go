package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Event reports that the manifest or its lock file changed on disk.
type Event struct {
	Path string
}

// Watch watches the manifest at manifestPath and its sibling lock file
// for external edits, emitting an Event on the returned channel for
// each change. The channel is closed when ctx is canceled. Grounded on
// internal/runtime/vfs/watch_fsnotify.go's FSNotifyWatcher; additive to
// Install, which never blocks on it — intended for a future long-running
// caller (daemon/editor integration) that wants to re-resolve on edit.
func Watch(ctx context.Context, manifestPath string) (<-chan Event, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	if err := w.Add(dir); err != nil {
		w.Close()

		return nil, err
	}

	lockPath := filepath.Join(dir, "package-lock.json")

	events := make(chan Event)

	go func() {
		defer close(events)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if ev.Name != manifestPath && ev.Name != lockPath {
					continue
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				select {
				case events <- Event{Path: ev.Name}:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}
