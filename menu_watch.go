package loader

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// DefaultWatchDebounce coalesces bursts of writes to the menu file
const DefaultWatchDebounce = 25 * time.Millisecond

// MenuFileEvent reports that the persisted menu file changed on disk. The
// in-memory catalog is not rebuilt; the change applies on the next boot.
type MenuFileEvent struct {
	// Path is the menu file path
	Path string
	// Removed is set when the file no longer exists
	Removed bool
	// Err carries watcher errors
	Err error
}

// WatchCleanupFunc stops a watch and waits for its goroutines
type WatchCleanupFunc func() error

// WatchMenuFile watches the menu file at path for modifications
func WatchMenuFile(ctx context.Context, path string, debounce time.Duration) (<-chan MenuFileEvent, WatchCleanupFunc, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	// Watch the directory: atomic rewrites replace the file's inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan MenuFileEvent, 10)
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var (
		mu        sync.Mutex
		debouncer *time.Timer
		removed   bool
	)

	send := func() {
		if sctx.IsStopping() {
			return
		}
		mu.Lock()
		ev := MenuFileEvent{Path: path, Removed: removed}
		mu.Unlock()

		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}

				mu.Lock()
				removed = event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					removed = false
				}
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(debounce, func() {
					sctx.Go(func(*stopper.Context) error {
						send()
						return nil
					})
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- MenuFileEvent{Path: path, Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
