package policy

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts watching the engine's policy directory for file changes and
// calls Reload after a short debounce window, coalescing bursts of writes
// (editors typically emit create+write+chmod for a single save) into one
// reload. It runs until stop is closed.
func (e *Engine) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(e.dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		const debounce = 500 * time.Millisecond
		var timer *time.Timer
		pending := make(chan struct{}, 1)

		for {
			select {
			case <-stop:
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			case <-pending:
				if err := e.Reload(); err != nil {
					e.logger.Warn("policy: hot-reload failed", "error", err)
				} else {
					e.logger.Info("policy: hot-reloaded policy directory", "dir", e.dir)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn("policy: watcher error", "error", err)
			}
		}
	}()

	return nil
}
