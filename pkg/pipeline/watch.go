package pipeline

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of file events (SQLite touches the db,
// -wal, and -shm files on every commit) into one notification.
const debounceWindow = 250 * time.Millisecond

// Watch emits a signal on ch whenever the state directory changes, for
// status displays that re-render on pipeline progress. The returned stop
// function releases the watcher; after stop, ch is closed.
func Watch(dir string) (ch <-chan struct{}, stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				if timer == nil {
					timer = time.NewTimer(debounceWindow)
					fire = timer.C
				} else {
					timer.Reset(debounceWindow)
				}
			case <-fire:
				timer = nil
				fire = nil
				select {
				case out <- struct{}{}:
				default: // receiver is busy; it will re-read state anyway
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return out, func() {
		close(done)
		watcher.Close()
	}, nil
}
