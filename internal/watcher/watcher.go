// Package watcher reports files dropped into a directory once they stop changing.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a flat directory with fsnotify and debounces writes: a file
// is reported only after its size and mtime hold still for SettleDelay.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*pendingEvent // path -> pending event info
	mu      sync.Mutex               // protects pending map

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// pendingEvent tracks a file that may still be changing
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher. Nothing is observed until Watch and Start are called.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a directory to be monitored. Subdirectories are not followed.
func (w *Watcher) Watch(dir string) error {
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}
	w.logger.Debug("added watch", slog.String("path", dir))
	return nil
}

// Start processes events until ctx is cancelled or Stop is called.
// This method blocks.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", slog.String("error", err.Error()))
			}
		}
	}
}

// handle routes an fsnotify event: removals are immediate, writes settle first.
func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name

	if w.opts.shouldIgnore(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if w.cancelPending(path) || event.Has(fsnotify.Remove) {
			w.emit(Event{Type: EventRemoved, Path: path})
		}
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.startSettling(path)
	}
}

// startSettling begins (or restarts) the settle timer for a file
func (w *Watcher) startSettling(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if pending, exists := w.pending[path]; exists {
		pending.timer.Stop()
	}

	w.pending[path] = &pendingEvent{
		size:    info.Size(),
		modTime: info.ModTime(),
		timer:   time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) }),
	}
}

// checkSettled emits the file if it has not changed since the timer was armed.
func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()

	pending, exists := w.pending[path]
	if !exists {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		// Still changing, restart timer
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	w.mu.Unlock()

	w.emit(Event{
		Type:    EventAdded,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

// cancelPending drops a pending file and reports whether one existed.
func (w *Watcher) cancelPending(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, exists := w.pending[path]
	if exists {
		pending.timer.Stop()
		delete(w.pending, path)
	}
	return exists
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel for receiving settled file events.
// It is never closed; select on your own context as well.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the fsnotify watch and cancels pending timers. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, pending := range w.pending {
			pending.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.watcher.Close()
		w.wg.Wait()
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
