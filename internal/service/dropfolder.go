package service

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/watcher"
)

// DropFolder queues files that appear in the raw-input directory outside the
// upload endpoint (copied in by hand, synced by another tool).
type DropFolder struct {
	watcher *watcher.Watcher
	queue   *queue.Queue
	logger  *slog.Logger
}

// NewDropFolder creates a drop-folder ingester for a watcher already watching the raw dir.
func NewDropFolder(w *watcher.Watcher, q *queue.Queue, logger *slog.Logger) *DropFolder {
	return &DropFolder{
		watcher: w,
		queue:   q,
		logger:  logger,
	}
}

// Run consumes watcher events until ctx is cancelled.
func (d *DropFolder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event := <-d.watcher.Events():
			if event.Type != watcher.EventAdded {
				continue
			}
			d.enqueue(ctx, event.Path)

		case err := <-d.watcher.Errors():
			d.logger.Warn("drop folder watcher error", slog.String("error", err.Error()))
		}
	}
}

func (d *DropFolder) enqueue(ctx context.Context, path string) {
	// Uploads through the API land here too; those are reported as duplicates.
	if _, err := d.queue.CreateTask(ctx, path, filepath.Base(path), domain.None[string]()); err != nil {
		d.logger.Error("failed to queue dropped file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
