// Package queue exposes the conversion task queue on top of the record store.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
)

// StalledTaskMessage is recorded on tasks found in processing at startup.
const StalledTaskMessage = "interrupted by restart"

// Queue owns creation, claiming and terminal transitions of conversion tasks.
// It also wakes idle workers when new work arrives.
type Queue struct {
	tasks  store.TaskStore
	logger *slog.Logger
	notify chan struct{}
}

// New creates a queue backed by the given task store.
func New(tasks store.TaskStore, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		tasks:  tasks,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// CreateTask enqueues a source file. Enqueueing the same source path twice is a no-op
// reported as store.Duplicate.
func (q *Queue) CreateTask(ctx context.Context, sourcePath, sourceName string, target domain.Optional[string]) (store.CreateResult, error) {
	result, err := q.tasks.CreateTask(ctx, store.NewTask{
		SourcePath:   sourcePath,
		SourceName:   sourceName,
		TargetItemID: target,
	})
	if err != nil {
		return result, err
	}

	if result == store.Created {
		q.logger.Info("conversion task queued",
			slog.String("source_path", sourcePath),
			slog.String("source_name", sourceName),
			slog.Bool("reconversion", target.IsPresent()),
		)
		q.signal()
	} else {
		q.logger.Debug("conversion task already exists", slog.String("source_path", sourcePath))
	}
	return result, nil
}

// ClaimNextTask hands the oldest pending task to the caller, or an absent Optional.
func (q *Queue) ClaimNextTask(ctx context.Context) (domain.Optional[domain.ConversionTask], error) {
	return q.tasks.ClaimNextTask(ctx)
}

// MarkCompleted resolves a claimed task as completed.
func (q *Queue) MarkCompleted(ctx context.Context, id int64) error {
	return q.tasks.MarkTaskCompleted(ctx, id)
}

// MarkFailed resolves a claimed task as failed. There is no automatic retry.
func (q *Queue) MarkFailed(ctx context.Context, id int64, message string) error {
	return q.tasks.MarkTaskFailed(ctx, id, message)
}

// Notify returns a channel that receives a value when new work may be available.
// Several enqueues may collapse into a single wake-up.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
		// Already notified
	}
}

// List returns tasks matching filter.
func (q *Queue) List(ctx context.Context, filter store.TaskFilter) ([]*domain.ConversionTask, error) {
	return q.tasks.ListTasks(ctx, filter)
}

// Get returns a single task.
func (q *Queue) Get(ctx context.Context, id int64) (*domain.ConversionTask, error) {
	return q.tasks.GetTask(ctx, id)
}

// Stats returns task counts per status.
func (q *Queue) Stats(ctx context.Context) (domain.TaskStats, error) {
	return q.tasks.TaskStats(ctx)
}

// RecoverStalled fails tasks left in processing by a previous process.
// Must run before any worker starts.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	n, err := q.tasks.FailStalledTasks(ctx, StalledTaskMessage)
	if err != nil {
		return 0, fmt.Errorf("recover stalled tasks: %w", err)
	}
	if n > 0 {
		q.logger.Warn("failed tasks interrupted by restart", slog.Int("count", n))
	}
	return n, nil
}
