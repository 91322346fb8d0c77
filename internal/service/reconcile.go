package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/media/images"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/store"
)

// ReconcileReport summarizes one startup scan.
type ReconcileReport struct {
	Legacy     int `json:"legacy"`     // re-conversion tasks created for unconverted items
	Orphans    int `json:"orphans"`    // tasks created for raw files with no task
	Duplicates int `json:"duplicates"` // candidates that already had a task
	Errors     int `json:"errors"`     // candidates that could not be enqueued
}

// Reconciler queues work left behind by earlier runs: items stored before
// conversion existed and raw uploads that never got a task.
type Reconciler struct {
	items   store.ItemStore
	queue   *queue.Queue
	uploads *images.Storage
	raw     *images.RawStorage
	logger  *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(items store.ItemStore, q *queue.Queue, uploads *images.Storage, raw *images.RawStorage, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		items:   items,
		queue:   q,
		uploads: uploads,
		raw:     raw,
		logger:  logger,
	}
}

// Run scans once. It is safe to repeat: already-queued sources are reported
// as duplicates. Only listing failures abort the scan.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	items, err := r.items.ListItems(ctx)
	if err != nil {
		return report, fmt.Errorf("list items: %w", err)
	}

	for _, item := range items {
		if item.IsConverted() || !r.uploads.Exists(item.ID) {
			continue
		}
		result, err := r.queue.CreateTask(ctx, r.uploads.Path(item.ID), item.DisplayName, domain.Some(item.ID))
		r.count(&report, &report.Legacy, result, err, item.ID)
	}

	paths, err := r.raw.List()
	if err != nil {
		return report, fmt.Errorf("list raw uploads: %w", err)
	}

	for _, path := range paths {
		result, err := r.queue.CreateTask(ctx, path, filepath.Base(path), domain.None[string]())
		r.count(&report, &report.Orphans, result, err, path)
	}

	r.logger.Info("startup reconciliation finished",
		slog.Int("legacy", report.Legacy),
		slog.Int("orphans", report.Orphans),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("errors", report.Errors))

	return report, nil
}

func (r *Reconciler) count(report *ReconcileReport, created *int, result store.CreateResult, err error, source string) {
	switch {
	case err != nil:
		report.Errors++
		r.logger.Warn("failed to enqueue during reconciliation",
			slog.String("source", source),
			slog.String("error", err.Error()))
	case result == store.Duplicate:
		report.Duplicates++
	default:
		*created++
	}
}
