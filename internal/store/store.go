// Package store defines the persistence contracts for items and conversion tasks.
package store

import (
	"context"

	"github.com/picsapp/picsapp-server/internal/domain"
)

// CreateResult reports the outcome of an idempotent task insert.
type CreateResult int

const (
	// Created means a new pending task was stored.
	Created CreateResult = iota
	// Duplicate means a task for the same source path already existed; nothing changed.
	Duplicate
)

// String returns the string representation of the result.
func (r CreateResult) String() string {
	switch r {
	case Created:
		return "created"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// NewTask describes a task to enqueue.
type NewTask struct {
	SourcePath   string
	SourceName   string
	TargetItemID domain.Optional[string]
}

// TaskFilter narrows task listings. An empty Statuses slice means all statuses.
type TaskFilter struct {
	Statuses []domain.TaskStatus
	Limit    int
}

// ItemStore persists items.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	GetRecentItems(ctx context.Context, limit int) ([]*domain.Item, error)
	GetRankedItems(ctx context.Context) ([]*domain.Item, error)
	ListItems(ctx context.Context) ([]*domain.Item, error)
	InsertItem(ctx context.Context, item *domain.Item) error
	RenameItem(ctx context.Context, oldID string, updated *domain.Item) error
	IncrementLikeCount(ctx context.Context, id string) error
}

// TaskStore persists conversion tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task NewTask) (CreateResult, error)
	ClaimNextTask(ctx context.Context) (domain.Optional[domain.ConversionTask], error)
	MarkTaskCompleted(ctx context.Context, id int64) error
	MarkTaskFailed(ctx context.Context, id int64, message string) error
	GetTask(ctx context.Context, id int64) (*domain.ConversionTask, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.ConversionTask, error)
	TaskStats(ctx context.Context) (domain.TaskStats, error)
	FailStalledTasks(ctx context.Context, message string) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	ItemStore
	TaskStore
	Ping(ctx context.Context) error
	Close() error
}
