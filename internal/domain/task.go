package domain

import (
	"fmt"
	"time"
)

// TaskStatus represents the state of a conversion task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskStatuses lists every status in lifecycle order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusProcessing,
	TaskStatusCompleted,
	TaskStatusFailed,
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next respects
// pending -> processing -> completed|failed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusProcessing
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// ConversionTask is one unit of queued background work turning a raw upload into an Item.
type ConversionTask struct {
	ID         int64  `json:"id"`
	SourcePath string `json:"source_path"`
	SourceName string `json:"source_name"`

	// TargetItemID is present when the task re-converts an existing item in place.
	TargetItemID Optional[string] `json:"target_item_id"`

	Status       TaskStatus       `json:"status"`
	ErrorMessage Optional[string] `json:"error_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReconversion reports whether the task targets an existing item.
func (t *ConversionTask) IsReconversion() bool {
	id, ok := t.TargetItemID.Get()
	return ok && id != ""
}

// MarkProcessing transitions the task to processing.
func (t *ConversionTask) MarkProcessing(now time.Time) error {
	return t.transition(TaskStatusProcessing, now)
}

func (t *ConversionTask) transition(next TaskStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid task transition %s -> %s", t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// TaskStats holds task counts keyed by status.
type TaskStats map[TaskStatus]int
