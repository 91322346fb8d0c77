package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
)

// claimRaceAttempts bounds how often ClaimNextTask retries after losing the conditional update.
const claimRaceAttempts = 3

// taskColumns is the ordered list of columns selected in task queries.
// Must match the scan order in scanTask.
const taskColumns = `id, source_path, source_name, target_item_id,
	status, error_message, created_at, updated_at`

// scanTask scans a sql.Row (or sql.Rows via its Scan method) into a domain.ConversionTask.
func scanTask(scanner interface{ Scan(dest ...any) error }) (*domain.ConversionTask, error) {
	var (
		t            domain.ConversionTask
		targetItemID sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&t.ID,
		&t.SourcePath,
		&t.SourceName,
		&targetItemID,
		&t.Status,
		&errorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TargetItemID = optionalString(targetItemID)
	t.ErrorMessage = optionalString(errorMessage)

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// optionalString converts a nullable column to an Optional.
func optionalString(ns sql.NullString) domain.Optional[string] {
	if !ns.Valid {
		return domain.None[string]()
	}
	return domain.Some(ns.String)
}

// nullOptional converts an Optional to a nullable column value.
func nullOptional(o domain.Optional[string]) sql.NullString {
	v, ok := o.Get()
	if !ok {
		return sql.NullString{}
	}
	return nullString(v)
}

// CreateTask inserts a pending task for a source file.
// A second call for the same source path, whatever the state of the first task,
// changes nothing and reports store.Duplicate.
func (s *Store) CreateTask(ctx context.Context, task store.NewTask) (store.CreateResult, error) {
	if task.SourcePath == "" {
		return store.Duplicate, store.ErrInvalidInput.WithMessage("source path is required")
	}

	now := formatTime(s.now())
	result, err := s.execWithRetry(ctx, `
		INSERT INTO conversion_tasks (
			source_path, source_name, target_item_id,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO NOTHING`,
		task.SourcePath,
		task.SourceName,
		nullOptional(task.TargetItemID),
		string(domain.TaskStatusPending),
		now,
		now,
	)
	if err != nil {
		return store.Duplicate, fmt.Errorf("insert task for %s: %w", task.SourcePath, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return store.Duplicate, err
	}
	if n == 0 {
		return store.Duplicate, nil
	}
	return store.Created, nil
}

// ClaimNextTask moves the oldest pending task to processing and returns it.
// The select and the conditional update share one IMMEDIATE transaction; the update only
// applies while the row is still pending, so two callers never receive the same task.
// Returns an absent Optional when nothing is pending.
func (s *Store) ClaimNextTask(ctx context.Context) (domain.Optional[domain.ConversionTask], error) {
	ctx = ensureContext(ctx)

	for range claimRaceAttempts {
		var (
			claimed *domain.ConversionTask
			lost    bool
		)
		err := retryOnBusy(ctx, func() error {
			var err error
			claimed, lost, err = s.claimOnce(ctx)
			return err
		})
		if err != nil {
			return domain.None[domain.ConversionTask](), fmt.Errorf("claim task: %w", err)
		}
		if lost {
			continue
		}
		if claimed == nil {
			return domain.None[domain.ConversionTask](), nil
		}
		return domain.Some(*claimed), nil
	}

	s.logger.Debug("lost claim race repeatedly, yielding")
	return domain.None[domain.ConversionTask](), nil
}

// claimOnce runs a single claim transaction. lost reports that the selected row was
// taken by another caller between the select and the update.
func (s *Store) claimOnce(ctx context.Context) (task *domain.ConversionTask, lost bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM conversion_tasks
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, string(domain.TaskStatusPending))

	task, err = scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE conversion_tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.TaskStatusProcessing),
		formatTime(now),
		task.ID,
		string(domain.TaskStatusPending),
	)
	if err != nil {
		return nil, false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, true, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	if err := task.MarkProcessing(now); err != nil {
		return nil, false, err
	}
	return task, false, nil
}

// MarkTaskCompleted moves a processing task to completed and clears its error.
func (s *Store) MarkTaskCompleted(ctx context.Context, id int64) error {
	result, err := s.execWithRetry(ctx, `
		UPDATE conversion_tasks SET status = ?, error_message = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.TaskStatusCompleted),
		formatTime(s.now()),
		id,
		string(domain.TaskStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	return s.checkTransition(ctx, result, id)
}

// MarkTaskFailed moves a processing task to failed and records the message.
func (s *Store) MarkTaskFailed(ctx context.Context, id int64, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "conversion failed"
	}

	result, err := s.execWithRetry(ctx, `
		UPDATE conversion_tasks SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.TaskStatusFailed),
		message,
		formatTime(s.now()),
		id,
		string(domain.TaskStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("fail task %d: %w", id, err)
	}
	return s.checkTransition(ctx, result, id)
}

// checkTransition tells a missing task apart from one in the wrong state.
func (s *Store) checkTransition(ctx context.Context, result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return store.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("task %d is already %s", id, task.Status))
	}
	return store.ErrInvalidTransition.WithMessage(
		fmt.Sprintf("task %d is %s, not %s", id, task.Status, domain.TaskStatusProcessing))
}

// GetTask retrieves a task by ID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *Store) GetTask(ctx context.Context, id int64) (*domain.ConversionTask, error) {
	ctx = ensureContext(ctx)

	var task *domain.ConversionTask
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM conversion_tasks WHERE id = ?`, id)
		var scanErr error
		task, scanErr = scanTask(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns tasks oldest first, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.ConversionTask, error) {
	ctx = ensureContext(ctx)

	query := `SELECT ` + taskColumns + ` FROM conversion_tasks`
	args := make([]any, 0, len(filter.Statuses)+1)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.ConversionTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// TaskStats returns task counts per status. Every status is present, zero included.
func (s *Store) TaskStats(ctx context.Context) (domain.TaskStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(*) FROM conversion_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(domain.TaskStats, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		stats[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[domain.TaskStatus(status)] = count
	}
	return stats, rows.Err()
}

// FailStalledTasks fails every task still marked processing.
// Only safe while no worker is running, i.e. at startup after a crash.
func (s *Store) FailStalledTasks(ctx context.Context, message string) (int, error) {
	result, err := s.execWithRetry(ctx, `
		UPDATE conversion_tasks SET status = ?, error_message = ?, updated_at = ?
		WHERE status = ?`,
		string(domain.TaskStatusFailed),
		message,
		formatTime(s.now()),
		string(domain.TaskStatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stalled tasks: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
