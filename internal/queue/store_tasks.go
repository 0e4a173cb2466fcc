package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskColumns = "id, task_id, video_url, style, model, extras, status, stage, error_kind, error_message, cancel_requested, created_at, updated_at, last_heartbeat"

// NewTask inserts a pending task. The task_id is unique; submitting the same
// url and style again returns the existing row instead of inserting.
func (s *Store) NewTask(ctx context.Context, taskID, videoURL, style, model, extras string) (*Task, error) {
	if existing, err := s.GetByTaskID(ctx, taskID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (task_id, video_url, style, model, extras, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID,
		videoURL,
		style,
		nullableString(model),
		nullableString(extras),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByTaskID(ctx, taskID)
}

// GetByTaskID fetches a task by its public identifier. Returns nil when the
// task is unknown.
func (s *Store) GetByTaskID(ctx context.Context, taskID string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task row.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET video_url = ?, style = ?, model = ?, extras = ?, status = ?, stage = ?,
             error_kind = ?, error_message = ?, cancel_requested = ?, updated_at = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		task.VideoURL,
		task.Style,
		nullableString(task.Model),
		nullableString(task.Extras),
		task.Status,
		nullableString(task.Stage),
		nullableString(task.ErrorKind),
		nullableString(task.ErrorMessage),
		boolToInt(task.CancelRequested),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.LastHeartbeat),
		task.ID,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = ensureContext(ctx)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ClaimNext atomically claims the oldest pending task for a worker, moving it
// to downloading with a fresh heartbeat. Returns nil when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)
	var claimed *Task
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at LIMIT 1`,
			StatusPending,
		)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		timestamp := now.Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusDownloading, timestamp, timestamp, task.ID, StatusPending,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		task.Status = StatusDownloading
		task.LastHeartbeat = &now
		task.UpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return claimed, nil
}

// ClaimByTaskID atomically claims a specific pending task, for synchronous
// submissions that process inline instead of waiting for the poll loop.
// Returns nil when the task is missing or already claimed.
func (s *Store) ClaimByTaskID(ctx context.Context, taskID string) (*Task, error) {
	ctx = ensureContext(ctx)
	var claimed *Task
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE task_id = ? AND status = ?`,
			taskID, StatusPending,
		)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		timestamp := now.Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusDownloading, timestamp, timestamp, task.ID, StatusPending,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		task.Status = StatusDownloading
		task.LastHeartbeat = &now
		task.UpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	return claimed, nil
}

// Remove deletes a task row by public identifier.
func (s *Store) Remove(ctx context.Context, taskID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes completed rows from the registry. Artifacts on disk
// are untouched.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Health returns aggregated task counts.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusCancelled:
			summary.Cancelled += count
		default:
			if _, ok := processingStatuses[status]; ok {
				summary.Processing += count
			}
		}
	}
	return summary, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               int64
		taskID           string
		videoURL         string
		style            string
		model            sql.NullString
		extras           sql.NullString
		statusStr        string
		stage            sql.NullString
		errorKind        sql.NullString
		errorMessage     sql.NullString
		cancelRequested  sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&taskID,
		&videoURL,
		&style,
		&model,
		&extras,
		&statusStr,
		&stage,
		&errorKind,
		&errorMessage,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		TaskID:       taskID,
		VideoURL:     videoURL,
		Style:        style,
		Model:        model.String,
		Extras:       extras.String,
		Status:       Status(statusStr),
		Stage:        stage.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
	}
	if cancelRequested.Valid {
		task.CancelRequested = cancelRequested.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
