package queue

import (
	"context"
	"fmt"
	"time"

	"vidnote/internal/artifacts"
)

// CancelledByUserReason is the error message recorded when a user cancels a task.
const CancelledByUserReason = "cancelled by user"

// RequestCancel flags a task for cooperative cancellation. A pending task is
// cancelled immediately; a processing task keeps running until the worker
// observes the flag at the next stage boundary. Terminal tasks are left
// untouched and reported as not cancellable.
func (s *Store) RequestCancel(ctx context.Context, taskID string) (bool, error) {
	task, err := s.GetByTaskID(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil || task.Terminal() {
		return false, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if task.Status == StatusPending {
		if err := s.execWithoutResultRetry(ctx,
			`UPDATE tasks SET status = ?, cancel_requested = 1, error_message = ?, updated_at = ?
             WHERE task_id = ? AND status = ?`,
			StatusCancelled, CancelledByUserReason, timestamp, taskID, StatusPending,
		); err != nil {
			return false, fmt.Errorf("cancel pending task: %w", err)
		}
		return true, nil
	}

	if err := s.execWithoutResultRetry(ctx,
		`UPDATE tasks SET cancel_requested = 1, updated_at = ? WHERE task_id = ?`,
		timestamp, taskID,
	); err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	return true, nil
}

// MarkCancelled moves a task to the cancelled terminal state.
func (s *Store) MarkCancelled(ctx context.Context, taskID string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE tasks SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE task_id = ?`,
		StatusCancelled, CancelledByUserReason, timestamp, taskID,
	); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// RetryFailed moves failed tasks back to pending for reprocessing. With no
// ids every failed task is retried.
func (s *Store) RetryFailed(ctx context.Context, taskIDs ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(taskIDs) == 0 {
		res, err := s.execWithRetry(ctx,
			`UPDATE tasks
             SET status = ?, stage = NULL, error_kind = NULL, error_message = NULL,
                 cancel_requested = 0, updated_at = ?
             WHERE status = ?`,
			StatusPending, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(taskIDs))
	args := make([]any, 0, len(taskIDs)+3)
	args = append(args, StatusPending, timestamp, StatusFailed)
	for _, id := range taskIDs {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, stage = NULL, error_kind = NULL, error_message = NULL,
             cancel_requested = 0, updated_at = ?
         WHERE status = ? AND task_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the last heartbeat timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		timestamp, timestamp, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns processing tasks with expired heartbeats back to
// pending so a live worker can pick them up. Cached stage artifacts make the
// retry cheap.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		timestamp,
		StatusDownloading, StatusTranscribing, StatusSummarizing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// ResetProcessing returns every processing task to pending. Called on startup
// before workers exist, so nothing can legitimately own a processing row.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusPending,
		timestamp,
		StatusDownloading, StatusTranscribing, StatusSummarizing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing tasks: %w", err)
	}
	return res.RowsAffected()
}

// RebuildFromDisk replaces the registry contents with the status snapshots
// found in the artifact store. Disk wins: rows without a snapshot are
// dropped, and snapshots caught mid-stage are requeued as pending.
func (s *Store) RebuildFromDisk(ctx context.Context, store *artifacts.Store) (int, error) {
	records, err := store.ScanStatuses()
	if err != nil {
		return 0, err
	}

	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return 0, fmt.Errorf("clear registry: %w", err)
	}

	restored := 0
	for _, record := range records {
		status, ok := ParseStatus(record.Status)
		if !ok {
			continue
		}
		if _, processing := processingStatuses[status]; processing {
			status = StatusPending
		}

		var errorKind, errorMessage, stage string
		if record.Error != nil {
			errorKind = record.Error.Kind
			errorMessage = record.Error.Reason
			stage = record.Error.Stage
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (task_id, video_url, style, model, extras, status, stage,
                 error_kind, error_message, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.TaskID,
			record.VideoURL,
			record.Style,
			nullableString(record.Model),
			nullableString(record.Extras),
			status,
			nullableString(stage),
			nullableString(errorKind),
			nullableString(errorMessage),
			record.CreatedAt.UTC().Format(time.RFC3339Nano),
			record.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return 0, fmt.Errorf("restore task %s: %w", record.TaskID, err)
		}
		restored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rebuild: %w", err)
	}
	return restored, nil
}
