package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hireflow/interview-core/internal/core"
)

func (s *postgresStore) Enqueue(ctx context.Context, task *core.Task) error {
	return enqueueTask(ctx, s.db, task)
}

// enqueueTask inserts a task, deduplicating on its idempotency key so that
// replayed fan-out steps collapse onto the first enqueue.
func enqueueTask(ctx context.Context, tx execer, task *core.Task) error {
	query := `
		INSERT INTO tasks (id, idempotency_key, kind, payload, attempts, not_before, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (idempotency_key) DO NOTHING`
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, query,
		task.ID, task.IdempotencyKey, task.Kind, task.Payload, task.Attempts, task.NotBefore, task.Status, now)
	if err != nil {
		return fmt.Errorf("enqueue task %s (%s): %w", task.IdempotencyKey, task.Kind, err)
	}
	return nil
}

// ClaimDueTasks leases runnable tasks. FOR UPDATE SKIP LOCKED keeps
// concurrent pollers from claiming the same rows without blocking each other.
func (s *postgresStore) ClaimDueTasks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]core.Task, error) {
	query := `
		UPDATE tasks SET claimed_until = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = $3
			AND not_before <= $1
			AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY not_before
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`
	var out []core.Task
	if err := s.db.SelectContext(ctx, &out, query, now, now.Add(lease), core.TaskPending, limit); err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	return out, nil
}

func (s *postgresStore) MarkTaskSucceeded(ctx context.Context, id string) error {
	query := `UPDATE tasks SET status = $2, claimed_until = NULL, updated_at = $3 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, core.TaskSucceeded, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark task %s succeeded: %w", id, err)
	}
	return nil
}

func (s *postgresStore) RescheduleTask(ctx context.Context, id string, attempts int, notBefore time.Time, lastError string) error {
	query := `
		UPDATE tasks
		SET attempts = $2, not_before = $3, last_error = $4, claimed_until = NULL, updated_at = $5
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, attempts, notBefore, lastError, time.Now().UTC()); err != nil {
		return fmt.Errorf("reschedule task %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) MarkTaskFailed(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE tasks
		SET status = $2, last_error = $3, claimed_until = NULL, updated_at = $4
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, core.TaskFailedPermanent, lastError, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark task %s failed: %w", id, err)
	}
	return nil
}

func (s *postgresStore) PurgeFinishedTasks(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM tasks WHERE status IN ($1, $2) AND updated_at < $3`
	res, err := s.db.ExecContext(ctx, query, core.TaskSucceeded, core.TaskFailedPermanent, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge finished tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge finished tasks: %w", err)
	}
	return n, nil
}

func (s *postgresStore) ListRecentTasks(ctx context.Context, limit int) ([]core.Task, error) {
	var out []core.Task
	query := `SELECT * FROM tasks ORDER BY created_at DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}
	return out, nil
}
