package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/storage"
)

// Runner drives one claimed task to a terminal outcome: succeeded,
// rescheduled with backoff, or failed permanently. Delivery is
// at-least-once; the completion record keyed on the task's idempotency key
// keeps the effect at most-once across redeliveries.
type Runner struct {
	store    storage.Store
	handlers *Handlers
	clock    core.Clock
	cfg      config.WorkerConfig
	logger   *slog.Logger
}

// NewRunner creates a task Runner.
func NewRunner(store storage.Store, handlers *Handlers, clock core.Clock, cfg config.WorkerConfig, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Runner{store: store, handlers: handlers, clock: clock, cfg: cfg, logger: logger}
}

func doneKey(task *core.Task) string {
	return "task:" + task.IdempotencyKey + ":done"
}

// Process executes one claimed task. It never returns an error: every
// failure path ends in a status write so the claim is always resolved.
func (r *Runner) Process(ctx context.Context, task core.Task) {
	// A redelivered task whose effect already completed is acknowledged
	// without re-running the handler.
	if _, done, err := r.store.GetRecord(ctx, doneKey(&task)); err != nil {
		r.release(ctx, &task, err)
		return
	} else if done {
		if err := r.store.MarkTaskSucceeded(ctx, task.ID); err != nil {
			r.logger.Error("failed to acknowledge completed task", "task_id", task.ID, "error", err)
		}
		return
	}

	err := r.handlers.Run(ctx, &task)
	if err == nil {
		if _, _, err := r.store.PutIfAbsent(ctx, doneKey(&task), r.clock.Now().UTC().Format(time.RFC3339)); err != nil {
			r.release(ctx, &task, err)
			return
		}
		if err := r.store.MarkTaskSucceeded(ctx, task.ID); err != nil {
			r.logger.Error("failed to mark task succeeded", "task_id", task.ID, "error", err)
		}
		return
	}

	var perm *backoff.PermanentError
	attempts := task.Attempts + 1
	if errors.As(err, &perm) || attempts >= r.cfg.MaxAttempts {
		// Operator alert: this task needs a human.
		r.logger.Error("task failed permanently",
			"task_id", task.ID,
			"kind", task.Kind,
			"idempotency_key", task.IdempotencyKey,
			"attempts", attempts,
			"error", err,
		)
		if mErr := r.store.MarkTaskFailed(ctx, task.ID, err.Error()); mErr != nil {
			r.logger.Error("failed to mark task failed", "task_id", task.ID, "error", mErr)
		}
		return
	}

	delay := r.delayFor(attempts)
	r.logger.Warn("task failed, rescheduling",
		"task_id", task.ID,
		"kind", task.Kind,
		"attempt", attempts,
		"retry_in", delay,
		"error", err,
	)
	if rErr := r.store.RescheduleTask(ctx, task.ID, attempts, r.clock.Now().Add(delay), err.Error()); rErr != nil {
		r.logger.Error("failed to reschedule task", "task_id", task.ID, "error", rErr)
	}
}

// release puts a task back on the queue without burning an attempt, used
// when the queue's own bookkeeping (not the handler) failed.
func (r *Runner) release(ctx context.Context, task *core.Task, cause error) {
	r.logger.Error("task bookkeeping failed, releasing claim", "task_id", task.ID, "error", cause)
	if err := r.store.RescheduleTask(ctx, task.ID, task.Attempts, r.clock.Now().Add(r.cfg.PollInterval), cause.Error()); err != nil {
		r.logger.Error("failed to release task claim", "task_id", task.ID, "error", err)
	}
}

// delayFor computes the jittered exponential delay before the given attempt
// number retries.
func (r *Runner) delayFor(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	var delay time.Duration
	for range attempts {
		delay = b.NextBackOff()
	}
	if delay > r.cfg.MaxBackoff {
		delay = r.cfg.MaxBackoff
	}
	return delay
}
