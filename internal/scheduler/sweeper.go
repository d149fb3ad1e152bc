// Package scheduler runs the periodic sweeps that drive time-based
// behavior: broadcast deadline expiry, interview reminders, and task
// retention.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

// Sweeper owns the three recurring sweeps. Every sweep is idempotent and
// safe to overlap with itself on another instance: expiry goes through the
// version-guarded state machine, reminders dedup on their idempotency key,
// and the purge is a plain delete.
type Sweeper struct {
	store   storage.Store
	machine *lifecycle.Machine
	clock   core.Clock
	cfg     config.SchedulerConfig
	logger  *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSweeper creates a Sweeper.
func NewSweeper(store storage.Store, machine *lifecycle.Machine, clock core.Clock, cfg config.SchedulerConfig, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Sweeper{store: store, machine: machine, clock: clock, cfg: cfg, logger: logger}
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.logger.Info("starting sweeper", "interval", s.cfg.SweepInterval)

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("shutting down sweeper")
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Stop shuts the sweep loop down and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SweepOnce runs all three sweeps. Each sweep logs and continues on error so
// one failing interview never starves the rest.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.sweepExpired(ctx)
	s.sweepReminders(ctx)
	s.sweepRetention(ctx)
}

// sweepExpired expires broadcasts whose invite deadline has passed without
// an acceptance.
func (s *Sweeper) sweepExpired(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.InviteDeadline)
	overdue, err := s.store.ListBroadcastingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list overdue broadcasts", "error", err)
		return
	}
	for i := range overdue {
		iv := &overdue[i]
		// A recorded winner means an acceptance already won the insert but
		// has not finished confirming (crash mid-fan-out). That acceptance
		// owns the interview now; expiring it would strand the winner.
		_, won, err := s.store.GetRecord(ctx, core.WinnerKey(iv.ID))
		if err != nil {
			s.logger.Error("failed to check winner record", "interview_id", iv.ID, "error", err)
			continue
		}
		if won {
			s.logger.Warn("skipping expiry, broadcast has a recorded winner awaiting resume",
				"interview_id", iv.ID)
			continue
		}
		err = s.machine.Expire(ctx, iv)
		switch {
		case errors.Is(err, core.ErrStaleTransition), errors.Is(err, core.ErrIllegalTransition):
			// Lost the race to an acceptance or to another sweeper. The
			// interview is in good hands either way.
			continue
		case err != nil:
			s.logger.Error("failed to expire broadcast", "interview_id", iv.ID, "error", err)
		default:
			s.logger.Info("broadcast expired without acceptance", "interview_id", iv.ID)
		}
	}
}

// sweepReminders enqueues the reminder task for every confirmed interview
// that has entered one of the configured lead windows. The deterministic
// idempotency key makes re-enqueueing across sweeps a no-op.
func (s *Sweeper) sweepReminders(ctx context.Context) {
	now := s.clock.Now()
	for label, lead := range s.cfg.ReminderWindows {
		upcoming, err := s.store.ListConfirmedInWindow(ctx, now, now.Add(lead))
		if err != nil {
			s.logger.Error("failed to list upcoming interviews", "window", label, "error", err)
			continue
		}
		for i := range upcoming {
			iv := &upcoming[i]
			task := &core.Task{
				ID:             uuid.New().String(),
				IdempotencyKey: core.ReminderKey(iv.ID, label),
				Kind:           core.TaskReminder,
				Payload:        core.MustMarshal(core.ReminderPayload{InterviewID: iv.ID, Window: label}),
				NotBefore:      now,
				Status:         core.TaskPending,
			}
			if err := s.store.Enqueue(ctx, task); err != nil {
				s.logger.Error("failed to enqueue reminder",
					"interview_id", iv.ID, "window", label, "error", err)
			}
		}
	}
}

// sweepRetention deletes finished tasks past the retention horizon.
func (s *Sweeper) sweepRetention(ctx context.Context) {
	purged, err := s.store.PurgeFinishedTasks(ctx, s.clock.Now().Add(-s.cfg.TaskRetention))
	if err != nil {
		s.logger.Error("failed to purge finished tasks", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged finished tasks", "count", purged)
	}
}
