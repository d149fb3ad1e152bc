// Package lifecycle owns the canonical interview state and enforces legal
// transitions. It is the only component that writes Interview.state.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/storage"
)

// legal maps each state to the states reachable from it.
var legal = map[core.InterviewState][]core.InterviewState{
	core.StateDraft:        {core.StateBroadcasting},
	core.StateBroadcasting: {core.StateConfirmed, core.StateExpired},
	core.StateConfirmed:    {core.StateCompleted, core.StateCancelled},
	core.StateExpired:      {core.StateDraft},
}

// Machine performs interview lifecycle transitions. Every transition
// increments the version counter and leaves an audit-trail entry.
type Machine struct {
	store  storage.Store
	clock  core.Clock
	logger *slog.Logger
}

// New creates a lifecycle Machine.
func New(store storage.Store, clock core.Clock, logger *slog.Logger) *Machine {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Machine{store: store, clock: clock, logger: logger}
}

func allowed(from, to core.InterviewState) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BeginBroadcast commits Draft→Broadcasting together with the invite batch
// and the notify tasks in one atomic write, so a partial broadcast is never
// observable. On success iv reflects the new state and version.
func (m *Machine) BeginBroadcast(ctx context.Context, iv *core.Interview, invites []core.Invite, tasks []*core.Task) error {
	if iv.State == core.StateBroadcasting {
		return core.ErrAlreadyBroadcasting
	}
	if !allowed(iv.State, core.StateBroadcasting) {
		return fmt.Errorf("%w: %s → %s", core.ErrIllegalTransition, iv.State, core.StateBroadcasting)
	}

	expected := iv.Version
	now := m.clock.Now()
	next := *iv
	next.State = core.StateBroadcasting
	next.BroadcastAt = &now
	next.Version = expected + 1

	if err := m.store.BroadcastInterview(ctx, &next, expected, invites, tasks); err != nil {
		return err
	}
	*iv = next
	m.logTransition(iv, core.StateDraft)
	return nil
}

// Confirm commits Broadcasting→Confirmed for the winning interviewer under
// the optimistic version guard. Re-confirming an interview already confirmed
// with the same interviewer is a no-op, which makes the arbiter's winner path
// replayable after a crash.
func (m *Machine) Confirm(ctx context.Context, iv *core.Interview, interviewerID string) error {
	if iv.State == core.StateConfirmed && iv.InterviewerID != nil && *iv.InterviewerID == interviewerID {
		return nil
	}
	if !allowed(iv.State, core.StateConfirmed) {
		return fmt.Errorf("%w: %s → %s", core.ErrIllegalTransition, iv.State, core.StateConfirmed)
	}

	expected := iv.Version
	next := *iv
	next.State = core.StateConfirmed
	next.InterviewerID = &interviewerID
	next.Version = expected + 1

	if err := m.store.UpdateInterviewState(ctx, &next, expected, core.StateBroadcasting, "invite accepted"); err != nil {
		return err
	}
	*iv = next
	m.logTransition(iv, core.StateBroadcasting)
	return nil
}

// Expire commits Broadcasting→Expired and marks all still-pending invites
// Expired in the same write.
func (m *Machine) Expire(ctx context.Context, iv *core.Interview) error {
	if iv.State == core.StateExpired {
		return nil
	}
	if !allowed(iv.State, core.StateExpired) {
		return fmt.Errorf("%w: %s → %s", core.ErrIllegalTransition, iv.State, core.StateExpired)
	}

	expected := iv.Version
	next := *iv
	next.State = core.StateExpired
	next.Version = expected + 1

	if err := m.store.ExpireInterview(ctx, &next, expected); err != nil {
		return err
	}
	*iv = next
	m.logTransition(iv, core.StateBroadcasting)
	return nil
}

// ReopenExpired commits Expired→Draft so the interview can be re-broadcast.
func (m *Machine) ReopenExpired(ctx context.Context, iv *core.Interview) error {
	if !allowed(iv.State, core.StateDraft) {
		return fmt.Errorf("%w: %s → %s", core.ErrIllegalTransition, iv.State, core.StateDraft)
	}

	// A winner record can survive expiry when an acceptance and the deadline
	// sweep raced. Once the interview is Expired that win can never complete,
	// and left in place the record would make every invite of the next
	// broadcast lose the winner insert to a dead invite id.
	if err := m.store.DeleteRecord(ctx, core.WinnerKey(iv.ID)); err != nil {
		return fmt.Errorf("clear winner record for interview %s: %w", iv.ID, err)
	}

	expected := iv.Version
	next := *iv
	next.State = core.StateDraft
	next.BroadcastAt = nil
	next.InterviewerID = nil
	next.Version = expected + 1

	if err := m.store.UpdateInterviewState(ctx, &next, expected, core.StateExpired, "reopened for re-broadcast"); err != nil {
		return err
	}
	*iv = next
	m.logTransition(iv, core.StateExpired)
	return nil
}

// Cancel commits Confirmed→Cancelled and queues the cancellation fan-out
// (calendar release plus notices). Cancelling an already-cancelled interview
// is a no-op, not an error; the returned flag reports whether this call
// performed the transition.
func (m *Machine) Cancel(ctx context.Context, iv *core.Interview, reason string) (bool, error) {
	done, err := m.finish(ctx, iv, core.StateCancelled, reason)
	if err != nil || !done {
		return done, err
	}
	return true, m.store.Enqueue(ctx, &core.Task{
		ID:             uuid.New().String(),
		IdempotencyKey: core.CancellationKey(iv.ID),
		Kind:           core.TaskCancellation,
		Payload:        core.MustMarshal(core.CancellationPayload{InterviewID: iv.ID, Reason: reason}),
		NotBefore:      m.clock.Now(),
		Status:         core.TaskPending,
	})
}

// Complete commits Confirmed→Completed and queues the invoice trigger.
// Idempotent like Cancel.
func (m *Machine) Complete(ctx context.Context, iv *core.Interview) (bool, error) {
	done, err := m.finish(ctx, iv, core.StateCompleted, "interview occurred")
	if err != nil || !done {
		return done, err
	}
	return true, m.store.Enqueue(ctx, &core.Task{
		ID:             uuid.New().String(),
		IdempotencyKey: core.InvoiceKey(iv.ID),
		Kind:           core.TaskInvoiceTrigger,
		Payload:        core.MustMarshal(core.InvoicePayload{InterviewID: iv.ID}),
		NotBefore:      m.clock.Now(),
		Status:         core.TaskPending,
	})
}

func (m *Machine) finish(ctx context.Context, iv *core.Interview, to core.InterviewState, reason string) (bool, error) {
	if iv.State == to {
		return false, nil
	}
	if !allowed(iv.State, to) {
		return false, fmt.Errorf("%w: %s → %s", core.ErrIllegalTransition, iv.State, to)
	}

	expected := iv.Version
	next := *iv
	next.State = to
	next.Version = expected + 1

	if err := m.store.UpdateInterviewState(ctx, &next, expected, core.StateConfirmed, reason); err != nil {
		return false, err
	}
	*iv = next
	m.logTransition(iv, core.StateConfirmed)
	return true, nil
}

func (m *Machine) logTransition(iv *core.Interview, from core.InterviewState) {
	m.logger.Info("interview transitioned",
		"interview_id", iv.ID,
		"from", from,
		"to", iv.State,
		"version", iv.Version,
	)
}
