// Package arbiter resolves the acceptance race: many interviewers may accept
// the same slot concurrently, and exactly one acceptance is honored.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

// Outcome reports how an acceptance resolved.
type Outcome struct {
	Won             bool
	InterviewID     string
	WinningInviteID string
}

// Arbiter is the race-resolution engine. Its correctness rests on one atomic
// insert-if-absent per interview plus idempotent, replayable downstream
// steps; no row locks and no cross-process mutex.
type Arbiter struct {
	store   storage.Store
	machine *lifecycle.Machine
	clock   core.Clock
	// gap is the minimum distance required between two confirmed interviews
	// for the same interviewer.
	gap    time.Duration
	logger *slog.Logger
}

// New creates an Arbiter.
func New(store storage.Store, machine *lifecycle.Machine, clock core.Clock, gap time.Duration, logger *slog.Logger) *Arbiter {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Arbiter{store: store, machine: machine, clock: clock, gap: gap, logger: logger}
}

// ResolveAccept processes one "accept" response for an invite.
//
// The single linearization point is the insert-if-absent under the
// interview's winner key: exactly one concurrent caller observes "absent"
// and wins. Every step after the insert is an idempotent no-op on replay, so
// a crash anywhere in the winner path is recovered by calling ResolveAccept
// again with the same invite id.
func (a *Arbiter) ResolveAccept(ctx context.Context, inviteID string) (*Outcome, error) {
	invite, err := a.store.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	iv, err := a.store.GetInterview(ctx, invite.InterviewID)
	if err != nil {
		return nil, err
	}
	winnerKey := core.WinnerKey(iv.ID)

	// Resume path: a previous call with this invite already won the insert
	// but may have crashed before finishing the fan-out.
	if rec, ok, err := a.store.GetRecord(ctx, winnerKey); err != nil {
		return nil, err
	} else if ok && rec.Value == invite.ID {
		return a.completeWin(ctx, iv, invite)
	}

	if invite.State != core.InvitePending {
		return nil, core.ErrInviteNotPending
	}

	busy, err := a.store.HasConfirmedOverlap(ctx, invite.InterviewerID,
		iv.SlotStart.Add(-a.gap), iv.SlotEnd.Add(a.gap))
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, core.ErrInterviewerBusy
	}

	winner, inserted, err := a.store.PutIfAbsent(ctx, winnerKey, invite.ID)
	if err != nil {
		return nil, err
	}
	if winner == invite.ID {
		if inserted {
			a.logger.Info("acceptance won the race", "interview_id", iv.ID, "invite_id", invite.ID)
		}
		return a.completeWin(ctx, iv, invite)
	}

	// Lost the race. Mark this invite rejected unless a concurrent call
	// already moved it, and let the interviewer know the slot is gone.
	now := a.clock.Now()
	if _, err := a.store.TransitionInvite(ctx, invite.ID, core.InvitePending, core.InviteRejected, &now); err != nil {
		return nil, err
	}
	if err := a.enqueueSlotTaken(ctx, iv.ID, invite); err != nil {
		return nil, err
	}
	a.logger.Info("acceptance lost the race",
		"interview_id", iv.ID, "invite_id", invite.ID, "winning_invite_id", winner)
	return &Outcome{Won: false, InterviewID: iv.ID, WinningInviteID: winner}, nil
}

// ResolveReject processes an explicit decline. It never touches the race.
func (a *Arbiter) ResolveReject(ctx context.Context, inviteID string) error {
	invite, err := a.store.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	now := a.clock.Now()
	applied, err := a.store.TransitionInvite(ctx, invite.ID, core.InvitePending, core.InviteRejected, &now)
	if err != nil {
		return err
	}
	if !applied {
		return core.ErrInviteNotPending
	}
	a.logger.Info("invite declined", "interview_id", invite.InterviewID, "invite_id", invite.ID)
	return nil
}

// completeWin drives the winner's sub-steps. Each one is idempotent, so the
// sequence can be replayed from any point.
func (a *Arbiter) completeWin(ctx context.Context, iv *core.Interview, invite *core.Invite) (*Outcome, error) {
	// Lifecycle transition under the optimistic version guard. A stale read
	// is retried against fresh state; a replay that finds the interview
	// already confirmed with this interviewer is a no-op inside Confirm.
	for {
		err := a.machine.Confirm(ctx, iv, invite.InterviewerID)
		if err == nil {
			break
		}
		if errors.Is(err, core.ErrStaleTransition) {
			fresh, readErr := a.store.GetInterview(ctx, iv.ID)
			if readErr != nil {
				return nil, readErr
			}
			iv = fresh
			continue
		}
		// The interview moved somewhere acceptance can't follow, e.g. the
		// deadline sweep expired it between the insert and the transition.
		if errors.Is(err, core.ErrIllegalTransition) {
			return nil, core.ErrInviteNotPending
		}
		return nil, err
	}

	now := a.clock.Now()
	if _, err := a.store.TransitionInvite(ctx, invite.ID, core.InvitePending, core.InviteAccepted, &now); err != nil {
		return nil, err
	}

	invites, err := a.store.ListInvitesByInterview(ctx, iv.ID)
	if err != nil {
		return nil, err
	}
	for _, other := range invites {
		if other.ID == invite.ID {
			continue
		}
		if other.State == core.InvitePending {
			if _, err := a.store.TransitionInvite(ctx, other.ID, core.InvitePending, core.InviteSuperseded, nil); err != nil {
				return nil, err
			}
			other.State = core.InviteSuperseded
		}
		// Superseded covers both this call's work and an earlier crashed
		// attempt's; the enqueue dedups on the invite's slot-taken key.
		if other.State == core.InviteSuperseded {
			if err := a.enqueueSlotTaken(ctx, iv.ID, &other); err != nil {
				return nil, err
			}
		}
	}

	if err := a.store.Enqueue(ctx, &core.Task{
		ID:             uuid.New().String(),
		IdempotencyKey: core.BookingKey(iv.ID),
		Kind:           core.TaskBooking,
		Payload:        core.MustMarshal(core.BookingPayload{InterviewID: iv.ID}),
		NotBefore:      now,
		Status:         core.TaskPending,
	}); err != nil {
		return nil, err
	}
	if err := a.store.Enqueue(ctx, &core.Task{
		ID:             uuid.New().String(),
		IdempotencyKey: core.ConfirmNotifyKey(iv.ID),
		Kind:           core.TaskConfirmNotify,
		Payload:        core.MustMarshal(core.ConfirmNotifyPayload{InterviewID: iv.ID, InviteID: invite.ID}),
		NotBefore:      now,
		Status:         core.TaskPending,
	}); err != nil {
		return nil, err
	}

	return &Outcome{Won: true, InterviewID: iv.ID, WinningInviteID: invite.ID}, nil
}

func (a *Arbiter) enqueueSlotTaken(ctx context.Context, interviewID string, invite *core.Invite) error {
	task := &core.Task{
		ID:             uuid.New().String(),
		IdempotencyKey: core.SlotTakenKey(invite.ID),
		Kind:           core.TaskSlotTakenNotify,
		Payload: core.MustMarshal(core.SlotTakenPayload{
			InviteID:      invite.ID,
			InterviewID:   interviewID,
			InterviewerID: invite.InterviewerID,
		}),
		NotBefore: a.clock.Now(),
		Status:    core.TaskPending,
	}
	if err := a.store.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue slot-taken notification for invite %s: %w", invite.ID, err)
	}
	return nil
}
