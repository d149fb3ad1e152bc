// Package broadcast creates the invite batch that offers one interview slot
// to every eligible interviewer at once.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

// Broadcaster fans an interview slot out to a confirmed-eligible interviewer
// set. It builds the invite records and their notify tasks and hands them to
// the lifecycle machine for the atomic Draft→Broadcasting commit.
type Broadcaster struct {
	store          storage.Store
	machine        *lifecycle.Machine
	clock          core.Clock
	inviteDeadline time.Duration
	logger         *slog.Logger
}

// New creates a Broadcaster. inviteDeadline bounds how long the accept and
// reject links stay valid; it matches the lifecycle response deadline.
func New(store storage.Store, machine *lifecycle.Machine, clock core.Clock, inviteDeadline time.Duration, logger *slog.Logger) *Broadcaster {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Broadcaster{
		store:          store,
		machine:        machine,
		clock:          clock,
		inviteDeadline: inviteDeadline,
		logger:         logger,
	}
}

// Broadcast offers the interview's slot to every interviewer in the eligible
// set. The set's order is advisory priority only. Either the full invite
// batch is committed together with the Broadcasting transition and the notify
// tasks, or nothing is.
func (b *Broadcaster) Broadcast(ctx context.Context, interviewID string, interviewerIDs []string) ([]core.Invite, error) {
	if len(interviewerIDs) == 0 {
		return nil, core.ErrNoEligibleInterviewers
	}

	iv, err := b.store.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	invites, tasks := b.buildBatch(iv, interviewerIDs)
	if err := b.machine.BeginBroadcast(ctx, iv, invites, tasks); err != nil {
		return nil, err
	}

	b.logger.Info("broadcast committed",
		"interview_id", iv.ID,
		"invites", len(invites),
		"deadline", b.inviteDeadline,
	)
	return invites, nil
}

// Rebroadcast reopens an expired interview and runs a fresh broadcast. This
// is the explicit recovery path; Broadcast itself never re-broadcasts.
func (b *Broadcaster) Rebroadcast(ctx context.Context, interviewID string, interviewerIDs []string) ([]core.Invite, error) {
	if len(interviewerIDs) == 0 {
		return nil, core.ErrNoEligibleInterviewers
	}

	iv, err := b.store.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.State != core.StateExpired {
		return nil, fmt.Errorf("%w: rebroadcast requires an expired interview, got %s",
			core.ErrIllegalTransition, iv.State)
	}
	if err := b.machine.ReopenExpired(ctx, iv); err != nil {
		return nil, err
	}

	invites, tasks := b.buildBatch(iv, interviewerIDs)
	if err := b.machine.BeginBroadcast(ctx, iv, invites, tasks); err != nil {
		return nil, err
	}

	b.logger.Info("rebroadcast committed", "interview_id", iv.ID, "invites", len(invites))
	return invites, nil
}

func (b *Broadcaster) buildBatch(iv *core.Interview, interviewerIDs []string) ([]core.Invite, []*core.Task) {
	now := b.clock.Now()
	expiry := now.Add(b.inviteDeadline)

	invites := make([]core.Invite, 0, len(interviewerIDs))
	tasks := make([]*core.Task, 0, len(interviewerIDs))
	for rank, interviewerID := range interviewerIDs {
		invite := core.Invite{
			ID:            uuid.New().String(),
			InterviewID:   iv.ID,
			InterviewerID: interviewerID,
			State:         core.InvitePending,
			Rank:          rank,
			CreatedAt:     now,
		}
		invites = append(invites, invite)

		payload := core.InviteNotifyPayload{
			InviteID:      invite.ID,
			InterviewID:   iv.ID,
			InterviewerID: interviewerID,
			AcceptToken:   core.ResponseToken{InviteID: invite.ID, Action: core.ActionAccept, ExpiresAt: expiry}.Encode(),
			RejectToken:   core.ResponseToken{InviteID: invite.ID, Action: core.ActionReject, ExpiresAt: expiry}.Encode(),
			SlotStart:     iv.SlotStart,
			SlotEnd:       iv.SlotEnd,
		}
		tasks = append(tasks, &core.Task{
			ID:             uuid.New().String(),
			IdempotencyKey: core.InviteNotifyKey(invite.ID),
			Kind:           core.TaskInviteNotify,
			Payload:        core.MustMarshal(payload),
			NotBefore:      now,
			Status:         core.TaskPending,
		})
	}
	return invites, tasks
}
