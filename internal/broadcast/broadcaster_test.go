package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup(t *testing.T) (storage.Store, *lifecycle.Machine, *Broadcaster, *core.Interview) {
	t.Helper()
	store := storage.NewMemStore()
	machine := lifecycle.New(store, nil, testLogger())
	b := New(store, machine, nil, 15*time.Minute, testLogger())

	iv := &core.Interview{
		ID:          uuid.New().String(),
		CandidateID: "cand-1",
		ClientID:    "client-1",
		SlotStart:   time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC),
		SlotEnd:     time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
		State:       core.StateDraft,
	}
	require.NoError(t, store.CreateInterview(context.Background(), iv))
	return store, machine, b, iv
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	store, _, b, iv := setup(t)

	invites, err := b.Broadcast(ctx, iv.ID, []string{"ier-1", "ier-2", "ier-3"})
	require.NoError(t, err)
	require.Len(t, invites, 3)

	got, err := store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateBroadcasting, got.State)
	require.NotNil(t, got.BroadcastAt)

	stored, err := store.ListInvitesByInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, inv := range stored {
		assert.Equal(t, core.InvitePending, inv.State)
		assert.Equal(t, i, inv.Rank)
	}

	// One notify task per invite, keyed on the invite.
	tasks, err := store.ClaimDueTasks(ctx, time.Now().UTC(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	keys := make(map[string]bool)
	for _, task := range tasks {
		assert.Equal(t, core.TaskInviteNotify, task.Kind)
		keys[task.IdempotencyKey] = true
	}
	for _, inv := range stored {
		assert.True(t, keys[core.InviteNotifyKey(inv.ID)])
	}
}

func TestBroadcastTokensDecode(t *testing.T) {
	ctx := context.Background()
	store, _, b, iv := setup(t)

	_, err := b.Broadcast(ctx, iv.ID, []string{"ier-1"})
	require.NoError(t, err)

	tasks, err := store.ClaimDueTasks(ctx, time.Now().UTC(), time.Minute, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	var payload core.InviteNotifyPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &payload))

	accept, err := core.DecodeResponseToken(payload.AcceptToken, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, payload.InviteID, accept.InviteID)
	assert.Equal(t, core.ActionAccept, accept.Action)

	reject, err := core.DecodeResponseToken(payload.RejectToken, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, core.ActionReject, reject.Action)
}

func TestBroadcastNoEligibleInterviewers(t *testing.T) {
	ctx := context.Background()
	store, _, b, iv := setup(t)

	_, err := b.Broadcast(ctx, iv.ID, nil)
	assert.ErrorIs(t, err, core.ErrNoEligibleInterviewers)

	// The interview stays in Draft for a manual retry and nothing leaks out.
	got, err := store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateDraft, got.State)

	invites, err := store.ListInvitesByInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Empty(t, invites)
}

func TestBroadcastAlreadyBroadcasting(t *testing.T) {
	ctx := context.Background()
	store, _, b, iv := setup(t)

	_, err := b.Broadcast(ctx, iv.ID, []string{"ier-1"})
	require.NoError(t, err)

	_, err = b.Broadcast(ctx, iv.ID, []string{"ier-2"})
	assert.ErrorIs(t, err, core.ErrAlreadyBroadcasting)

	// The failed second broadcast must not add invites.
	invites, err := store.ListInvitesByInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 1)
}

func TestRebroadcastRequiresExpired(t *testing.T) {
	ctx := context.Background()
	_, _, b, iv := setup(t)

	_, err := b.Rebroadcast(ctx, iv.ID, []string{"ier-1"})
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestRebroadcastAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store, machine, b, iv := setup(t)

	_, err := b.Broadcast(ctx, iv.ID, []string{"ier-1"})
	require.NoError(t, err)

	got, err := store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.NoError(t, machine.Expire(ctx, got))

	invites, err := b.Rebroadcast(ctx, iv.ID, []string{"ier-2", "ier-3"})
	require.NoError(t, err)
	assert.Len(t, invites, 2)

	fresh, err := store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateBroadcasting, fresh.State)
}
