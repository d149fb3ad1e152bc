package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDraft(t *testing.T, store storage.Store) *core.Interview {
	t.Helper()
	iv := &core.Interview{
		ID:          uuid.New().String(),
		CandidateID: "cand-1",
		ClientID:    "client-1",
		SlotStart:   time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC),
		SlotEnd:     time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
		State:       core.StateDraft,
	}
	require.NoError(t, store.CreateInterview(context.Background(), iv))
	return iv
}

func broadcastToConfirmed(t *testing.T, m *Machine, store storage.Store) *core.Interview {
	t.Helper()
	ctx := context.Background()
	iv := newDraft(t, store)
	require.NoError(t, m.BeginBroadcast(ctx, iv, nil, nil))
	require.NoError(t, m.Confirm(ctx, iv, "ier-1"))
	return iv
}

func TestBeginBroadcast(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := newDraft(t, store)
	require.NoError(t, m.BeginBroadcast(ctx, iv, nil, nil))

	assert.Equal(t, core.StateBroadcasting, iv.State)
	assert.Equal(t, int64(1), iv.Version)
	require.NotNil(t, iv.BroadcastAt)

	err := m.BeginBroadcast(ctx, iv, nil, nil)
	assert.ErrorIs(t, err, core.ErrAlreadyBroadcasting)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := newDraft(t, store)
	require.NoError(t, m.BeginBroadcast(ctx, iv, nil, nil))
	require.NoError(t, m.Confirm(ctx, iv, "ier-7"))

	assert.Equal(t, core.StateConfirmed, iv.State)
	require.NotNil(t, iv.InterviewerID)
	assert.Equal(t, "ier-7", *iv.InterviewerID)
	assert.Equal(t, int64(2), iv.Version)

	// Replay with the same winner is a no-op.
	require.NoError(t, m.Confirm(ctx, iv, "ier-7"))
	assert.Equal(t, int64(2), iv.Version)

	// A different interviewer cannot confirm a confirmed interview.
	err := m.Confirm(ctx, iv, "ier-8")
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestConfirmStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := newDraft(t, store)
	require.NoError(t, m.BeginBroadcast(ctx, iv, nil, nil))

	// A concurrent writer advanced the stored version behind our back.
	other, err := store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.NoError(t, m.Expire(ctx, other))

	err = m.Confirm(ctx, iv, "ier-1")
	assert.ErrorIs(t, err, core.ErrStaleTransition)
}

func TestExpireAndReopen(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := newDraft(t, store)
	require.NoError(t, m.BeginBroadcast(ctx, iv, []core.Invite{
		{ID: uuid.New().String(), InterviewID: iv.ID, InterviewerID: "ier-1", State: core.InvitePending},
	}, nil))

	require.NoError(t, m.Expire(ctx, iv))
	assert.Equal(t, core.StateExpired, iv.State)

	invites, err := store.ListInvitesByInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, core.InviteExpired, invites[0].State)

	// Expire replay is a no-op.
	require.NoError(t, m.Expire(ctx, iv))

	require.NoError(t, m.ReopenExpired(ctx, iv))
	assert.Equal(t, core.StateDraft, iv.State)
	assert.Nil(t, iv.BroadcastAt)
}

func TestCancelIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := broadcastToConfirmed(t, m, store)

	changed, err := m.Cancel(ctx, iv, "client request")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, core.StateCancelled, iv.State)

	changed, err = m.Cancel(ctx, iv, "client request again")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCompleteFromCancelledIsIllegal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := broadcastToConfirmed(t, m, store)
	_, err := m.Cancel(ctx, iv, "client request")
	require.NoError(t, err)

	_, err = m.Complete(ctx, iv)
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestTransitionAuditTrail(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	m := New(store, nil, testLogger())

	iv := broadcastToConfirmed(t, m, store)
	_, err := m.Complete(ctx, iv)
	require.NoError(t, err)

	transitions, err := store.ListTransitions(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 3)
	assert.Equal(t, core.StateBroadcasting, transitions[0].ToState)
	assert.Equal(t, core.StateConfirmed, transitions[1].ToState)
	assert.Equal(t, core.StateCompleted, transitions[2].ToState)
	for i, tr := range transitions {
		assert.Equal(t, int64(i+1), tr.Version)
		assert.False(t, tr.CreatedAt.IsZero())
	}
}
