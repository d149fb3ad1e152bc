package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
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

type fixture struct {
	store   storage.Store
	machine *lifecycle.Machine
	arbiter *Arbiter
	iv      *core.Interview
	invites []core.Invite
}

// newFixture creates an interview broadcast to the given interviewers.
func newFixture(t *testing.T, interviewers ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemStore()
	machine := lifecycle.New(store, nil, testLogger())

	iv := &core.Interview{
		ID:          uuid.New().String(),
		CandidateID: "cand-1",
		ClientID:    "client-1",
		SlotStart:   time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC),
		SlotEnd:     time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
		State:       core.StateDraft,
	}
	require.NoError(t, store.CreateInterview(ctx, iv))

	invites := make([]core.Invite, 0, len(interviewers))
	for rank, id := range interviewers {
		invites = append(invites, core.Invite{
			ID:            uuid.New().String(),
			InterviewID:   iv.ID,
			InterviewerID: id,
			State:         core.InvitePending,
			Rank:          rank,
			CreatedAt:     time.Now().UTC(),
		})
	}
	require.NoError(t, machine.BeginBroadcast(ctx, iv, invites, nil))

	return &fixture{
		store:   store,
		machine: machine,
		arbiter: New(store, machine, nil, time.Hour, testLogger()),
		iv:      iv,
		invites: invites,
	}
}

func (f *fixture) inviteStates(t *testing.T) map[string]core.InviteState {
	t.Helper()
	invites, err := f.store.ListInvitesByInterview(context.Background(), f.iv.ID)
	require.NoError(t, err)
	states := make(map[string]core.InviteState, len(invites))
	for _, inv := range invites {
		states[inv.InterviewerID] = inv.State
	}
	return states
}

// Scenario A: Y accepts first, X and Z are superseded, and a later accept
// from X reports the slot as taken.
func TestScenarioFirstAcceptWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y", "Z")

	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[1].ID)
	require.NoError(t, err)
	assert.True(t, outcome.Won)
	assert.Equal(t, f.invites[1].ID, outcome.WinningInviteID)

	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateConfirmed, iv.State)
	require.NotNil(t, iv.InterviewerID)
	assert.Equal(t, "Y", *iv.InterviewerID)

	states := f.inviteStates(t)
	assert.Equal(t, core.InviteAccepted, states["Y"])
	assert.Equal(t, core.InviteSuperseded, states["X"])
	assert.Equal(t, core.InviteSuperseded, states["Z"])

	_, err = f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	assert.ErrorIs(t, err, core.ErrInviteNotPending)
}

// Scenario B generalized: arbitrary concurrent accepts, including duplicates,
// end with exactly one accepted invite and a confirmed interview.
func TestExactlyOneWinnerUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	interviewers := make([]string, 8)
	for i := range interviewers {
		interviewers[i] = fmt.Sprintf("ier-%d", i)
	}
	f := newFixture(t, interviewers...)

	const callsPerInvite = 3
	var wg sync.WaitGroup
	for _, invite := range f.invites {
		for range callsPerInvite {
			wg.Add(1)
			go func(inviteID string) {
				defer wg.Done()
				_, _ = f.arbiter.ResolveAccept(ctx, inviteID)
			}(invite.ID)
		}
	}
	wg.Wait()

	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateConfirmed, iv.State)
	require.NotNil(t, iv.InterviewerID)

	var accepted int
	for _, state := range f.inviteStates(t) {
		switch state {
		case core.InviteAccepted:
			accepted++
		case core.InviteRejected, core.InviteSuperseded:
		default:
			t.Fatalf("unexpected invite state %s", state)
		}
	}
	assert.Equal(t, 1, accepted)

	// The recorded winner matches the confirmed interviewer.
	rec, ok, err := f.store.GetRecord(ctx, core.WinnerKey(f.iv.ID))
	require.NoError(t, err)
	require.True(t, ok)
	winner, err := f.store.GetInvite(ctx, rec.Value)
	require.NoError(t, err)
	assert.Equal(t, *iv.InterviewerID, winner.InterviewerID)
}

func TestLoserIsRejectedAndNotified(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	_, err := f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	require.NoError(t, err)

	// Simulate Y's accept arriving after X's supersede was already applied:
	// reset Y to pending as if the fan-out had not reached it yet.
	applied, err := f.store.TransitionInvite(ctx, f.invites[1].ID, core.InviteSuperseded, core.InvitePending, nil)
	require.NoError(t, err)
	require.True(t, applied)

	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[1].ID)
	require.NoError(t, err)
	assert.False(t, outcome.Won)
	assert.Equal(t, f.invites[0].ID, outcome.WinningInviteID)

	states := f.inviteStates(t)
	assert.Equal(t, core.InviteRejected, states["Y"])
}

func TestDuplicateWinningDeliveryIsANoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	first, err := f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	require.NoError(t, err)
	require.True(t, first.Won)

	tasksBefore, err := f.store.ListRecentTasks(ctx, 100)
	require.NoError(t, err)

	second, err := f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	require.NoError(t, err)
	assert.True(t, second.Won)

	tasksAfter, err := f.store.ListRecentTasks(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, tasksAfter, len(tasksBefore))

	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateConfirmed, iv.State)
}

// Crash-resume: the process died right after winning the idempotency insert.
// A retry with the same invite id must complete every remaining sub-step.
func TestCrashAfterWinnerInsertResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y", "Z")

	// The "crashed" attempt got exactly as far as the winner insert.
	_, inserted, err := f.store.PutIfAbsent(ctx, core.WinnerKey(f.iv.ID), f.invites[2].ID)
	require.NoError(t, err)
	require.True(t, inserted)

	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[2].ID)
	require.NoError(t, err)
	assert.True(t, outcome.Won)

	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateConfirmed, iv.State)
	require.NotNil(t, iv.InterviewerID)
	assert.Equal(t, "Z", *iv.InterviewerID)

	states := f.inviteStates(t)
	assert.Equal(t, core.InviteAccepted, states["Z"])
	assert.Equal(t, core.InviteSuperseded, states["X"])
	assert.Equal(t, core.InviteSuperseded, states["Y"])

	// Booking and confirmation fan-out happened exactly once.
	tasks, err := f.store.ListRecentTasks(ctx, 100)
	require.NoError(t, err)
	kinds := make(map[core.TaskKind]int)
	for _, task := range tasks {
		kinds[task.Kind]++
	}
	assert.Equal(t, 1, kinds[core.TaskBooking])
	assert.Equal(t, 1, kinds[core.TaskConfirmNotify])
	assert.Equal(t, 2, kinds[core.TaskSlotTakenNotify])
}

// Crash-resume later in the sequence: confirmed and accepted, but the
// supersede fan-out never ran.
func TestCrashBeforeSupersedeResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	_, _, err := f.store.PutIfAbsent(ctx, core.WinnerKey(f.iv.ID), f.invites[0].ID)
	require.NoError(t, err)
	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	require.NoError(t, f.machine.Confirm(ctx, iv, "X"))
	now := time.Now().UTC()
	_, err = f.store.TransitionInvite(ctx, f.invites[0].ID, core.InvitePending, core.InviteAccepted, &now)
	require.NoError(t, err)

	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	require.NoError(t, err)
	assert.True(t, outcome.Won)

	states := f.inviteStates(t)
	assert.Equal(t, core.InviteAccepted, states["X"])
	assert.Equal(t, core.InviteSuperseded, states["Y"])
}

func TestBusyInterviewerCannotWin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	// X already holds a confirmed interview 30 minutes after this slot,
	// inside the 1-hour gap.
	conflicting := &core.Interview{
		ID:            uuid.New().String(),
		CandidateID:   "cand-2",
		ClientID:      "client-2",
		SlotStart:     f.iv.SlotEnd.Add(30 * time.Minute),
		SlotEnd:       f.iv.SlotEnd.Add(90 * time.Minute),
		State:         core.StateConfirmed,
		InterviewerID: ptr("X"),
	}
	require.NoError(t, f.store.CreateInterview(ctx, conflicting))

	_, err := f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	assert.ErrorIs(t, err, core.ErrInterviewerBusy)

	// The race is still open for Y.
	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[1].ID)
	require.NoError(t, err)
	assert.True(t, outcome.Won)
}

func TestAcceptAfterExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X")

	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	require.NoError(t, f.machine.Expire(ctx, iv))

	_, err = f.arbiter.ResolveAccept(ctx, f.invites[0].ID)
	assert.ErrorIs(t, err, core.ErrInviteNotPending)
}

// A winner record can be stranded when the winner insert and the deadline
// expiry race: the expired interview can never be confirmed, and reopening
// it must clear the record so the next broadcast's race starts fresh.
func TestReopenAfterStrandedWinnerRecordAllowsNewWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	// Y's accept won the insert, then the deadline expiry committed before
	// the confirm could.
	_, inserted, err := f.store.PutIfAbsent(ctx, core.WinnerKey(f.iv.ID), f.invites[1].ID)
	require.NoError(t, err)
	require.True(t, inserted)
	iv, err := f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	require.NoError(t, f.machine.Expire(ctx, iv))

	// The stranded win cannot complete against an expired interview.
	_, err = f.arbiter.ResolveAccept(ctx, f.invites[1].ID)
	assert.ErrorIs(t, err, core.ErrInviteNotPending)

	// Reopen and send the slot out again to a fresh interviewer.
	iv, err = f.store.GetInterview(ctx, f.iv.ID)
	require.NoError(t, err)
	require.NoError(t, f.machine.ReopenExpired(ctx, iv))
	fresh := []core.Invite{{
		ID:            uuid.New().String(),
		InterviewID:   iv.ID,
		InterviewerID: "Z",
		State:         core.InvitePending,
		CreatedAt:     time.Now().UTC(),
	}}
	require.NoError(t, f.machine.BeginBroadcast(ctx, iv, fresh, nil))

	// The old record is gone, so the new invite can win outright.
	outcome, err := f.arbiter.ResolveAccept(ctx, fresh[0].ID)
	require.NoError(t, err)
	assert.True(t, outcome.Won)
	assert.Equal(t, fresh[0].ID, outcome.WinningInviteID)

	got, err := f.store.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateConfirmed, got.State)
	require.NotNil(t, got.InterviewerID)
	assert.Equal(t, "Z", *got.InterviewerID)
}

func TestResolveReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "X", "Y")

	require.NoError(t, f.arbiter.ResolveReject(ctx, f.invites[0].ID))
	states := f.inviteStates(t)
	assert.Equal(t, core.InviteRejected, states["X"])
	assert.Equal(t, core.InvitePending, states["Y"])

	err := f.arbiter.ResolveReject(ctx, f.invites[0].ID)
	assert.ErrorIs(t, err, core.ErrInviteNotPending)

	// A declined interviewer's invite stays rejected even after another
	// invite wins; the winner fan-out must not resurrect it.
	outcome, err := f.arbiter.ResolveAccept(ctx, f.invites[1].ID)
	require.NoError(t, err)
	require.True(t, outcome.Won)
	assert.Equal(t, core.InviteRejected, f.inviteStates(t)["X"])
}

func ptr(s string) *string { return &s }
