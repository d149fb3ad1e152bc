package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireflow/interview-core/internal/core"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPutIfAbsentFirstWriterWins(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs("interview:iv-1:winner", "inv-7", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	value, inserted, err := store.PutIfAbsent(context.Background(), "interview:iv-1:winner", "inv-7")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "inv-7", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutIfAbsentLoserReadsStoredValue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs("interview:iv-1:winner", "inv-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT value FROM idempotency_records").
		WithArgs("interview:iv-1:winner").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("inv-7"))

	value, inserted, err := store.PutIfAbsent(context.Background(), "interview:iv-1:winner", "inv-9")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "inv-7", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordMissingIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM idempotency_records").
		WithArgs("task:x:done").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "created_at"}))

	rec, found, err := store.GetRecord(context.Background(), "task:x:done")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRecordClearsKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM idempotency_records").
		WithArgs("interview:iv-1:winner").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteRecord(context.Background(), "interview:iv-1:winner"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimDueTasksLeasesRows(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	lease := time.Minute
	until := now.Add(lease)

	cols := []string{
		"id", "idempotency_key", "kind", "payload", "attempts",
		"not_before", "status", "last_error", "claimed_until", "created_at", "updated_at",
	}
	mock.ExpectQuery("UPDATE tasks SET claimed_until").
		WithArgs(now, until, string(core.TaskPending), 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t-1", "invite:inv-1:notify", string(core.TaskInviteNotify), []byte(`{}`), 0,
				now.Add(-time.Minute), string(core.TaskPending), "", until, now, now))

	tasks, err := store.ClaimDueTasks(context.Background(), now, lease, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t-1", tasks[0].ID)
	assert.Equal(t, core.TaskInviteNotify, tasks[0].Kind)
	require.NotNil(t, tasks[0].ClaimedUntil)
	assert.Equal(t, until, *tasks[0].ClaimedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDuplicateKeyIsANoOp(t *testing.T) {
	store, mock := newMockStore(t)

	task := &core.Task{
		ID:             "t-1",
		IdempotencyKey: "interview:iv-1:book",
		Kind:           core.TaskBooking,
		Payload:        []byte(`{}`),
		NotBefore:      time.Now().UTC(),
		Status:         core.TaskPending,
	}
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(task.ID, task.IdempotencyKey, string(task.Kind), task.Payload,
			task.Attempts, task.NotBefore, string(task.Status), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Enqueue(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInterviewStateStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE interviews").
		WithArgs("iv-1", int64(3), string(core.StateConfirmed), "ier-1", sqlmock.AnyArg(), int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	interviewer := "ier-1"
	iv := &core.Interview{ID: "iv-1", State: core.StateConfirmed, InterviewerID: &interviewer, Version: 4}
	err := store.UpdateInterviewState(context.Background(), iv, 3, core.StateBroadcasting, "accepted")
	assert.ErrorIs(t, err, core.ErrStaleTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInterviewStateCommitsTransitionRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE interviews").
		WithArgs("iv-1", int64(3), string(core.StateConfirmed), "ier-1", sqlmock.AnyArg(), int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO interview_transitions").
		WithArgs("iv-1", string(core.StateBroadcasting), string(core.StateConfirmed), int64(4), "accepted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	interviewer := "ier-1"
	iv := &core.Interview{ID: "iv-1", State: core.StateConfirmed, InterviewerID: &interviewer, Version: 4}
	err := store.UpdateInterviewState(context.Background(), iv, 3, core.StateBroadcasting, "accepted")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasConfirmedOverlap(t *testing.T) {
	store, mock := newMockStore(t)

	from := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ier-1", string(core.StateConfirmed), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := store.HasConfirmedOverlap(context.Background(), "ier-1", from, to)
	require.NoError(t, err)
	assert.True(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeFinishedTasksReportsCount(t *testing.T) {
	store, mock := newMockStore(t)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM tasks").
		WithArgs(string(core.TaskSucceeded), string(core.TaskFailedPermanent), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.PurgeFinishedTasks(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
