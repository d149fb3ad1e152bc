// Package storage provides the persistence layer for interviews, invites,
// tasks, and idempotency records.
package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/hireflow/interview-core/internal/core"
)

// Store defines the interface for all database operations.
//
// Write ownership follows the single-writer rule: the lifecycle machine is
// the only caller of the interview-state writes, the arbiter of the invite
// writes, and the worker pool of the task status writes. The idempotency
// table is the only genuinely atomic primitive; PutIfAbsent is its one write.
type Store interface {
	// Interviews.
	CreateInterview(ctx context.Context, iv *core.Interview) error
	GetInterview(ctx context.Context, id string) (*core.Interview, error)
	// UpdateInterviewState persists a lifecycle transition guarded by the
	// optimistic version check and records the audit-trail entry in the same
	// transaction. Returns core.ErrStaleTransition when expectedVersion no
	// longer matches.
	UpdateInterviewState(ctx context.Context, iv *core.Interview, expectedVersion int64, from core.InterviewState, reason string) error
	SetInterviewBooking(ctx context.Context, id, joinLink, externalEventID string) error
	ListConfirmedInWindow(ctx context.Context, from, to time.Time) ([]core.Interview, error)
	ListBroadcastingBefore(ctx context.Context, cutoff time.Time) ([]core.Interview, error)
	HasConfirmedOverlap(ctx context.Context, interviewerID string, from, to time.Time) (bool, error)
	ListTransitions(ctx context.Context, interviewID string) ([]core.Transition, error)

	// BroadcastInterview commits the broadcast batch atomically: the
	// Draft→Broadcasting transition, the full invite set, and the notify
	// tasks. A partial broadcast is never observable.
	BroadcastInterview(ctx context.Context, iv *core.Interview, expectedVersion int64, invites []core.Invite, tasks []*core.Task) error

	// ExpireInterview commits the deadline expiry atomically: the
	// Broadcasting→Expired transition plus all still-pending invites.
	ExpireInterview(ctx context.Context, iv *core.Interview, expectedVersion int64) error

	// Invites.
	GetInvite(ctx context.Context, id string) (*core.Invite, error)
	ListInvitesByInterview(ctx context.Context, interviewID string) ([]core.Invite, error)
	// TransitionInvite moves an invite from one state to another and reports
	// whether the write applied. A false return with nil error means the
	// invite was no longer in the expected state, which callers treat as an
	// already-done replay.
	TransitionInvite(ctx context.Context, id string, from, to core.InviteState, respondedAt *time.Time) (bool, error)

	// Idempotency. PutIfAbsent is a single atomic insert-if-absent: the
	// first writer for a key wins, and every caller observes the winning
	// value. The inserted return reports whether this call was the winner.
	PutIfAbsent(ctx context.Context, key, value string) (value_ string, inserted bool, err error)
	GetRecord(ctx context.Context, key string) (*core.IdempotencyRecord, bool, error)
	// DeleteRecord removes a key so a later PutIfAbsent can win again. Its
	// one caller is the Expired→Draft reopen, which must not let the previous
	// broadcast's winner record outlive the race it decided.
	DeleteRecord(ctx context.Context, key string) error

	// Tasks. Enqueue is idempotent on the task's idempotency key.
	Enqueue(ctx context.Context, task *core.Task) error
	// ClaimDueTasks leases up to limit runnable tasks until now+lease.
	// A crashed worker's lease lapses and the task becomes claimable again,
	// which is where at-least-once delivery comes from.
	ClaimDueTasks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]core.Task, error)
	MarkTaskSucceeded(ctx context.Context, id string) error
	RescheduleTask(ctx context.Context, id string, attempts int, notBefore time.Time, lastError string) error
	MarkTaskFailed(ctx context.Context, id string, lastError string) error
	PurgeFinishedTasks(ctx context.Context, olderThan time.Time) (int64, error)
	ListRecentTasks(ctx context.Context, limit int) ([]core.Task, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}
