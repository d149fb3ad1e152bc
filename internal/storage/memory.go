package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hireflow/interview-core/internal/core"
)

// memStore is an in-memory Store used by tests and by CLI dry runs. A single
// mutex stands in for the database's atomicity; PutIfAbsent keeps the same
// first-writer-wins contract as the Postgres implementation.
type memStore struct {
	mu          sync.Mutex
	interviews  map[string]*core.Interview
	invites     map[string]*core.Invite
	tasks       map[string]*core.Task // keyed by idempotency key
	records     map[string]*core.IdempotencyRecord
	transitions map[string][]core.Transition
}

// NewMemStore creates an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{
		interviews:  make(map[string]*core.Interview),
		invites:     make(map[string]*core.Invite),
		tasks:       make(map[string]*core.Task),
		records:     make(map[string]*core.IdempotencyRecord),
		transitions: make(map[string][]core.Transition),
	}
}

func (m *memStore) CreateInterview(_ context.Context, iv *core.Interview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *iv
	m.interviews[iv.ID] = &cp
	return nil
}

func (m *memStore) GetInterview(_ context.Context, id string) (*core.Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, core.ErrInterviewNotFound
	}
	cp := *iv
	return &cp, nil
}

func (m *memStore) UpdateInterviewState(_ context.Context, iv *core.Interview, expectedVersion int64, from core.InterviewState, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateInterviewLocked(iv, expectedVersion, from, reason)
}

func (m *memStore) updateInterviewLocked(iv *core.Interview, expectedVersion int64, from core.InterviewState, reason string) error {
	stored, ok := m.interviews[iv.ID]
	if !ok {
		return core.ErrInterviewNotFound
	}
	if stored.Version != expectedVersion {
		return core.ErrStaleTransition
	}
	// Touch only the columns the SQL UPDATE touches; booking details written
	// by SetInterviewBooking must survive a lifecycle transition.
	stored.State = iv.State
	stored.InterviewerID = iv.InterviewerID
	stored.BroadcastAt = iv.BroadcastAt
	stored.Version = iv.Version
	stored.UpdatedAt = time.Now().UTC()
	m.transitions[iv.ID] = append(m.transitions[iv.ID], core.Transition{
		InterviewID: iv.ID,
		FromState:   from,
		ToState:     iv.State,
		Version:     iv.Version,
		Reason:      reason,
		CreatedAt:   stored.UpdatedAt,
	})
	return nil
}

func (m *memStore) SetInterviewBooking(_ context.Context, id, joinLink, externalEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return core.ErrInterviewNotFound
	}
	iv.MeetingLink = joinLink
	iv.CalendarEventID = externalEventID
	return nil
}

func (m *memStore) ListConfirmedInWindow(_ context.Context, from, to time.Time) ([]core.Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Interview
	for _, iv := range m.interviews {
		if iv.State == core.StateConfirmed && !iv.SlotStart.Before(from) && iv.SlotStart.Before(to) {
			out = append(out, *iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

func (m *memStore) ListBroadcastingBefore(_ context.Context, cutoff time.Time) ([]core.Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Interview
	for _, iv := range m.interviews {
		if iv.State == core.StateBroadcasting && iv.BroadcastAt != nil && iv.BroadcastAt.Before(cutoff) {
			out = append(out, *iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BroadcastAt.Before(*out[j].BroadcastAt) })
	return out, nil
}

func (m *memStore) HasConfirmedOverlap(_ context.Context, interviewerID string, from, to time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range m.interviews {
		if iv.State != core.StateConfirmed || iv.InterviewerID == nil || *iv.InterviewerID != interviewerID {
			continue
		}
		if iv.SlotStart.Before(to) && iv.SlotEnd.After(from) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListTransitions(_ context.Context, interviewID string) ([]core.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transition(nil), m.transitions[interviewID]...), nil
}

func (m *memStore) BroadcastInterview(_ context.Context, iv *core.Interview, expectedVersion int64, invites []core.Invite, tasks []*core.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateInterviewLocked(iv, expectedVersion, core.StateDraft, "broadcast"); err != nil {
		return err
	}
	for _, inv := range invites {
		cp := inv
		m.invites[inv.ID] = &cp
	}
	for _, task := range tasks {
		m.enqueueLocked(task)
	}
	return nil
}

func (m *memStore) ExpireInterview(_ context.Context, iv *core.Interview, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateInterviewLocked(iv, expectedVersion, core.StateBroadcasting, "response deadline passed"); err != nil {
		return err
	}
	for _, inv := range m.invites {
		if inv.InterviewID == iv.ID && inv.State == core.InvitePending {
			inv.State = core.InviteExpired
		}
	}
	return nil
}

func (m *memStore) GetInvite(_ context.Context, id string) (*core.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return nil, core.ErrInviteNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) ListInvitesByInterview(_ context.Context, interviewID string) ([]core.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Invite
	for _, inv := range m.invites {
		if inv.InterviewID == interviewID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (m *memStore) TransitionInvite(_ context.Context, id string, from, to core.InviteState, respondedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok || inv.State != from {
		return false, nil
	}
	inv.State = to
	if respondedAt != nil {
		inv.RespondedAt = respondedAt
	}
	return true, nil
}

func (m *memStore) PutIfAbsent(_ context.Context, key, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok {
		return rec.Value, false, nil
	}
	m.records[key] = &core.IdempotencyRecord{Key: key, Value: value, CreatedAt: time.Now().UTC()}
	return value, true, nil
}

func (m *memStore) GetRecord(_ context.Context, key string) (*core.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (m *memStore) DeleteRecord(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *memStore) Enqueue(_ context.Context, task *core.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueLocked(task)
	return nil
}

func (m *memStore) enqueueLocked(task *core.Task) {
	if _, ok := m.tasks[task.IdempotencyKey]; ok {
		return
	}
	cp := *task
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	m.tasks[task.IdempotencyKey] = &cp
}

func (m *memStore) ClaimDueTasks(_ context.Context, now time.Time, lease time.Duration, limit int) ([]core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*core.Task
	for _, task := range m.tasks {
		if task.Status != core.TaskPending || task.NotBefore.After(now) {
			continue
		}
		if task.ClaimedUntil != nil && task.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, task)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NotBefore.Equal(due[j].NotBefore) {
			return strings.Compare(due[i].IdempotencyKey, due[j].IdempotencyKey) < 0
		}
		return due[i].NotBefore.Before(due[j].NotBefore)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	until := now.Add(lease)
	out := make([]core.Task, 0, len(due))
	for _, task := range due {
		task.ClaimedUntil = &until
		out = append(out, *task)
	}
	return out, nil
}

func (m *memStore) MarkTaskSucceeded(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task := m.taskByIDLocked(id); task != nil {
		task.Status = core.TaskSucceeded
		task.ClaimedUntil = nil
		task.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *memStore) RescheduleTask(_ context.Context, id string, attempts int, notBefore time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task := m.taskByIDLocked(id); task != nil {
		task.Attempts = attempts
		task.NotBefore = notBefore
		task.LastError = lastError
		task.ClaimedUntil = nil
		task.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *memStore) MarkTaskFailed(_ context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task := m.taskByIDLocked(id); task != nil {
		task.Status = core.TaskFailedPermanent
		task.LastError = lastError
		task.ClaimedUntil = nil
		task.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *memStore) PurgeFinishedTasks(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for key, task := range m.tasks {
		if task.Status == core.TaskPending || !task.UpdatedAt.Before(olderThan) {
			continue
		}
		delete(m.tasks, key)
		purged++
	}
	return purged, nil
}

func (m *memStore) ListRecentTasks(_ context.Context, limit int) ([]core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Task
	for _, task := range m.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) taskByIDLocked(id string) *core.Task {
	for _, task := range m.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}
