// Package core defines the essential interfaces and data structures that form the
// backbone of the scheduling subsystem. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"time"
)

// InterviewState is the lifecycle state of an interview.
type InterviewState string

const (
	StateDraft        InterviewState = "draft"
	StateBroadcasting InterviewState = "broadcasting"
	StateConfirmed    InterviewState = "confirmed"
	StateCompleted    InterviewState = "completed"
	StateCancelled    InterviewState = "cancelled"
	StateExpired      InterviewState = "expired"
)

// Terminal reports whether no further transitions are possible from s.
// Expired is not terminal in practice: an expired interview can be explicitly
// reopened to Draft for a fresh broadcast.
func (s InterviewState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Interview is one scheduling unit: a candidate, a client, and a slot window
// that needs exactly one interviewer assigned to it.
type Interview struct {
	ID          string         `db:"id" json:"id"`
	CandidateID string         `db:"candidate_id" json:"candidate_id"`
	ClientID    string         `db:"client_id" json:"client_id"`
	SlotStart   time.Time      `db:"slot_start" json:"slot_start"`
	SlotEnd     time.Time      `db:"slot_end" json:"slot_end"`
	State       InterviewState `db:"state" json:"state"`

	// InterviewerID is nil until the interview is confirmed; once set it
	// names the single invite winner.
	InterviewerID *string `db:"interviewer_id" json:"interviewer_id"`

	// Version is the optimistic concurrency counter. Every lifecycle
	// transition increments it; writers must present the version they read.
	Version int64 `db:"version" json:"version"`

	// BroadcastAt records when the interview entered Broadcasting; the
	// expiry sweep measures the response deadline from it.
	BroadcastAt *time.Time `db:"broadcast_at" json:"broadcast_at,omitempty"`

	MeetingLink     string `db:"meeting_link" json:"meeting_link,omitempty"`
	CalendarEventID string `db:"calendar_event_id" json:"calendar_event_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transition is one audit-trail entry for a lifecycle state change.
type Transition struct {
	ID          int64          `db:"id" json:"id"`
	InterviewID string         `db:"interview_id" json:"interview_id"`
	FromState   InterviewState `db:"from_state" json:"from_state"`
	ToState     InterviewState `db:"to_state" json:"to_state"`
	Version     int64          `db:"version" json:"version"`
	Reason      string         `db:"reason" json:"reason"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
