package core

import "time"

// InviteState is the state of one outstanding slot offer to one interviewer.
type InviteState string

const (
	InvitePending InviteState = "pending"
	// InviteAccepted marks the single winning invite for an interview.
	InviteAccepted InviteState = "accepted"
	// InviteRejected covers both an explicit decline and a lost acceptance race.
	InviteRejected InviteState = "rejected"
	// InviteExpired marks invites whose interview hit the response deadline
	// with no winner.
	InviteExpired InviteState = "expired"
	// InviteSuperseded marks invites that were still pending when another
	// invite for the same interview was accepted.
	InviteSuperseded InviteState = "superseded"
)

// Invite is one offer of a specific interview slot to one interviewer.
// Invites are never deleted; they form the audit trail of the race.
type Invite struct {
	ID            string      `db:"id" json:"id"`
	InterviewID   string      `db:"interview_id" json:"interview_id"`
	InterviewerID string      `db:"interviewer_id" json:"interviewer_id"`
	State         InviteState `db:"state" json:"state"`
	// Rank preserves the advisory priority order supplied by the
	// eligibility query. It carries no delivery-order guarantee.
	Rank        int        `db:"rank" json:"rank"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}
