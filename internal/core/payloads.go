package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task payloads. Each task kind carries exactly one of these, JSON-encoded.
// Payloads hold references, not snapshots: handlers re-read current state so
// a delayed delivery never acts on stale data.

// InviteNotifyPayload drives the initial offer notification to one
// interviewer, carrying the pre-signed accept/reject tokens.
type InviteNotifyPayload struct {
	InviteID      string    `json:"invite_id"`
	InterviewID   string    `json:"interview_id"`
	InterviewerID string    `json:"interviewer_id"`
	AcceptToken   string    `json:"accept_token"`
	RejectToken   string    `json:"reject_token"`
	SlotStart     time.Time `json:"slot_start"`
	SlotEnd       time.Time `json:"slot_end"`
}

// BookingPayload drives the calendar reservation for a confirmed interview.
type BookingPayload struct {
	InterviewID string `json:"interview_id"`
}

// ConfirmNotifyPayload drives the confirmation fan-out to the winner.
type ConfirmNotifyPayload struct {
	InterviewID string `json:"interview_id"`
	InviteID    string `json:"invite_id"`
}

// SlotTakenPayload drives the "slot taken" notification to one loser.
type SlotTakenPayload struct {
	InviteID      string `json:"invite_id"`
	InterviewID   string `json:"interview_id"`
	InterviewerID string `json:"interviewer_id"`
}

// CancellationPayload drives calendar release plus cancellation notices.
type CancellationPayload struct {
	InterviewID string `json:"interview_id"`
	Reason      string `json:"reason"`
}

// InvoicePayload drives the invoice trigger emitted on completion.
type InvoicePayload struct {
	InterviewID string `json:"interview_id"`
}

// ReminderPayload drives one reminder window for one interview.
type ReminderPayload struct {
	InterviewID string `json:"interview_id"`
	Window      string `json:"window"`
}

// MustMarshal encodes a payload that cannot fail to marshal. All payload
// types above are plain data, so a failure here is a programming error.
func MustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal task payload: %v", err))
	}
	return raw
}
