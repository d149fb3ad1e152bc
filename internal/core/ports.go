package core

import (
	"context"
	"time"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Booking is the result of a successful calendar reservation.
type Booking struct {
	JoinLink        string
	ExternalEventID string
}

// BookingRequest describes the slot to reserve. Interviewer and candidate
// are carried as opaque references; the notification fan-out, not the
// calendar event, is how both parties learn the join link.
type BookingRequest struct {
	InterviewID   string
	InterviewerID string
	CandidateID   string
	SlotStart     time.Time
	SlotEnd       time.Time
}

// CalendarAdapter reserves and releases external meeting resources.
// Implementations distinguish ErrSlotUnavailable (fatal for this booking)
// from transient failures, which the task queue retries.
type CalendarAdapter interface {
	Book(ctx context.Context, req BookingRequest) (*Booking, error)
	Release(ctx context.Context, externalEventID string) error
}

// Notification is one outbound message. Context carries template variables.
type Notification struct {
	Recipient      string
	Template       string
	IdempotencyKey string
	Context        map[string]string
}

// NotificationGateway delivers email/SMS. It is fire-and-forget from the
// core's perspective: the call must be safe to repeat for the same
// idempotency key, and the core's own idempotency store stays authoritative
// for dedup.
type NotificationGateway interface {
	Send(ctx context.Context, n Notification) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
