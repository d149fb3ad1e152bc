package core

import "errors"

// Expected-business errors. These are returned as typed results, drive
// user-visible messaging, and must never crash a caller.
var (
	// ErrInviteNotPending is returned when a response arrives for an invite
	// that was already accepted, rejected, superseded, or expired. Callers
	// surface it as "slot already taken".
	ErrInviteNotPending = errors.New("invite is not pending")

	// ErrAlreadyBroadcasting rejects a repeated broadcast of the same
	// interview. Re-broadcast after expiry is a distinct operation.
	ErrAlreadyBroadcasting = errors.New("interview is already broadcasting")

	// ErrNoEligibleInterviewers rejects a broadcast with an empty
	// interviewer set; the interview stays in Draft for a manual retry.
	ErrNoEligibleInterviewers = errors.New("no eligible interviewers")

	// ErrInterviewerBusy rejects an acceptance by an interviewer who already
	// holds a confirmed interview within the configured gap of this slot.
	ErrInterviewerBusy = errors.New("interviewer has a conflicting interview")
)

// Consistency-violation errors. These are retried by re-reading fresh state
// and never surfaced to an end user.
var (
	// ErrStaleTransition signals an optimistic version mismatch: the
	// interview changed between the read and the write.
	ErrStaleTransition = errors.New("stale interview version")

	// ErrIllegalTransition signals a state change the lifecycle machine does
	// not permit.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
)

// Not-found errors.
var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrInviteNotFound    = errors.New("invite not found")
)

// ErrSlotUnavailable is the calendar adapter's fatal outcome: the resource
// cannot be booked and retrying will not help. It surfaces to the lifecycle
// as a cancellation trigger rather than a retry.
var ErrSlotUnavailable = errors.New("calendar slot unavailable")
