package core

import (
	"fmt"
	"time"
)

// TaskKind tags the handler a queued task is dispatched to.
type TaskKind string

const (
	TaskInviteNotify    TaskKind = "invite_notify"
	TaskBooking         TaskKind = "booking"
	TaskConfirmNotify   TaskKind = "confirm_notify"
	TaskSlotTakenNotify TaskKind = "slot_taken_notify"
	TaskCancellation    TaskKind = "cancellation"
	TaskInvoiceTrigger  TaskKind = "invoice_trigger"
	TaskReminder        TaskKind = "reminder"
)

// TaskStatus is the delivery status of a queued task.
type TaskStatus string

const (
	TaskPending         TaskStatus = "pending"
	TaskSucceeded       TaskStatus = "succeeded"
	TaskFailedPermanent TaskStatus = "failed_permanent"
)

// Task is one unit of asynchronous work. Delivery is at-least-once; the
// effect behind IdempotencyKey is applied at most once.
type Task struct {
	ID             string     `db:"id" json:"id"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key"`
	Kind           TaskKind   `db:"kind" json:"kind"`
	Payload        []byte     `db:"payload" json:"payload"`
	Attempts       int        `db:"attempts" json:"attempts"`
	NotBefore      time.Time  `db:"not_before" json:"not_before"`
	Status         TaskStatus `db:"status" json:"status"`
	LastError      string     `db:"last_error" json:"last_error,omitempty"`
	ClaimedUntil   *time.Time `db:"claimed_until" json:"claimed_until,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IdempotencyRecord is one durable key→outcome entry. The first writer for a
// key wins; everyone else observes the stored value.
type IdempotencyRecord struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
}

// Idempotency key builders. Keys are deterministic functions of the
// triggering event so that replays collapse onto the same record.

// WinnerKey guards the acceptance race: the single insert-if-absent under
// this key is the linearization point for an interview's broadcast.
func WinnerKey(interviewID string) string {
	return fmt.Sprintf("interview:%s:winner", interviewID)
}

// InviteNotifyKey dedups the initial offer notification for one invite.
func InviteNotifyKey(inviteID string) string {
	return fmt.Sprintf("invite:%s:notify", inviteID)
}

// SlotTakenKey dedups the "slot taken" notification for one losing invite.
func SlotTakenKey(inviteID string) string {
	return fmt.Sprintf("invite:%s:slot-taken", inviteID)
}

// BookingKey dedups the calendar booking for a confirmed interview.
func BookingKey(interviewID string) string {
	return fmt.Sprintf("interview:%s:book", interviewID)
}

// ConfirmNotifyKey dedups the confirmation notification fan-out.
func ConfirmNotifyKey(interviewID string) string {
	return fmt.Sprintf("interview:%s:confirm-notify", interviewID)
}

// CancellationKey dedups the cancellation fan-out (calendar release plus
// cancellation notifications).
func CancellationKey(interviewID string) string {
	return fmt.Sprintf("interview:%s:cancel", interviewID)
}

// InvoiceKey dedups the invoice trigger emitted on completion.
func InvoiceKey(interviewID string) string {
	return fmt.Sprintf("interview:%s:invoice", interviewID)
}

// ReminderKey dedups one reminder window for one interview; the key alone
// makes overlapping sweeps safe.
func ReminderKey(interviewID, windowLabel string) string {
	return fmt.Sprintf("interview:%s:reminder:%s", interviewID, windowLabel)
}
