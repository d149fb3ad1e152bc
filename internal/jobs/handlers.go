// Package jobs executes the durable background tasks behind interview
// scheduling: notifications, calendar booking, cancellation fan-out,
// invoicing, and reminders.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

// Notification template names resolved by the gateway registry.
const (
	TemplateOffer     = "interview_offer"
	TemplateConfirmed = "interview_confirmed"
	TemplateSlotTaken = "slot_taken"
	TemplateCancelled = "interview_cancelled"
	TemplateInvoice   = "invoice_request"
	TemplateReminder  = "interview_reminder"
)

// Handlers executes one task per call. Every handler re-reads current state
// before acting, so a delayed or replayed delivery never acts on stale data,
// and every external effect is keyed so a repeat is harmless.
type Handlers struct {
	store        storage.Store
	machine      *lifecycle.Machine
	calendar     core.CalendarAdapter
	gateway      core.NotificationGateway
	dashboardURL string
	financeInbox string
	logger       *slog.Logger
}

// NewHandlers creates the task handler set.
func NewHandlers(store storage.Store, machine *lifecycle.Machine, calendar core.CalendarAdapter, gateway core.NotificationGateway, dashboardURL, financeInbox string, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:        store,
		machine:      machine,
		calendar:     calendar,
		gateway:      gateway,
		dashboardURL: dashboardURL,
		financeInbox: financeInbox,
		logger:       logger,
	}
}

// Run dispatches a task to its handler. A nil return means the task's effect
// is done (or no longer applicable); an error wrapped in backoff.Permanent
// must not be retried.
func (h *Handlers) Run(ctx context.Context, task *core.Task) error {
	switch task.Kind {
	case core.TaskInviteNotify:
		return h.inviteNotify(ctx, task)
	case core.TaskBooking:
		return h.booking(ctx, task)
	case core.TaskConfirmNotify:
		return h.confirmNotify(ctx, task)
	case core.TaskSlotTakenNotify:
		return h.slotTaken(ctx, task)
	case core.TaskCancellation:
		return h.cancellation(ctx, task)
	case core.TaskInvoiceTrigger:
		return h.invoiceTrigger(ctx, task)
	case core.TaskReminder:
		return h.reminder(ctx, task)
	default:
		return backoff.Permanent(fmt.Errorf("unknown task kind %q", task.Kind))
	}
}

func (h *Handlers) inviteNotify(ctx context.Context, task *core.Task) error {
	var p core.InviteNotifyPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode invite notify payload: %w", err))
	}
	invite, err := h.store.GetInvite(ctx, p.InviteID)
	if err != nil {
		return err
	}
	// The race may already be over by the time this delivery runs.
	if invite.State != core.InvitePending {
		h.logger.Info("skipping offer notification, invite no longer pending",
			"invite_id", invite.ID, "state", invite.State)
		return nil
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      p.InterviewerID,
		Template:       TemplateOffer,
		IdempotencyKey: task.IdempotencyKey,
		Context: map[string]string{
			"interview_id": p.InterviewID,
			"slot_start":   p.SlotStart.Format("2006-01-02 15:04 MST"),
			"slot_end":     p.SlotEnd.Format("2006-01-02 15:04 MST"),
			"accept_url":   fmt.Sprintf("%s/invites/respond/%s", h.dashboardURL, p.AcceptToken),
			"reject_url":   fmt.Sprintf("%s/invites/respond/%s", h.dashboardURL, p.RejectToken),
		},
	})
}

func (h *Handlers) booking(ctx context.Context, task *core.Task) error {
	var p core.BookingPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode booking payload: %w", err))
	}
	iv, err := h.store.GetInterview(ctx, p.InterviewID)
	if err != nil {
		return err
	}
	if iv.State != core.StateConfirmed {
		h.logger.Info("skipping booking, interview no longer confirmed",
			"interview_id", iv.ID, "state", iv.State)
		return nil
	}
	if iv.CalendarEventID != "" {
		return nil // replay, already booked
	}
	booking, err := h.calendar.Book(ctx, core.BookingRequest{
		InterviewID:   iv.ID,
		InterviewerID: *iv.InterviewerID,
		CandidateID:   iv.CandidateID,
		SlotStart:     iv.SlotStart,
		SlotEnd:       iv.SlotEnd,
	})
	if errors.Is(err, core.ErrSlotUnavailable) {
		// The external resource is gone for good. Cancel the interview,
		// which queues the cancellation fan-out, rather than retrying
		// forever.
		if _, cErr := h.machine.Cancel(ctx, iv, "calendar slot unavailable"); cErr != nil {
			return cErr
		}
		return backoff.Permanent(err)
	}
	if err != nil {
		return err
	}
	return h.store.SetInterviewBooking(ctx, iv.ID, booking.JoinLink, booking.ExternalEventID)
}

func (h *Handlers) confirmNotify(ctx context.Context, task *core.Task) error {
	var p core.ConfirmNotifyPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode confirm notify payload: %w", err))
	}
	iv, err := h.store.GetInterview(ctx, p.InterviewID)
	if err != nil {
		return err
	}
	if iv.State != core.StateConfirmed || iv.InterviewerID == nil {
		h.logger.Info("skipping confirmation notice, interview no longer confirmed",
			"interview_id", iv.ID, "state", iv.State)
		return nil
	}
	vars := map[string]string{
		"interview_id": iv.ID,
		"slot_start":   iv.SlotStart.Format("2006-01-02 15:04 MST"),
		"slot_end":     iv.SlotEnd.Format("2006-01-02 15:04 MST"),
		"meeting_link": iv.MeetingLink,
	}
	if err := h.gateway.Send(ctx, core.Notification{
		Recipient:      *iv.InterviewerID,
		Template:       TemplateConfirmed,
		IdempotencyKey: task.IdempotencyKey + ":interviewer",
		Context:        vars,
	}); err != nil {
		return err
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      iv.CandidateID,
		Template:       TemplateConfirmed,
		IdempotencyKey: task.IdempotencyKey + ":candidate",
		Context:        vars,
	})
}

func (h *Handlers) slotTaken(ctx context.Context, task *core.Task) error {
	var p core.SlotTakenPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode slot taken payload: %w", err))
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      p.InterviewerID,
		Template:       TemplateSlotTaken,
		IdempotencyKey: task.IdempotencyKey,
		Context:        map[string]string{"interview_id": p.InterviewID},
	})
}

func (h *Handlers) cancellation(ctx context.Context, task *core.Task) error {
	var p core.CancellationPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode cancellation payload: %w", err))
	}
	iv, err := h.store.GetInterview(ctx, p.InterviewID)
	if err != nil {
		return err
	}
	if iv.CalendarEventID != "" {
		if err := h.calendar.Release(ctx, iv.CalendarEventID); err != nil {
			return err
		}
	}
	vars := map[string]string{
		"interview_id": iv.ID,
		"slot_start":   iv.SlotStart.Format("2006-01-02 15:04 MST"),
		"reason":       p.Reason,
	}
	if err := h.gateway.Send(ctx, core.Notification{
		Recipient:      iv.CandidateID,
		Template:       TemplateCancelled,
		IdempotencyKey: task.IdempotencyKey + ":candidate",
		Context:        vars,
	}); err != nil {
		return err
	}
	if iv.InterviewerID == nil {
		return nil
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      *iv.InterviewerID,
		Template:       TemplateCancelled,
		IdempotencyKey: task.IdempotencyKey + ":interviewer",
		Context:        vars,
	})
}

func (h *Handlers) invoiceTrigger(ctx context.Context, task *core.Task) error {
	var p core.InvoicePayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode invoice payload: %w", err))
	}
	iv, err := h.store.GetInterview(ctx, p.InterviewID)
	if err != nil {
		return err
	}
	if iv.State != core.StateCompleted {
		h.logger.Info("skipping invoice trigger, interview not completed",
			"interview_id", iv.ID, "state", iv.State)
		return nil
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      h.financeInbox,
		Template:       TemplateInvoice,
		IdempotencyKey: task.IdempotencyKey,
		Context: map[string]string{
			"interview_id": iv.ID,
			"client_id":    iv.ClientID,
			"candidate_id": iv.CandidateID,
			"slot_start":   iv.SlotStart.Format("2006-01-02 15:04 MST"),
		},
	})
}

func (h *Handlers) reminder(ctx context.Context, task *core.Task) error {
	var p core.ReminderPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("decode reminder payload: %w", err))
	}
	iv, err := h.store.GetInterview(ctx, p.InterviewID)
	if err != nil {
		return err
	}
	// A cancellation between enqueue and delivery silences the reminder.
	if iv.State != core.StateConfirmed || iv.InterviewerID == nil {
		h.logger.Info("skipping reminder, interview no longer confirmed",
			"interview_id", iv.ID, "state", iv.State)
		return nil
	}
	vars := map[string]string{
		"interview_id": iv.ID,
		"window":       p.Window,
		"slot_start":   iv.SlotStart.Format("2006-01-02 15:04 MST"),
		"meeting_link": iv.MeetingLink,
	}
	if err := h.gateway.Send(ctx, core.Notification{
		Recipient:      *iv.InterviewerID,
		Template:       TemplateReminder,
		IdempotencyKey: task.IdempotencyKey + ":interviewer",
		Context:        vars,
	}); err != nil {
		return err
	}
	return h.gateway.Send(ctx, core.Notification{
		Recipient:      iv.CandidateID,
		Template:       TemplateReminder,
		IdempotencyKey: task.IdempotencyKey + ":candidate",
		Context:        vars,
	})
}
