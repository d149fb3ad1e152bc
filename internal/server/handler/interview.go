// Package handler provides HTTP handlers for the scheduling API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hireflow/interview-core/internal/arbiter"
	"github.com/hireflow/interview-core/internal/broadcast"
	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/storage"
)

// InterviewHandler serves the interview scheduling endpoints.
type InterviewHandler struct {
	store       storage.Store
	machine     *lifecycle.Machine
	broadcaster *broadcast.Broadcaster
	arbiter     *arbiter.Arbiter
	clock       core.Clock
	logger      *slog.Logger
}

// NewInterviewHandler creates the handler.
func NewInterviewHandler(store storage.Store, machine *lifecycle.Machine, broadcaster *broadcast.Broadcaster, arb *arbiter.Arbiter, clock core.Clock, logger *slog.Logger) *InterviewHandler {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &InterviewHandler{
		store:       store,
		machine:     machine,
		broadcaster: broadcaster,
		arbiter:     arb,
		clock:       clock,
		logger:      logger,
	}
}

type scheduleRequest struct {
	CandidateID string    `json:"candidate_id"`
	ClientID    string    `json:"client_id"`
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Schedule creates a draft interview for a candidate slot.
func (h *InterviewHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CandidateID == "" || req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "candidate_id and client_id are required")
		return
	}
	if !req.SlotEnd.After(req.SlotStart) {
		writeError(w, http.StatusBadRequest, "slot_end must be after slot_start")
		return
	}
	if req.SlotStart.Before(h.clock.Now()) {
		writeError(w, http.StatusBadRequest, "slot_start must be in the future")
		return
	}

	iv := &core.Interview{
		ID:          uuid.New().String(),
		CandidateID: req.CandidateID,
		ClientID:    req.ClientID,
		SlotStart:   req.SlotStart.UTC(),
		SlotEnd:     req.SlotEnd.UTC(),
		State:       core.StateDraft,
	}
	if err := h.store.CreateInterview(r.Context(), iv); err != nil {
		h.logger.Error("failed to create interview", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create interview")
		return
	}

	h.logger.Info("interview scheduled", "interview_id", iv.ID, "candidate_id", iv.CandidateID)
	writeJSON(w, http.StatusCreated, iv)
}

type interviewResponse struct {
	*core.Interview
	Invites []core.Invite `json:"invites"`
}

// Get returns an interview with its invites.
func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	iv, err := h.store.GetInterview(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	invites, err := h.store.ListInvitesByInterview(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interviewResponse{Interview: iv, Invites: invites})
}

// Transitions returns the interview's audit trail.
func (h *InterviewHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetInterview(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}
	transitions, err := h.store.ListTransitions(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitions)
}

type broadcastRequest struct {
	InterviewerIDs []string `json:"interviewer_ids"`
}

// Broadcast opens the acceptance race by inviting the given interviewers.
func (h *InterviewHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	h.broadcastWith(w, r, h.broadcaster.Broadcast)
}

// Rebroadcast re-opens an expired interview toward a fresh interviewer set.
func (h *InterviewHandler) Rebroadcast(w http.ResponseWriter, r *http.Request) {
	h.broadcastWith(w, r, h.broadcaster.Rebroadcast)
}

func (h *InterviewHandler) broadcastWith(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, interviewID string, interviewerIDs []string) ([]core.Invite, error)) {
	id := chi.URLParam(r, "id")
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	invites, err := fn(r.Context(), id, req.InterviewerIDs)
	switch {
	case errors.Is(err, core.ErrInterviewNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
	case errors.Is(err, core.ErrNoEligibleInterviewers):
		writeError(w, http.StatusUnprocessableEntity, "no eligible interviewers")
	case errors.Is(err, core.ErrAlreadyBroadcasting):
		writeError(w, http.StatusConflict, "interview is already broadcasting")
	case errors.Is(err, core.ErrIllegalTransition), errors.Is(err, core.ErrStaleTransition):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("broadcast failed", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
	default:
		writeJSON(w, http.StatusAccepted, invites)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel cancels a confirmed interview and queues the cancellation fan-out.
func (h *InterviewHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	iv, err := h.store.GetInterview(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	if _, err := h.machine.Cancel(r.Context(), iv, req.Reason); err != nil {
		h.respondTransitionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// Complete marks a confirmed interview as held and queues the invoice
// trigger.
func (h *InterviewHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	iv, err := h.store.GetInterview(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	if _, err := h.machine.Complete(r.Context(), iv); err != nil {
		h.respondTransitionError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type respondResponse struct {
	Result      string `json:"result"`
	InterviewID string `json:"interview_id,omitempty"`
}

// Respond resolves a tokenized accept or reject link. The losing side of the
// acceptance race gets a "slot_taken" result, not an error: that outcome is
// normal operation.
func (h *InterviewHandler) Respond(w http.ResponseWriter, r *http.Request) {
	token, err := core.DecodeResponseToken(chi.URLParam(r, "token"), h.clock.Now())
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		writeError(w, http.StatusGone, "response link expired")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid response link")
		return
	}

	if token.Action == core.ActionReject {
		err := h.arbiter.ResolveReject(r.Context(), token.InviteID)
		switch {
		case errors.Is(err, core.ErrInviteNotFound):
			writeError(w, http.StatusNotFound, "invite not found")
		case errors.Is(err, core.ErrInviteNotPending):
			writeError(w, http.StatusConflict, "invite already resolved")
		case err != nil:
			h.logger.Error("reject failed", "invite_id", token.InviteID, "error", err)
			writeError(w, http.StatusInternalServerError, "reject failed")
		default:
			writeJSON(w, http.StatusOK, respondResponse{Result: "rejected"})
		}
		return
	}

	outcome, err := h.arbiter.ResolveAccept(r.Context(), token.InviteID)
	switch {
	case errors.Is(err, core.ErrInviteNotFound):
		writeError(w, http.StatusNotFound, "invite not found")
	case errors.Is(err, core.ErrInviteNotPending):
		writeError(w, http.StatusConflict, "invite already resolved")
	case errors.Is(err, core.ErrInterviewerBusy):
		writeError(w, http.StatusConflict, "interviewer has a conflicting interview")
	case err != nil:
		h.logger.Error("accept failed", "invite_id", token.InviteID, "error", err)
		writeError(w, http.StatusInternalServerError, "accept failed")
	case outcome.Won:
		writeJSON(w, http.StatusOK, respondResponse{Result: "confirmed", InterviewID: outcome.InterviewID})
	default:
		writeJSON(w, http.StatusOK, respondResponse{Result: "slot_taken", InterviewID: outcome.InterviewID})
	}
}

// RecentTasks exposes the task queue's recent entries for operators.
func (h *InterviewHandler) RecentTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListRecentTasks(r.Context(), 50)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *InterviewHandler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInterviewNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
	case errors.Is(err, core.ErrInviteNotFound):
		writeError(w, http.StatusNotFound, "invite not found")
	default:
		h.logger.Error("storage error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *InterviewHandler) respondTransitionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, core.ErrIllegalTransition), errors.Is(err, core.ErrStaleTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("transition failed", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "transition failed")
	}
}
