// Package calendar books and releases meeting slots against a Google
// Calendar-compatible events API.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
)

const calendarScope = "https://www.googleapis.com/auth/calendar.events"

// Adapter implements core.CalendarAdapter against the events API. Transient
// failures surface as plain errors and are retried by the task queue; a slot
// conflict maps to core.ErrSlotUnavailable, which is final.
type Adapter struct {
	client     *http.Client
	baseURL    string
	calendarID string
	logger     *slog.Logger
}

// New builds an Adapter authorized through a service-account credentials
// file.
func New(cfg config.CalendarConfig, logger *slog.Logger) (*Adapter, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(creds, calendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	if cfg.ServiceAccountMail != "" {
		jwtCfg.Subject = cfg.ServiceAccountMail
	}
	client := jwtCfg.Client(context.Background())
	client.Timeout = cfg.RequestTimeout
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient builds an Adapter on a caller-supplied HTTP client. Tests
// use this to point the adapter at a local server.
func NewWithClient(client *http.Client, cfg config.CalendarConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:     client,
		baseURL:    cfg.BaseURL,
		calendarID: cfg.CalendarID,
		logger:     logger,
	}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

type eventRequest struct {
	Summary string    `json:"summary"`
	Start   eventTime `json:"start"`
	End     eventTime `json:"end"`

	// ExtendedProperties carries the interview id so an event can be traced
	// back from the calendar side.
	ExtendedProperties struct {
		Private map[string]string `json:"private"`
	} `json:"extendedProperties"`
}

type eventResponse struct {
	ID          string `json:"id"`
	HangoutLink string `json:"hangoutLink"`
	HTMLLink    string `json:"htmlLink"`
}

// Book reserves the slot and returns the meeting details.
func (a *Adapter) Book(ctx context.Context, req core.BookingRequest) (*core.Booking, error) {
	body := eventRequest{
		Summary: fmt.Sprintf("Interview %s", req.InterviewID),
		Start:   eventTime{DateTime: req.SlotStart.Format(time.RFC3339)},
		End:     eventTime{DateTime: req.SlotEnd.Format(time.RFC3339)},
	}
	body.ExtendedProperties.Private = map[string]string{
		"interview_id":   req.InterviewID,
		"interviewer_id": req.InterviewerID,
		"candidate_id":   req.CandidateID,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode booking request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?conferenceDataVersion=1",
		a.baseURL, url.PathEscape(a.calendarID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build booking request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("book slot for interview %s: %w", req.InterviewID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		return nil, fmt.Errorf("slot %s-%s rejected by calendar: %w",
			req.SlotStart.Format(time.RFC3339), req.SlotEnd.Format(time.RFC3339), core.ErrSlotUnavailable)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calendar returned %d booking interview %s: %s",
			resp.StatusCode, req.InterviewID, detail)
	}

	var event eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("decode booking response: %w", err)
	}
	link := event.HangoutLink
	if link == "" {
		link = event.HTMLLink
	}
	a.logger.Info("booked calendar event", "interview_id", req.InterviewID, "event_id", event.ID)
	return &core.Booking{JoinLink: link, ExternalEventID: event.ID}, nil
}

// Release deletes a booked event. A missing event counts as released, so
// replays after a partial cancellation are harmless.
func (a *Adapter) Release(ctx context.Context, externalEventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		a.baseURL, url.PathEscape(a.calendarID), url.PathEscape(externalEventID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("release event %s: %w", externalEventID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		a.logger.Info("released calendar event", "event_id", externalEventID)
		return nil
	case http.StatusNotFound, http.StatusGone:
		return nil
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("calendar returned %d releasing event %s: %s",
			resp.StatusCode, externalEventID, detail)
	}
}
