package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hireflow/interview-core/internal/core"
)

func (s *postgresStore) CreateInterview(ctx context.Context, iv *core.Interview) error {
	query := `
		INSERT INTO interviews (id, candidate_id, client_id, slot_start, slot_end, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		iv.ID, iv.CandidateID, iv.ClientID, iv.SlotStart, iv.SlotEnd, iv.State, iv.Version, now)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

func (s *postgresStore) GetInterview(ctx context.Context, id string) (*core.Interview, error) {
	var iv core.Interview
	err := s.db.GetContext(ctx, &iv, `SELECT * FROM interviews WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrInterviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select interview %s: %w", id, err)
	}
	return &iv, nil
}

func (s *postgresStore) UpdateInterviewState(ctx context.Context, iv *core.Interview, expectedVersion int64, from core.InterviewState, reason string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyInterviewUpdate(ctx, tx, iv, expectedVersion); err != nil {
		return err
	}
	if err := recordTransition(ctx, tx, iv, from, reason); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *postgresStore) SetInterviewBooking(ctx context.Context, id, joinLink, externalEventID string) error {
	query := `
		UPDATE interviews
		SET meeting_link = $2, calendar_event_id = $3, updated_at = $4
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, joinLink, externalEventID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set booking on interview %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrInterviewNotFound
	}
	return nil
}

func (s *postgresStore) ListConfirmedInWindow(ctx context.Context, from, to time.Time) ([]core.Interview, error) {
	var out []core.Interview
	query := `
		SELECT * FROM interviews
		WHERE state = $1 AND slot_start >= $2 AND slot_start < $3
		ORDER BY slot_start`
	if err := s.db.SelectContext(ctx, &out, query, core.StateConfirmed, from, to); err != nil {
		return nil, fmt.Errorf("list confirmed interviews: %w", err)
	}
	return out, nil
}

func (s *postgresStore) ListBroadcastingBefore(ctx context.Context, cutoff time.Time) ([]core.Interview, error) {
	var out []core.Interview
	query := `
		SELECT * FROM interviews
		WHERE state = $1 AND broadcast_at IS NOT NULL AND broadcast_at < $2
		ORDER BY broadcast_at`
	if err := s.db.SelectContext(ctx, &out, query, core.StateBroadcasting, cutoff); err != nil {
		return nil, fmt.Errorf("list broadcasting interviews: %w", err)
	}
	return out, nil
}

func (s *postgresStore) HasConfirmedOverlap(ctx context.Context, interviewerID string, from, to time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM interviews
			WHERE interviewer_id = $1 AND state = $2
			AND slot_start < $4 AND slot_end > $3
		)`
	if err := s.db.GetContext(ctx, &exists, query, interviewerID, core.StateConfirmed, from, to); err != nil {
		return false, fmt.Errorf("check interviewer overlap: %w", err)
	}
	return exists, nil
}

func (s *postgresStore) ListTransitions(ctx context.Context, interviewID string) ([]core.Transition, error) {
	var out []core.Transition
	query := `SELECT * FROM interview_transitions WHERE interview_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &out, query, interviewID); err != nil {
		return nil, fmt.Errorf("list transitions for interview %s: %w", interviewID, err)
	}
	return out, nil
}

// applyInterviewUpdate writes the new lifecycle state under the optimistic
// version guard. Zero rows affected means another writer got there first.
func applyInterviewUpdate(ctx context.Context, tx execer, iv *core.Interview, expectedVersion int64) error {
	query := `
		UPDATE interviews
		SET state = $3, interviewer_id = $4, broadcast_at = $5, version = $6, updated_at = $7
		WHERE id = $1 AND version = $2`
	res, err := tx.ExecContext(ctx, query,
		iv.ID, expectedVersion, iv.State, iv.InterviewerID, iv.BroadcastAt, iv.Version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update interview %s: %w", iv.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update interview %s: %w", iv.ID, err)
	}
	if n == 0 {
		return core.ErrStaleTransition
	}
	return nil
}

func recordTransition(ctx context.Context, tx execer, iv *core.Interview, from core.InterviewState, reason string) error {
	query := `
		INSERT INTO interview_transitions (interview_id, from_state, to_state, version, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(ctx, query,
		iv.ID, from, iv.State, iv.Version, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record transition for interview %s: %w", iv.ID, err)
	}
	return nil
}

// execer is the subset of sqlx.Tx and sqlx.DB the helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
