package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hireflow/interview-core/internal/core"
)

func (s *postgresStore) GetInvite(ctx context.Context, id string) (*core.Invite, error) {
	var inv core.Invite
	err := s.db.GetContext(ctx, &inv, `SELECT * FROM invites WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select invite %s: %w", id, err)
	}
	return &inv, nil
}

func (s *postgresStore) ListInvitesByInterview(ctx context.Context, interviewID string) ([]core.Invite, error) {
	var out []core.Invite
	query := `SELECT * FROM invites WHERE interview_id = $1 ORDER BY rank`
	if err := s.db.SelectContext(ctx, &out, query, interviewID); err != nil {
		return nil, fmt.Errorf("list invites for interview %s: %w", interviewID, err)
	}
	return out, nil
}

func (s *postgresStore) TransitionInvite(ctx context.Context, id string, from, to core.InviteState, respondedAt *time.Time) (bool, error) {
	query := `
		UPDATE invites
		SET state = $3, responded_at = COALESCE($4, responded_at)
		WHERE id = $1 AND state = $2`
	res, err := s.db.ExecContext(ctx, query, id, from, to, respondedAt)
	if err != nil {
		return false, fmt.Errorf("transition invite %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition invite %s to %s: %w", id, to, err)
	}
	return n > 0, nil
}

func (s *postgresStore) BroadcastInterview(ctx context.Context, iv *core.Interview, expectedVersion int64, invites []core.Invite, tasks []*core.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin broadcast tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyInterviewUpdate(ctx, tx, iv, expectedVersion); err != nil {
		return err
	}
	if err := recordTransition(ctx, tx, iv, core.StateDraft, "broadcast"); err != nil {
		return err
	}

	inviteQuery := `
		INSERT INTO invites (id, interview_id, interviewer_id, state, rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, inv := range invites {
		if _, err := tx.ExecContext(ctx, inviteQuery,
			inv.ID, inv.InterviewID, inv.InterviewerID, inv.State, inv.Rank, inv.CreatedAt); err != nil {
			return fmt.Errorf("insert invite %s: %w", inv.ID, err)
		}
	}

	for _, task := range tasks {
		if err := enqueueTask(ctx, tx, task); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *postgresStore) ExpireInterview(ctx context.Context, iv *core.Interview, expectedVersion int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin expiry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyInterviewUpdate(ctx, tx, iv, expectedVersion); err != nil {
		return err
	}
	if err := recordTransition(ctx, tx, iv, core.StateBroadcasting, "response deadline passed"); err != nil {
		return err
	}

	query := `UPDATE invites SET state = $2 WHERE interview_id = $1 AND state = $3`
	if _, err := tx.ExecContext(ctx, query, iv.ID, core.InviteExpired, core.InvitePending); err != nil {
		return fmt.Errorf("expire invites for interview %s: %w", iv.ID, err)
	}
	return tx.Commit()
}
