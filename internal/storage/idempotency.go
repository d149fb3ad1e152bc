package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hireflow/interview-core/internal/core"
)

// PutIfAbsent is the subsystem's single atomic primitive. The unique primary
// key on idempotency_records makes ON CONFLICT DO NOTHING a race-free
// insert-if-absent: exactly one concurrent caller inserts, everyone reads the
// winning value afterwards.
func (s *postgresStore) PutIfAbsent(ctx context.Context, key, value string) (string, bool, error) {
	query := `
		INSERT INTO idempotency_records (key, value, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		return "", false, fmt.Errorf("insert idempotency record %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("insert idempotency record %q: %w", key, err)
	}
	if n > 0 {
		return value, true, nil
	}

	var stored string
	err = s.db.GetContext(ctx, &stored, `SELECT value FROM idempotency_records WHERE key = $1`, key)
	if err != nil {
		return "", false, fmt.Errorf("read idempotency record %q: %w", key, err)
	}
	return stored, false, nil
}

func (s *postgresStore) GetRecord(ctx context.Context, key string) (*core.IdempotencyRecord, bool, error) {
	var rec core.IdempotencyRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM idempotency_records WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select idempotency record %q: %w", key, err)
	}
	return &rec, true, nil
}

func (s *postgresStore) DeleteRecord(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete idempotency record %q: %w", key, err)
	}
	return nil
}
