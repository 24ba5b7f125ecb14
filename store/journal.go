package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Log statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AppendLog records one per-subject harvest outcome.
func (s *Store) AppendLog(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.LoggedAt == 0 {
		e.LoggedAt = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvest_log (id, run_id, account_id, subject_id, status,
			error_message, duration_ms, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.AccountID, e.SubjectID, e.Status, e.Error, e.Duration, e.LoggedAt)
	if err != nil {
		return fmt.Errorf("store: append log: %w", err)
	}
	return nil
}

// RunLog returns all journal entries of one run in order.
func (s *Store) RunLog(ctx context.Context, runID string) ([]*LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, account_id, subject_id, status, error_message, duration_ms, logged_at
		FROM harvest_log WHERE run_id = ? ORDER BY logged_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run log: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.AccountID, &e.SubjectID, &e.Status,
			&e.Error, &e.Duration, &e.LoggedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
