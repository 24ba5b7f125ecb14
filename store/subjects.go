package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/qharvest/question"
)

// PutSubject stores one harvested subject, replacing any previous capture
// of the same subject.
func (s *Store) PutSubject(ctx context.Context, sub *Subject) error {
	if sub.CapturedAt == 0 {
		sub.CapturedAt = time.Now().UnixMilli()
	}

	agreeing, err := json.Marshal(emptyIfNil(sub.Agreeing))
	if err != nil {
		return fmt.Errorf("store: marshal agreeing: %w", err)
	}
	disagreeing, err := json.Marshal(emptyIfNil(sub.Disagreeing))
	if err != nil {
		return fmt.Errorf("store: marshal disagreeing: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO subjects (subject_id, account_id, version_label, raw_html, markdown,
			media_count, agreeing_json, disagreeing_json, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			account_id       = excluded.account_id,
			version_label    = excluded.version_label,
			raw_html         = excluded.raw_html,
			markdown         = excluded.markdown,
			media_count      = excluded.media_count,
			agreeing_json    = excluded.agreeing_json,
			disagreeing_json = excluded.disagreeing_json,
			captured_at      = excluded.captured_at`,
		sub.SubjectID, sub.AccountID, sub.Version, sub.RawHTML, sub.Markdown,
		sub.MediaCount, string(agreeing), string(disagreeing), sub.CapturedAt)
	if err != nil {
		return fmt.Errorf("store: put subject %s: %w", sub.SubjectID, err)
	}
	return nil
}

// GetSubject loads one stored subject. Returns ErrNotFound when the
// subject has never been harvested.
func (s *Store) GetSubject(ctx context.Context, subjectID string) (*Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT subject_id, account_id, version_label, raw_html, markdown,
			media_count, agreeing_json, disagreeing_json, captured_at
		FROM subjects WHERE subject_id = ?`, subjectID)

	var sub Subject
	var agreeing, disagreeing string
	err := row.Scan(&sub.SubjectID, &sub.AccountID, &sub.Version, &sub.RawHTML, &sub.Markdown,
		&sub.MediaCount, &agreeing, &disagreeing, &sub.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: subject %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get subject: %w", err)
	}

	if err := json.Unmarshal([]byte(agreeing), &sub.Agreeing); err != nil {
		return nil, fmt.Errorf("store: subject %s agreeing: %w", subjectID, err)
	}
	if err := json.Unmarshal([]byte(disagreeing), &sub.Disagreeing); err != nil {
		return nil, fmt.Errorf("store: subject %s disagreeing: %w", subjectID, err)
	}
	return &sub, nil
}

// ListSubjectIDs returns the IDs of all stored subjects, most recent first.
func (s *Store) ListSubjectIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id FROM subjects ORDER BY captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list subjects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func emptyIfNil(rs []question.Record) []question.Record {
	if rs == nil {
		return []question.Record{}
	}
	return rs
}
