package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// GetAccount loads an account's version chain. Returns ErrNotFound for an
// account that has never captured a question set.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*AccountState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account_id, current_version, versions_json, created_at, updated_at
		FROM accounts WHERE account_id = ?`, accountID)

	var a AccountState
	var versionsJSON string
	err := row.Scan(&a.AccountID, &a.CurrentVersion, &versionsJSON, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get account: %w", err)
	}

	if err := json.Unmarshal([]byte(versionsJSON), &a.Versions); err != nil {
		return nil, fmt.Errorf("store: account %s versions: %w", accountID, err)
	}
	return &a, nil
}

// PutAccount writes the full account state, replacing any stored copy.
// The chain itself is append-only; replacement here is the atomic
// replace-on-write of the whole document.
func (s *Store) PutAccount(ctx context.Context, a *AccountState) error {
	if a.CurrentVersion == "" {
		return fmt.Errorf("store: account %s has no current version", a.AccountID)
	}
	if _, ok := a.Versions[a.CurrentVersion]; !ok {
		return fmt.Errorf("store: account %s current version %s not in chain", a.AccountID, a.CurrentVersion)
	}

	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	versionsJSON, err := json.Marshal(a.Versions)
	if err != nil {
		return fmt.Errorf("store: marshal versions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, current_version, versions_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			current_version = excluded.current_version,
			versions_json   = excluded.versions_json,
			updated_at      = excluded.updated_at`,
		a.AccountID, a.CurrentVersion, string(versionsJSON), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: put account: %w", err)
	}
	return nil
}
