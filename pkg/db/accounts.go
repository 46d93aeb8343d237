package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrAccountNotFound = errors.New("mydlink account not found")

// Account holds the mydlink cloud credentials for a profile. The password
// is stored as entered; the REST client hashes it before it leaves the
// process.
type Account struct {
	ID              int64
	ProfileID       int64
	Email           string
	Password        string
	PollingInterval int // seconds between cloud reconciliation cycles
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccountStore provides mydlink account CRUD operations.
type AccountStore interface {
	Get(ctx context.Context, profileID int64) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, profileID int64) error
}

// Accounts returns an AccountStore for this database.
func (db *DB) Accounts() AccountStore {
	return &accountStore{db: db}
}

type accountStore struct {
	db *DB
}

func (s *accountStore) Get(ctx context.Context, profileID int64) (*Account, error) {
	a := &Account{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, email, password, polling_interval, created_at, updated_at
		FROM accounts WHERE profile_id = ?
	`, profileID).Scan(&a.ID, &a.ProfileID, &a.Email, &a.Password, &a.PollingInterval, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	a.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return a, nil
}

func (s *accountStore) Create(ctx context.Context, a *Account) error {
	if a.PollingInterval <= 0 {
		a.PollingInterval = 60
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (profile_id, email, password, polling_interval)
		VALUES (?, ?, ?, ?)
	`, a.ProfileID, a.Email, a.Password, a.PollingInterval)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (s *accountStore) Update(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET email = ?, password = ?, polling_interval = ?, updated_at = datetime('now')
		WHERE profile_id = ?
	`, a.Email, a.Password, a.PollingInterval, a.ProfileID)
	return err
}

func (s *accountStore) Delete(ctx context.Context, profileID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE profile_id = ?`, profileID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}
