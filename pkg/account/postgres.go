package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// PostgresStore implements Store on top of a Postgres accounts table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-backed account store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LookupByName returns the account with the given username or ErrNotFound
func (s *PostgresStore) LookupByName(ctx context.Context, username string) (*Account, error) {
	acct := &Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, is_active, created_at, updated_at, last_login_at
		FROM accounts WHERE username = $1
	`, username).Scan(&acct.ID, &acct.Username, &acct.IsActive,
		&acct.CreatedAt, &acct.UpdatedAt, &acct.LastLoginAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	return acct, nil
}

// LookupByID returns the account with the given ID or ErrNotFound
func (s *PostgresStore) LookupByID(ctx context.Context, id int64) (*Account, error) {
	acct := &Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, is_active, created_at, updated_at, last_login_at
		FROM accounts WHERE id = $1
	`, id).Scan(&acct.ID, &acct.Username, &acct.IsActive,
		&acct.CreatedAt, &acct.UpdatedAt, &acct.LastLoginAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	return acct, nil
}

// Create creates a new enabled account with the given username
func (s *PostgresStore) Create(ctx context.Context, username string) (*Account, error) {
	acct := &Account{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, is_active, created_at, updated_at)
		VALUES ($1, true, NOW(), NOW())
		RETURNING id, username, is_active, created_at, updated_at, last_login_at
	`, username).Scan(&acct.ID, &acct.Username, &acct.IsActive,
		&acct.CreatedAt, &acct.UpdatedAt, &acct.LastLoginAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return acct, nil
}
