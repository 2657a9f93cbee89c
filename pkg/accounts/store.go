package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a point lookup matches no row
var ErrNotFound = errors.New("not found")

// Store provides read access to accounts and memberships
type Store interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountBySlug(ctx context.Context, slug string) (*Account, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]MembershipRecord, error)
	GetMembership(ctx context.Context, userID, accountID uuid.UUID) (*MembershipRecord, error)
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new account store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetAccount retrieves an account by ID
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, name, slug, plan_tier, settings, created_at
		FROM accounts
		WHERE id = $1
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// GetAccountBySlug retrieves an account by slug
func (s *PostgresStore) GetAccountBySlug(ctx context.Context, slug string) (*Account, error) {
	query := `
		SELECT id, name, slug, plan_tier, settings, created_at
		FROM accounts
		WHERE slug = $1
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, slug))
}

func (s *PostgresStore) scanAccount(row *sql.Row) (*Account, error) {
	account := &Account{}
	var settings []byte
	err := row.Scan(&account.ID, &account.Name, &account.Slug, &account.PlanTier, &settings, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &account.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account settings: %w", err)
		}
	}

	return account, nil
}

// ListMemberships retrieves every membership row of a user, across all accounts
func (s *PostgresStore) ListMemberships(ctx context.Context, userID uuid.UUID) ([]MembershipRecord, error) {
	query := `
		SELECT user_id, account_id, role, invited_by, joined_at
		FROM account_memberships
		WHERE user_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var records []MembershipRecord
	for rows.Next() {
		record, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return records, nil
}

// GetMembership retrieves the membership of a user in one account
func (s *PostgresStore) GetMembership(ctx context.Context, userID, accountID uuid.UUID) (*MembershipRecord, error) {
	query := `
		SELECT user_id, account_id, role, invited_by, joined_at
		FROM account_memberships
		WHERE user_id = $1 AND account_id = $2
	`
	record, err := scanMembership(s.db.QueryRowContext(ctx, query, userID, accountID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func scanMembership(scanner interface {
	Scan(dest ...interface{}) error
}) (*MembershipRecord, error) {
	record := &MembershipRecord{}
	var invitedBy uuid.NullUUID
	err := scanner.Scan(&record.UserID, &record.AccountID, &record.Role, &invitedBy, &record.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	if invitedBy.Valid {
		id := invitedBy.UUID
		record.InvitedBy = &id
	}
	return record, nil
}
