package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
)

// MembershipLister lists every membership of a user
type MembershipLister interface {
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]accounts.MembershipRecord, error)
}

// Grant is a membership joined against the role_permissions mapping for one permission
type Grant struct {
	AccountID uuid.UUID
	Role      accounts.Role
	Granted   bool
}

// GrantStore looks up the membership of a user in one account together with
// whether its role carries a permission
type GrantStore interface {
	GetGrant(ctx context.Context, userID, accountID uuid.UUID, perm Permission) (*Grant, error)
}

// Store handles RBAC reads against PostgreSQL
type Store struct {
	*accounts.PostgresStore
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{
		PostgresStore: accounts.NewPostgresStore(db),
		db:            db,
	}
}

// GetGrant returns accounts.ErrNotFound when the user has no membership in the account
func (s *Store) GetGrant(ctx context.Context, userID, accountID uuid.UUID, perm Permission) (*Grant, error) {
	query := `
		SELECT m.account_id, m.role,
		       EXISTS (
		           SELECT 1 FROM role_permissions rp
		           WHERE rp.role = m.role AND rp.permission = $3
		       ) AS granted
		FROM account_memberships m
		WHERE m.user_id = $1 AND m.account_id = $2
	`

	grant := &Grant{}
	err := s.db.QueryRowContext(ctx, query, userID, accountID, perm.String()).Scan(
		&grant.AccountID,
		&grant.Role,
		&grant.Granted,
	)
	if err == sql.ErrNoRows {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	return grant, nil
}

// ListRolePermissions returns the stored permissions of a role
func (s *Store) ListRolePermissions(ctx context.Context, role accounts.Role) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT permission FROM role_permissions WHERE role = $1 ORDER BY permission`,
		role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		perm, err := ParsePermission(raw)
		if err != nil {
			// Unknown rows grant nothing
			continue
		}
		permissions = append(permissions, perm)
	}

	return permissions, rows.Err()
}
