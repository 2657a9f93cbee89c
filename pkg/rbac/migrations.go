package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/wondrousdigital/gateway/pkg/accounts"
)

// SeedRolePermissions loads DefaultRolePermissions into role_permissions.
// Existing rows are kept; the seed is idempotent.
func SeedRolePermissions(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	defaults := DefaultRolePermissions()
	roles := make([]accounts.Role, 0, len(defaults))
	for role := range defaults {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	for _, role := range roles {
		for _, perm := range defaults[role] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO role_permissions (role, permission) VALUES ($1, $2)
				 ON CONFLICT (role, permission) DO NOTHING`,
				role, perm.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to seed %s %s: %w", role, perm, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role permissions: %w", err)
	}

	return nil
}

// Initialize applies the schema and seeds role_permissions
func Initialize(ctx context.Context, db *sql.DB) error {
	if err := accounts.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := SeedRolePermissions(ctx, db); err != nil {
		return fmt.Errorf("failed to seed role permissions: %w", err)
	}
	return nil
}
