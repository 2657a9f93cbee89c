package accounts

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema read by the gateway
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(63) NOT NULL UNIQUE
						CHECK (slug ~ '^[a-z0-9]([a-z0-9-]*[a-z0-9])?$'),
					plan_tier VARCHAR(32) NOT NULL DEFAULT 'free',
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create account_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS account_memberships (
					user_id UUID NOT NULL,
					account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					role VARCHAR(32) NOT NULL
						CHECK (role IN ('admin', 'staff', 'account_owner', 'user')),
					invited_by UUID,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, account_id)
				);

				CREATE INDEX IF NOT EXISTS idx_account_memberships_account_id ON account_memberships(account_id);
			`,
		},
		{
			Version:     3,
			Description: "Create role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role VARCHAR(32) NOT NULL,
					permission VARCHAR(64) NOT NULL,
					PRIMARY KEY (role, permission)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create projects and project_domains tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id UUID PRIMARY KEY,
					account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(63) NOT NULL UNIQUE
						CHECK (slug ~ '^[a-z0-9]([a-z0-9-]*[a-z0-9])?$'),
					archived_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_projects_account_id ON projects(account_id);

				CREATE TABLE IF NOT EXISTS project_domains (
					id UUID PRIMARY KEY,
					project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					domain VARCHAR(253) NOT NULL UNIQUE,
					verified BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create reserved_domain_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS reserved_domain_permissions (
					id UUID PRIMARY KEY,
					account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					domain VARCHAR(253) NOT NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (account_id, domain)
				);

				CREATE INDEX IF NOT EXISTS idx_reserved_domain_permissions_domain ON reserved_domain_permissions(domain);
			`,
		},
		{
			Version:     6,
			Description: "Seed platform account",
			SQL: `
				INSERT INTO accounts (id, name, slug, plan_tier)
				VALUES ('00000000-0000-0000-0000-000000000000', 'Wondrous Digital', 'wondrous-digital', 'enterprise')
				ON CONFLICT (id) DO NOTHING;
			`,
		},
	}
}

// RunMigrations applies all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gateway_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM gateway_migrations")
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO gateway_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
