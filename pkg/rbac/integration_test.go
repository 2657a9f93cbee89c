//go:build integration

package rbac

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/storage/postgres"
)

func addMember(t *testing.T, db *sql.DB, userID, accountID uuid.UUID, role accounts.Role) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO account_memberships (user_id, account_id, role) VALUES ($1, $2, $3)`,
		userID, accountID, role,
	)
	require.NoError(t, err)
}

func TestIntegration_Manager(t *testing.T) {
	db := postgres.SetupPostgresContainer(t, Initialize)
	ctx := context.Background()

	// Seeding twice keeps the mapping unchanged
	require.NoError(t, SeedRolePermissions(ctx, db))

	acme := uuid.New()
	other := uuid.New()
	for _, id := range []uuid.UUID{acme, other} {
		_, err := db.Exec(`INSERT INTO accounts (id, name, slug) VALUES ($1, $2, $3)`, id, id.String(), "a-"+id.String()[:8])
		require.NoError(t, err)
	}

	admin := uuid.New()
	staff := uuid.New()
	owner := uuid.New()
	member := uuid.New()
	stranger := uuid.New()
	addMember(t, db, admin, accounts.PlatformAccountID, accounts.RoleAdmin)
	addMember(t, db, staff, accounts.PlatformAccountID, accounts.RoleStaff)
	addMember(t, db, owner, acme, accounts.RoleAccountOwner)
	addMember(t, db, member, acme, accounts.RoleUser)
	addMember(t, db, member, other, accounts.RoleAccountOwner)

	m := NewManager(db, nil, nil)

	t.Run("role resolution", func(t *testing.T) {
		status, err := m.GetResolver().ResolveRole(ctx, admin)
		require.NoError(t, err)
		assert.True(t, status.IsAdmin)
		assert.True(t, status.IsStaff)

		status, err = m.GetResolver().ResolveRole(ctx, staff)
		require.NoError(t, err)
		assert.False(t, status.IsAdmin)
		assert.True(t, status.IsStaff)

		role, err := m.GetResolver().ResolveHighestRole(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, accounts.RoleAccountOwner, role)

		role, err = m.GetResolver().ResolveHighestRole(ctx, stranger)
		require.NoError(t, err)
		assert.Equal(t, accounts.RoleNone, role)
	})

	t.Run("permission checks", func(t *testing.T) {
		checker := m.GetChecker()

		assert.True(t, checker.HasPermission(ctx, admin, acme, BillingManage))
		assert.True(t, checker.HasPermission(ctx, owner, acme, BillingManage))
		assert.True(t, checker.HasPermission(ctx, member, acme, ProjectsRead))
		assert.False(t, checker.HasPermission(ctx, stranger, acme, ProjectsRead))

		// Ownership elsewhere never leaks into acme
		result, err := checker.Evaluate(ctx, member, acme, BillingManage)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonNotGranted, result.Reason)

		result, err = checker.Evaluate(ctx, member, other, BillingManage)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("seeded role permissions", func(t *testing.T) {
		perms, err := m.GetStore().ListRolePermissions(ctx, accounts.RoleAccountOwner)
		require.NoError(t, err)
		assert.ElementsMatch(t, DefaultRolePermissions()[accounts.RoleAccountOwner], perms)
	})
}
