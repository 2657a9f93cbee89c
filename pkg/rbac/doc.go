// Package rbac resolves roles and evaluates account-scoped permissions for the
// Wondrous platform.
//
// # Roles
//
// Roles come from account memberships (see package accounts). Platform roles,
// admin and staff, live in the platform account. Account roles, account_owner
// and user, live in tenant accounts. The Resolver answers two questions:
//
//	status, err := resolver.ResolveRole(ctx, userID)        // IsAdmin, IsStaff
//	role, err := resolver.ResolveHighestRole(ctx, userID)   // admin > staff > account_owner > user > none
//
// A backend failure is returned as an error wrapping ErrLookupFailed. It is
// never reported as "not admin" or "none".
//
// # Permissions
//
// Permissions are a closed set of resource:action constants (ProjectsCreate,
// DomainsManage, ...). The role to permission mapping is stored in the
// role_permissions table and joined at query time; SeedRolePermissions loads
// DefaultRolePermissions.
//
// The Checker evaluates in a fixed order:
//
//  1. platform admin: allowed in every account
//  2. no membership in the target account: denied
//  3. allowed iff the membership role maps to the permission
//
// Membership in one account never grants anything in another. HasPermission
// fails closed: any lookup error denies.
//
//	if err := checker.RequirePermission(ctx, user.ID, accountID, rbac.ProjectsPublish); err != nil {
//	    // *PermissionDeniedError
//	}
//
// # HTTP
//
// PermissionMiddleware guards routes carrying an {account_id} variable, and
// Handlers exposes GET /api/me/role and
// GET /api/accounts/{account_id}/permissions/{permission}.
package rbac
