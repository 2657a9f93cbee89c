// Package accounts holds the tenancy data model read by the gateway: accounts,
// memberships, projects and their domains.
//
// # Memberships
//
// Storage is a flat account_memberships(user_id, account_id, role) table. In code
// a row becomes either a PlatformMembership (admin or staff in the platform
// account, PlatformAccountID) or an AccountMembership (account_owner or user in
// a tenant account). Any other combination is rejected by NewMembership:
//
//	m, err := accounts.NewMembership(row.AccountID, row.Role)
//	if errors.Is(err, accounts.ErrInvalidMembership) {
//	    // confers nothing
//	}
//
// # Slugs
//
// Account and project slugs double as DNS labels under the marketing domain,
// see ValidateSlug.
package accounts
