package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

// Resolver determines platform and account roles from the membership relation.
// Every call re-queries the store.
type Resolver struct {
	memberships MembershipLister
	logger      *observability.Logger
}

// NewResolver creates a new role resolver
func NewResolver(memberships MembershipLister, logger *observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Resolver{
		memberships: memberships,
		logger:      logger,
	}
}

// ResolveRole reports whether the user is platform admin and/or staff.
// Admin implies staff.
func (r *Resolver) ResolveRole(ctx context.Context, userID uuid.UUID) (RoleStatus, error) {
	memberships, err := r.load(ctx, userID)
	if err != nil {
		return RoleStatus{}, err
	}

	var status RoleStatus
	for _, m := range memberships {
		pm, ok := m.(accounts.PlatformMembership)
		if !ok {
			continue
		}
		switch pm.Role {
		case accounts.RoleAdmin:
			status.IsAdmin = true
			status.IsStaff = true
		case accounts.RoleStaff:
			status.IsStaff = true
		}
	}

	return status, nil
}

// ResolveHighestRole returns the most privileged role the user holds in any
// account, or accounts.RoleNone.
func (r *Resolver) ResolveHighestRole(ctx context.Context, userID uuid.UUID) (accounts.Role, error) {
	memberships, err := r.load(ctx, userID)
	if err != nil {
		return accounts.RoleNone, err
	}

	held := make(map[accounts.Role]bool, len(memberships))
	for _, m := range memberships {
		held[m.MemberRole()] = true
	}

	for _, role := range accounts.RolePrecedence {
		if held[role] {
			return role, nil
		}
	}

	return accounts.RoleNone, nil
}

func (r *Resolver) load(ctx context.Context, userID uuid.UUID) ([]accounts.Membership, error) {
	records, err := r.memberships.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %v", ErrLookupFailed, userID, err)
	}

	memberships := make([]accounts.Membership, 0, len(records))
	for _, record := range records {
		m, err := record.Membership()
		if err != nil {
			r.logger.WithField("user_id", userID.String()).
				WithField("account_id", record.AccountID.String()).
				WithError(err).
				Warn("Ignoring invalid membership row")
			continue
		}
		memberships = append(memberships, m)
	}

	return memberships, nil
}
