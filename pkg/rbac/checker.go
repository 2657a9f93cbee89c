package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

// Denial reasons reported in PermissionCheckResult
const (
	ReasonAdminBypass  = "platform admin bypass"
	ReasonGranted      = "granted by role"
	ReasonNoMembership = "no membership in account"
	ReasonNotGranted   = "role does not grant permission"
)

// Checker evaluates account-scoped permissions
type Checker struct {
	resolver *Resolver
	grants   GrantStore
	logger   *observability.Logger
	metrics  *observability.Metrics
	audit    audit.Logger
	now      func() time.Time
}

// NewChecker creates a new permission checker
func NewChecker(resolver *Resolver, grants GrantStore, logger *observability.Logger) *Checker {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Checker{
		resolver: resolver,
		grants:   grants,
		logger:   logger,
		audit:    audit.NopLogger{},
		now:      time.Now,
	}
}

// WithMetrics records permission decisions on m
func (c *Checker) WithMetrics(m *observability.Metrics) *Checker {
	c.metrics = m
	return c
}

// WithAudit records denied and failed checks into a
func (c *Checker) WithAudit(a audit.Logger) *Checker {
	if a != nil {
		c.audit = a
	}
	return c
}

// Evaluate decides whether userID holds perm within accountID.
// Platform admins are allowed everywhere. Otherwise only the membership of
// userID in accountID is consulted.
func (c *Checker) Evaluate(ctx context.Context, userID, accountID uuid.UUID, perm Permission) (*PermissionCheckResult, error) {
	status, err := c.resolver.ResolveRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status.IsAdmin {
		return c.result(true, ReasonAdminBypass, accounts.RoleAdmin), nil
	}

	grant, err := c.grants.GetGrant(ctx, userID, accountID, perm)
	if errors.Is(err, accounts.ErrNotFound) {
		return c.result(false, ReasonNoMembership, accounts.RoleNone), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: user %s account %s: %v", ErrLookupFailed, userID, accountID, err)
	}

	// A row with a platform role outside the platform account is corrupt and grants nothing
	if _, err := accounts.NewMembership(grant.AccountID, grant.Role); err != nil {
		c.logger.WithField("user_id", userID.String()).
			WithField("account_id", accountID.String()).
			WithError(err).
			Warn("Ignoring invalid membership row")
		return c.result(false, ReasonNoMembership, accounts.RoleNone), nil
	}

	if !grant.Granted {
		return c.result(false, ReasonNotGranted, grant.Role), nil
	}
	return c.result(true, ReasonGranted, grant.Role), nil
}

// HasPermission reports whether the permission is held. Lookup failures deny.
func (c *Checker) HasPermission(ctx context.Context, userID, accountID uuid.UUID, perm Permission) bool {
	result, err := c.Evaluate(ctx, userID, accountID, perm)
	if err != nil {
		c.logger.WithField("user_id", userID.String()).
			WithField("account_id", accountID.String()).
			WithField("permission", perm.String()).
			WithError(err).
			Error("Permission check failed, denying")
		c.record(perm, "error")
		c.recordAudit(ctx, audit.EventTypePermissionError, audit.EventStatusFailure, userID, accountID, perm, err.Error(), accounts.RoleNone)
		return false
	}
	if result.Allowed {
		c.record(perm, "allowed")
	} else {
		c.record(perm, "denied")
		c.recordAudit(ctx, audit.EventTypePermissionDenied, audit.EventStatusDenied, userID, accountID, perm, result.Reason, result.Role)
	}
	return result.Allowed
}

// RequirePermission returns a *PermissionDeniedError unless the permission is held
func (c *Checker) RequirePermission(ctx context.Context, userID, accountID uuid.UUID, perm Permission) error {
	if !c.HasPermission(ctx, userID, accountID, perm) {
		return &PermissionDeniedError{Permission: perm.String()}
	}
	return nil
}

func (c *Checker) result(allowed bool, reason string, role accounts.Role) *PermissionCheckResult {
	return &PermissionCheckResult{
		Allowed:   allowed,
		Reason:    reason,
		Role:      role,
		CheckedAt: c.now(),
	}
}

func (c *Checker) recordAudit(
	ctx context.Context,
	eventType audit.EventType,
	status audit.EventStatus,
	userID, accountID uuid.UUID,
	perm Permission,
	reason string,
	role accounts.Role,
) {
	event := audit.NewEvent(ctx, eventType, status)
	event.UserID = userID.String()
	event.AccountID = accountID.String()
	event.Permission = perm.String()
	event.Reason = reason
	if role != accounts.RoleNone {
		event.Metadata = map[string]string{"role": string(role)}
	}
	if err := c.audit.Log(ctx, event); err != nil {
		c.logger.WithError(err).Warn("Failed to record audit event")
	}
}

func (c *Checker) record(perm Permission, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.PermissionChecksTotal.WithLabelValues(perm.String(), outcome).Inc()
}
