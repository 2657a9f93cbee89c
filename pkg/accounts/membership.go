package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is a membership role as stored in account_memberships.role
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleStaff        Role = "staff"
	RoleAccountOwner Role = "account_owner"
	RoleUser         Role = "user"

	// RoleNone is returned by role resolution for users without memberships.
	// It is never stored.
	RoleNone Role = "none"
)

// RolePrecedence lists roles from most to least privileged
var RolePrecedence = []Role{RoleAdmin, RoleStaff, RoleAccountOwner, RoleUser}

// IsPlatformRole reports whether the role is only meaningful in the platform account
func (r Role) IsPlatformRole() bool {
	return r == RoleAdmin || r == RoleStaff
}

// IsAccountRole reports whether the role is only meaningful in a tenant account
func (r Role) IsAccountRole() bool {
	return r == RoleAccountOwner || r == RoleUser
}

// Valid reports whether the role may be stored
func (r Role) Valid() bool {
	return r.IsPlatformRole() || r.IsAccountRole()
}

// ErrInvalidMembership is returned when a stored (account, role) pair is not a legal membership
var ErrInvalidMembership = errors.New("invalid membership")

// Membership is either a PlatformMembership or an AccountMembership
type Membership interface {
	// Account returns the account the membership belongs to
	Account() uuid.UUID
	// MemberRole returns the role held through the membership
	MemberRole() Role
	isMembership()
}

// PlatformMembership confers platform-wide capabilities
type PlatformMembership struct {
	Role Role
}

func (m PlatformMembership) Account() uuid.UUID { return PlatformAccountID }
func (m PlatformMembership) MemberRole() Role   { return m.Role }
func (PlatformMembership) isMembership()        {}

// AccountMembership confers capabilities within a single tenant account
type AccountMembership struct {
	AccountID uuid.UUID
	Role      Role
}

func (m AccountMembership) Account() uuid.UUID { return m.AccountID }
func (m AccountMembership) MemberRole() Role   { return m.Role }
func (AccountMembership) isMembership()        {}

// NewMembership converts a flat (account_id, role) row into a Membership.
// admin and staff are only accepted in the platform account; account_owner and
// user only outside it.
func NewMembership(accountID uuid.UUID, role Role) (Membership, error) {
	switch {
	case accountID == PlatformAccountID && role.IsPlatformRole():
		return PlatformMembership{Role: role}, nil
	case accountID != PlatformAccountID && role.IsAccountRole():
		return AccountMembership{AccountID: accountID, Role: role}, nil
	default:
		return nil, fmt.Errorf("%w: role %q in account %s", ErrInvalidMembership, role, accountID)
	}
}

// MembershipRecord is a membership row with its bookkeeping columns
type MembershipRecord struct {
	UserID    uuid.UUID  `json:"user_id"`
	AccountID uuid.UUID  `json:"account_id"`
	Role      Role       `json:"role"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
}

// Membership returns the typed membership for the record
func (r MembershipRecord) Membership() (Membership, error) {
	return NewMembership(r.AccountID, r.Role)
}
