package rbac

import (
	"fmt"
	"strings"
	"time"

	"github.com/wondrousdigital/gateway/pkg/accounts"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceAccount Resource = "account"
	ResourceUsers   Resource = "users"
	ResourceProject Resource = "projects"
	ResourceDomains Resource = "domains"
	ResourceBilling Resource = "billing"
	ResourceThemes  Resource = "themes"
	ResourceLab     Resource = "lab"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionPublish    Action = "publish"
	ActionManage     Action = "manage"
	ActionInvite     Action = "invite"
	ActionRemove     Action = "remove"
	ActionUpdateRole Action = "update_role"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the stored form, "resource:action"
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Known permissions. role_permissions rows outside this set are never granted.
var (
	AccountRead   = Permission{ResourceAccount, ActionRead}
	AccountUpdate = Permission{ResourceAccount, ActionUpdate}
	AccountDelete = Permission{ResourceAccount, ActionDelete}

	UsersRead       = Permission{ResourceUsers, ActionRead}
	UsersInvite     = Permission{ResourceUsers, ActionInvite}
	UsersRemove     = Permission{ResourceUsers, ActionRemove}
	UsersUpdateRole = Permission{ResourceUsers, ActionUpdateRole}

	ProjectsRead    = Permission{ResourceProject, ActionRead}
	ProjectsCreate  = Permission{ResourceProject, ActionCreate}
	ProjectsUpdate  = Permission{ResourceProject, ActionUpdate}
	ProjectsDelete  = Permission{ResourceProject, ActionDelete}
	ProjectsPublish = Permission{ResourceProject, ActionPublish}

	DomainsRead   = Permission{ResourceDomains, ActionRead}
	DomainsManage = Permission{ResourceDomains, ActionManage}

	BillingRead   = Permission{ResourceBilling, ActionRead}
	BillingManage = Permission{ResourceBilling, ActionManage}

	ThemesRead   = Permission{ResourceThemes, ActionRead}
	ThemesManage = Permission{ResourceThemes, ActionManage}

	LabRead   = Permission{ResourceLab, ActionRead}
	LabManage = Permission{ResourceLab, ActionManage}
)

// AllPermissions returns every known permission
func AllPermissions() []Permission {
	return []Permission{
		AccountRead, AccountUpdate, AccountDelete,
		UsersRead, UsersInvite, UsersRemove, UsersUpdateRole,
		ProjectsRead, ProjectsCreate, ProjectsUpdate, ProjectsDelete, ProjectsPublish,
		DomainsRead, DomainsManage,
		BillingRead, BillingManage,
		ThemesRead, ThemesManage,
		LabRead, LabManage,
	}
}

var knownPermissions = func() map[string]Permission {
	m := make(map[string]Permission)
	for _, p := range AllPermissions() {
		m[p.String()] = p
	}
	return m
}()

// ParsePermission parses "resource:action" into a known permission
func ParsePermission(s string) (Permission, error) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("%w: %q is not resource:action", ErrUnknownPermission, s)
	}
	p, ok := knownPermissions[s]
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// MustParsePermission is ParsePermission for static strings
func MustParsePermission(s string) Permission {
	p, err := ParsePermission(s)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultRolePermissions is the seed for the role_permissions table
func DefaultRolePermissions() map[accounts.Role][]Permission {
	return map[accounts.Role][]Permission{
		accounts.RoleAdmin: AllPermissions(),
		accounts.RoleStaff: {
			AccountRead, UsersRead,
			ProjectsRead, ProjectsUpdate,
			DomainsRead, BillingRead,
			ThemesRead, ThemesManage,
			LabRead, LabManage,
		},
		accounts.RoleAccountOwner: {
			AccountRead, AccountUpdate, AccountDelete,
			UsersRead, UsersInvite, UsersRemove, UsersUpdateRole,
			ProjectsRead, ProjectsCreate, ProjectsUpdate, ProjectsDelete, ProjectsPublish,
			DomainsRead, DomainsManage,
			BillingRead, BillingManage,
			ThemesRead, ThemesManage,
			LabRead,
		},
		accounts.RoleUser: {
			AccountRead, UsersRead,
			ProjectsRead, ProjectsCreate, ProjectsUpdate,
			DomainsRead,
			ThemesRead,
			LabRead,
		},
	}
}

// RoleStatus is the platform standing of a user
type RoleStatus struct {
	IsAdmin bool `json:"is_admin"`
	IsStaff bool `json:"is_staff"`
}

// PermissionCheckResult represents the result of a permission check
type PermissionCheckResult struct {
	Allowed   bool          `json:"allowed"`
	Reason    string        `json:"reason,omitempty"`
	Role      accounts.Role `json:"role,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}
