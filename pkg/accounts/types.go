package accounts

import (
	"time"

	"github.com/google/uuid"
)

// PlatformAccountID identifies the operator account. Memberships in this
// account carry platform-wide roles.
var PlatformAccountID = uuid.Nil

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Account represents a tenant
type Account struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	PlanTier  PlanTier       `json:"plan_tier"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsPlatform reports whether the account is the operator account
func (a *Account) IsPlatform() bool {
	return a.ID == PlatformAccountID
}

// User is the subset of the auth provider's identity consumed here
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Project is a site owned by exactly one account
type Project struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsArchived reports whether the project has been taken offline
func (p *Project) IsArchived() bool {
	return p.ArchivedAt != nil
}

// ProjectDomain binds a custom domain to a project. Only verified domains are routable.
type ProjectDomain struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Domain    string    `json:"domain"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// ReservedDomainPermission grants an account the right to serve a site on one of
// the platform's own domains.
type ReservedDomainPermission struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Domain    string    `json:"domain"`
	GrantedAt time.Time `json:"granted_at"`
}
