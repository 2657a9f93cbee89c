package domains

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
)

var (
	// ErrNotFound is returned by a Store when no row matches
	ErrNotFound = errors.New("domain not found")

	// ErrAmbiguousMatch is returned by a Store when more than one row matches
	ErrAmbiguousMatch = errors.New("ambiguous domain match")

	// ErrLookupFailed wraps backend failures. It is distinct from ErrNotFound.
	ErrLookupFailed = errors.New("domain lookup failed")

	// ErrMalformedHost is returned by NormalizeHost
	ErrMalformedHost = errors.New("malformed host")

	// ErrInvalidConfig is returned by Config.Validate
	ErrInvalidConfig = errors.New("invalid domain config")
)

// Kind is the category of an inbound host
type Kind string

const (
	KindReservedApp        Kind = "reserved_app"
	KindReservedSubdomain  Kind = "reserved_subdomain"
	KindPreviewDomain      Kind = "preview_domain"
	KindReservedRootDomain Kind = "reserved_root_domain"
	KindCustomDomain       Kind = "custom_domain"
	KindUnmatched          Kind = "unmatched"
)

// ServesProject reports whether hosts of this kind are rewritten to a project site
func (k Kind) ServesProject() bool {
	switch k {
	case KindPreviewDomain, KindCustomDomain, KindReservedRootDomain:
		return true
	}
	return false
}

// IsApp reports whether hosts of this kind serve the application itself
func (k Kind) IsApp() bool {
	return k == KindReservedApp || k == KindReservedSubdomain
}

// Classification is the result of classifying a host.
// ProjectID is set iff Kind.ServesProject().
type Classification struct {
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name,omitempty"`
	ProjectID uuid.UUID `json:"project_id,omitempty"`
}

// Unmatched is the zero-information classification
var Unmatched = Classification{Kind: KindUnmatched}

// Config is the routing configuration of the classifier. It is copied and
// normalized by NewClassifier and never changes afterwards.
type Config struct {
	// MarketingDomain is the apex domain, e.g. "wondrousdigital.com"
	MarketingDomain string `yaml:"marketing_domain"`

	// AppDomains are hosts (and their subdomains) serving the application
	AppDomains []string `yaml:"app_domains"`

	// ReservedSubdomains are labels under MarketingDomain owned by the platform
	ReservedSubdomains []string `yaml:"reserved_subdomains"`

	// LookupTimeout bounds each classification. Zero means no extra bound.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// Validate checks that the config is usable
func (c Config) Validate() error {
	if strings.TrimSpace(c.MarketingDomain) == "" {
		return fmt.Errorf("%w: marketing domain is required", ErrInvalidConfig)
	}
	marketing, err := NormalizeHost(c.MarketingDomain)
	if err != nil {
		return fmt.Errorf("%w: marketing domain %q: %v", ErrInvalidConfig, c.MarketingDomain, err)
	}
	if len(c.AppDomains) == 0 {
		return fmt.Errorf("%w: at least one app domain is required", ErrInvalidConfig)
	}
	for _, d := range c.AppDomains {
		app, err := NormalizeHost(d)
		if err != nil {
			return fmt.Errorf("%w: app domain %q: %v", ErrInvalidConfig, d, err)
		}
		// An app domain covering the marketing domain would swallow every preview host
		if isSubdomainOf(marketing, app) {
			return fmt.Errorf("%w: app domain %q covers marketing domain %q", ErrInvalidConfig, d, c.MarketingDomain)
		}
	}
	if len(c.ReservedSubdomains) == 0 {
		return fmt.Errorf("%w: reserved subdomains are required", ErrInvalidConfig)
	}
	for _, label := range c.ReservedSubdomains {
		if !accounts.IsValidSlug(strings.ToLower(label)) {
			return fmt.Errorf("%w: reserved subdomain %q is not a DNS label", ErrInvalidConfig, label)
		}
	}
	if c.LookupTimeout < 0 {
		return fmt.Errorf("%w: lookup timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultReservedSubdomains are the labels reserved on the marketing domain
func DefaultReservedSubdomains() []string {
	return []string{
		"www", "app", "api", "admin", "dashboard", "auth", "login",
		"signup", "mail", "email", "blog", "docs", "help", "support",
		"status", "cdn", "static", "assets", "staging", "dev", "test",
	}
}
