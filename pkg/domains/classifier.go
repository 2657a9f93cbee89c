package domains

import (
	"context"
	"errors"
	"strings"

	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var classifierTracer = otel.Tracer("gateway/domains/classifier")

// Classifier categorizes inbound hosts
type Classifier struct {
	marketing  string
	appDomains []string
	reserved   map[string]bool
	config     Config
	store      Store
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewClassifier creates a classifier from a validated config
func NewClassifier(config Config, store Store, logger *observability.Logger) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	marketing, _ := NormalizeHost(config.MarketingDomain)

	appDomains := make([]string, 0, len(config.AppDomains))
	for _, d := range config.AppDomains {
		normalized, _ := NormalizeHost(d)
		appDomains = append(appDomains, normalized)
	}

	reserved := make(map[string]bool, len(config.ReservedSubdomains))
	for _, label := range config.ReservedSubdomains {
		reserved[strings.ToLower(label)] = true
	}

	config.AppDomains = append([]string(nil), config.AppDomains...)
	config.ReservedSubdomains = append([]string(nil), config.ReservedSubdomains...)

	return &Classifier{
		marketing:  marketing,
		appDomains: appDomains,
		reserved:   reserved,
		config:     config,
		store:      store,
		logger:     logger,
	}, nil
}

// WithMetrics records classifications on m
func (c *Classifier) WithMetrics(m *observability.Metrics) *Classifier {
	c.metrics = m
	return c
}

// Config returns a copy of the classifier configuration
func (c *Classifier) Config() Config {
	config := c.config
	config.AppDomains = append([]string(nil), c.config.AppDomains...)
	config.ReservedSubdomains = append([]string(nil), c.config.ReservedSubdomains...)
	return config
}

// Classify categorizes host. Malformed hosts are Unmatched without error. A
// lookup failure or an ambiguous match is returned as an error together with
// the Unmatched classification.
//
// Resolution order:
//
//  1. app domains and their subdomains: ReservedApp
//  2. <label>.<marketing>: ReservedSubdomain for reserved labels, otherwise
//     PreviewDomain for the live project with that slug
//  3. <marketing> and www.<marketing>: ReservedRootDomain or Unmatched
//  4. a verified project domain: CustomDomain
//  5. the www. companion of a verified project domain: CustomDomain
func (c *Classifier) Classify(ctx context.Context, host string) (Classification, error) {
	ctx, span := classifierTracer.Start(ctx, "Classify",
		trace.WithAttributes(attribute.String("host", host)),
	)
	defer span.End()

	if c.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.LookupTimeout)
		defer cancel()
	}

	result, err := c.classify(ctx, host)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		c.logger.WithField("host", host).WithError(err).Warn("Domain classification failed")
		if c.metrics != nil {
			c.metrics.LookupFailuresTotal.WithLabelValues("domains").Inc()
		}
		result = Unmatched
	}

	span.SetAttributes(attribute.String("kind", string(result.Kind)))
	if result.Kind.ServesProject() {
		span.SetAttributes(attribute.String("project_id", result.ProjectID.String()))
	}
	if c.metrics != nil {
		c.metrics.DomainClassificationsTotal.WithLabelValues(string(result.Kind)).Inc()
	}

	return result, err
}

func (c *Classifier) classify(ctx context.Context, rawHost string) (Classification, error) {
	host, err := NormalizeHost(rawHost)
	if err != nil {
		return Unmatched, nil
	}

	for _, app := range c.appDomains {
		if isSubdomainOf(host, app) {
			return Classification{Kind: KindReservedApp, Name: host}, nil
		}
	}

	if label, ok := strings.CutSuffix(host, "."+c.marketing); ok {
		if c.reserved[label] {
			return Classification{Kind: KindReservedSubdomain, Name: label}, nil
		}
		if label == "www" {
			return c.reservedRoot(ctx, host)
		}
		if !accounts.IsValidSlug(label) {
			return Unmatched, nil
		}
		return c.preview(ctx, label)
	}

	if host == c.marketing {
		return c.reservedRoot(ctx, host)
	}

	return c.custom(ctx, host)
}

func (c *Classifier) preview(ctx context.Context, slug string) (Classification, error) {
	project, err := c.store.ProjectBySlug(ctx, slug)
	if errors.Is(err, ErrNotFound) {
		return Unmatched, nil
	}
	if err != nil {
		return Unmatched, err
	}
	return Classification{Kind: KindPreviewDomain, Name: slug, ProjectID: project.ID}, nil
}

// reservedRoot never falls through to the custom domain lookup
func (c *Classifier) reservedRoot(ctx context.Context, host string) (Classification, error) {
	project, err := c.store.ReservedRootProject(ctx, host)
	if errors.Is(err, ErrNotFound) {
		return Unmatched, nil
	}
	if err != nil {
		return Unmatched, err
	}
	return Classification{Kind: KindReservedRootDomain, Name: host, ProjectID: project.ID}, nil
}

func (c *Classifier) custom(ctx context.Context, host string) (Classification, error) {
	project, err := c.store.ProjectByVerifiedDomain(ctx, host)
	if err == nil {
		return Classification{Kind: KindCustomDomain, Name: host, ProjectID: project.ID}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Unmatched, err
	}

	companion := toggleWWW(host)
	project, err = c.store.ProjectByVerifiedDomain(ctx, companion)
	if errors.Is(err, ErrNotFound) {
		return Unmatched, nil
	}
	if err != nil {
		return Unmatched, err
	}
	return Classification{Kind: KindCustomDomain, Name: companion, ProjectID: project.ID}, nil
}
