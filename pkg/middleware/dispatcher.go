package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/contextkeys"
	"github.com/wondrousdigital/gateway/pkg/domains"
	"github.com/wondrousdigital/gateway/pkg/httputil"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

// SitesPrefix is the internal path prefix project sites are served under
const SitesPrefix = "/sites/"

// LoginPath is where page requests without a session are sent
const LoginPath = "/login"

// Dispatch branches and outcomes, used as metric labels
const (
	branchAPI    = "api"
	branchStatic = "static"
	branchPage   = "page"

	outcomePassthrough   = "passthrough"
	outcomeRateLimited   = "rate_limited"
	outcomeCSRFRejected  = "csrf_rejected"
	outcomePublic        = "public"
	outcomeAuthenticated = "authenticated"
	outcomeLoginRedirect = "login_redirect"
	outcomeRewritten     = "rewritten"
	outcomeNotFound      = "not_found"
)

// HostClassifier classifies inbound hosts
type HostClassifier interface {
	Classify(ctx context.Context, host string) (domains.Classification, error)
}

// Limiter counts requests against a policy
type Limiter interface {
	Allow(ctx context.Context, policy RateLimitPolicy, key string) (RateLimitResult, error)
}

// DispatcherConfig holds the routing rules of the Dispatcher
type DispatcherConfig struct {
	// PublicRoutes are app pages served without a session
	PublicRoutes []string
	// CSRFExemptRoutes are API routes that skip the CSRF check
	CSRFExemptRoutes []string
	// RateLimits overrides the default policies by name
	RateLimits map[string]RateLimitPolicy
	// TrustProxy uses X-Forwarded-For and X-Real-IP for the client address
	TrustProxy bool
}

// DefaultDispatcherConfig returns the built-in routing rules
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PublicRoutes:     DefaultPublicRoutes(),
		CSRFExemptRoutes: DefaultCSRFExemptRoutes(),
		RateLimits:       DefaultRateLimitPolicies(),
	}
}

// Dispatcher is the single entry point for inbound requests. API requests
// are rate limited and CSRF checked; page requests are routed by host.
type Dispatcher struct {
	classifier   HostClassifier
	limiter      Limiter
	csrf         *CSRF
	sessions     SessionStore
	policies     map[string]RateLimitPolicy
	publicRoutes []string
	csrfExempt   []string
	trustProxy   bool
	logger       *observability.Logger
	metrics      *observability.Metrics
	audit        audit.Logger
}

// NewDispatcher creates a Dispatcher. Policies missing from config fall back
// to the defaults.
func NewDispatcher(
	classifier HostClassifier,
	limiter Limiter,
	csrf *CSRF,
	sessions SessionStore,
	config DispatcherConfig,
	logger *observability.Logger,
) (*Dispatcher, error) {
	if classifier == nil || limiter == nil || csrf == nil || sessions == nil {
		return nil, errors.New("dispatcher requires a classifier, limiter, csrf guard and session store")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	policies := DefaultRateLimitPolicies()
	for name, policy := range config.RateLimits {
		if policy.Name == "" {
			policy.Name = name
		}
		if policy.Name != name {
			return nil, fmt.Errorf("rate limit policy %q registered as %q", policy.Name, name)
		}
		if err := policy.Validate(); err != nil {
			return nil, err
		}
		policies[name] = policy
	}

	publicRoutes := config.PublicRoutes
	if publicRoutes == nil {
		publicRoutes = DefaultPublicRoutes()
	}
	csrfExempt := config.CSRFExemptRoutes
	if csrfExempt == nil {
		csrfExempt = DefaultCSRFExemptRoutes()
	}

	return &Dispatcher{
		classifier:   classifier,
		limiter:      limiter,
		csrf:         csrf,
		sessions:     sessions,
		policies:     policies,
		publicRoutes: append([]string(nil), publicRoutes...),
		csrfExempt:   append([]string(nil), csrfExempt...),
		trustProxy:   config.TrustProxy,
		logger:       logger,
		audit:        audit.NopLogger{},
	}, nil
}

// WithMetrics records dispatch outcomes into m
func (d *Dispatcher) WithMetrics(m *observability.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithAudit records rejected requests into a
func (d *Dispatcher) WithAudit(a audit.Logger) *Dispatcher {
	if a != nil {
		d.audit = a
	}
	return d
}

// Handler wraps next with dispatching
func (d *Dispatcher) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSecurityHeaders(w)

		switch p := r.URL.Path; {
		case IsAPIPath(p):
			d.serveAPI(w, r, next)
		case IsStaticAsset(p):
			d.record(branchStatic, outcomePassthrough)
			next.ServeHTTP(w, r)
		default:
			d.servePage(w, r, next)
		}
	})
}

func (d *Dispatcher) serveAPI(w http.ResponseWriter, r *http.Request, next http.Handler) {
	policy := d.policies[ratePolicyName(r.URL.Path)]
	key := clientIP(r, d.trustProxy)

	result, err := d.limiter.Allow(r.Context(), policy, key)
	if err != nil {
		d.logger.WithError(err).
			WithField("policy", policy.Name).
			Warn("Rate limiter unavailable, denying request")
		if d.metrics != nil {
			d.metrics.LookupFailuresTotal.WithLabelValues("ratelimit").Inc()
		}
		event := audit.NewRequestEvent(r, key, audit.EventTypeRateLimited, audit.EventStatusFailure)
		event.Reason = "limiter unavailable"
		event.Metadata = map[string]string{"policy": policy.Name}
		d.recordAudit(r, event)
		d.rejectRateLimited(w, policy, policy.Window)
		return
	}

	writeRateLimitHeaders(w, result)
	if !result.Allowed {
		event := audit.NewRequestEvent(r, key, audit.EventTypeRateLimited, audit.EventStatusDenied)
		event.Reason = "limit exceeded"
		event.Metadata = map[string]string{"policy": policy.Name}
		d.recordAudit(r, event)
		d.rejectRateLimited(w, policy, result.ResetAfter)
		return
	}

	if requiresCSRF(r.Method) && !matchAny(r.URL.Path, d.csrfExempt) && !d.csrf.Valid(r) {
		if d.metrics != nil {
			d.metrics.CSRFRejectionsTotal.Inc()
		}
		d.record(branchAPI, outcomeCSRFRejected)
		event := audit.NewRequestEvent(r, key, audit.EventTypeCSRFRejected, audit.EventStatusDenied)
		event.Reason = "invalid csrf token"
		d.recordAudit(r, event)
		httputil.WriteForbidden(w, "invalid csrf token")
		return
	}

	d.record(branchAPI, outcomePassthrough)
	next.ServeHTTP(w, r)
}

func (d *Dispatcher) rejectRateLimited(w http.ResponseWriter, policy RateLimitPolicy, retryAfter time.Duration) {
	if d.metrics != nil {
		d.metrics.RateLimitRejectionsTotal.WithLabelValues(policy.Name).Inc()
	}
	d.record(branchAPI, outcomeRateLimited)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}

func (d *Dispatcher) servePage(w http.ResponseWriter, r *http.Request, next http.Handler) {
	classification, err := d.classify(r)
	if err != nil {
		event := audit.NewRequestEvent(r, clientIP(r, d.trustProxy), audit.EventTypeSiteLookupFailed, audit.EventStatusFailure)
		event.Reason = err.Error()
		d.recordAudit(r, event)
		d.notFound(w)
		return
	}

	switch {
	case classification.Kind.IsApp():
		d.serveApp(w, r, next)
	case classification.Kind.ServesProject() && classification.ProjectID != uuid.Nil:
		d.record(branchPage, outcomeRewritten)
		next.ServeHTTP(w, rewriteToSite(r, classification))
	default:
		d.notFound(w)
	}
}

// classify never panics; a panicking classifier yields an error
func (d *Dispatcher) classify(r *http.Request) (classification domains.Classification, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = observability.LogRecovered(d.logger.WithField("host", r.Host), "domain classification", rec)
			classification = domains.Unmatched
		}
	}()
	return d.classifier.Classify(r.Context(), r.Host)
}

func (d *Dispatcher) serveApp(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if matchAny(r.URL.Path, d.publicRoutes) {
		d.record(branchPage, outcomePublic)
		next.ServeHTTP(w, r)
		return
	}

	user, err := d.sessions.CurrentUser(r)
	if err != nil || user == nil {
		d.record(branchPage, outcomeLoginRedirect)
		http.Redirect(w, r, loginRedirect(r), http.StatusFound)
		return
	}

	d.record(branchPage, outcomeAuthenticated)
	next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
}

func (d *Dispatcher) notFound(w http.ResponseWriter) {
	d.record(branchPage, outcomeNotFound)
	httputil.WriteNotFoundError(w, "site not found")
}

// recordAudit never fails the request
func (d *Dispatcher) recordAudit(r *http.Request, event *audit.Event) {
	if err := d.audit.Log(r.Context(), event); err != nil {
		d.logger.WithError(err).WithField("event_type", string(event.Type)).Warn("Failed to record audit event")
	}
}

func (d *Dispatcher) record(branch, outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchTotal.WithLabelValues(branch, outcome).Inc()
	}
}

// loginRedirect builds /login?redirectTo=<original path and query>
func loginRedirect(r *http.Request) string {
	return LoginPath + "?redirectTo=" + url.QueryEscape(r.URL.RequestURI())
}

// rewriteToSite maps the request onto /sites/<project id><path>, keeping the
// query and host. The classification travels in the context.
func rewriteToSite(r *http.Request, classification domains.Classification) *http.Request {
	ctx := contextkeys.WithClassification(r.Context(), classification)
	rewritten := r.Clone(ctx)

	prefix := SitesPrefix + classification.ProjectID.String()
	cleaned := cleanPath(r.URL.Path)
	rewritten.URL.Path = prefix + cleaned
	rewritten.URL.RawPath = ""
	if r.URL.RawPath != "" && cleaned == r.URL.Path {
		rewritten.URL.RawPath = prefix + r.URL.RawPath
	}
	rewritten.RequestURI = rewritten.URL.RequestURI()
	return rewritten
}

// cleanPath resolves dot segments and repeated slashes so the router never
// redirects a rewritten request. A trailing slash is kept.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if p[len(p)-1] == '/' && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// GetClassification returns the host classification of a rewritten request
func GetClassification(r *http.Request) (domains.Classification, bool) {
	classification, ok := r.Context().Value(contextkeys.ClassificationKey).(domains.Classification)
	return classification, ok
}
