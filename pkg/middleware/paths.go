package middleware

import (
	"path"
	"strings"
)

var staticPrefixes = []string{"/_next/", "/images/", "/img/", "/static/"}

var staticExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".ico":  true,
	".webp": true,
}

// DefaultPublicRoutes are app pages reachable without a session. Entries
// ending in "/" match a whole subtree.
func DefaultPublicRoutes() []string {
	return []string{
		"/login",
		"/signup",
		"/forgot-password",
		"/reset-password",
		"/auth/",
		"/invitation/",
		"/pricing",
		"/payment/",
	}
}

// DefaultCSRFExemptRoutes are API routes that accept mutations without a
// CSRF token
func DefaultCSRFExemptRoutes() []string {
	return []string{
		"/api/webhooks/",
		"/api/csrf",
		"/api/auth/callback",
	}
}

// ratePolicyRoutes maps API path prefixes to policy names, first match wins
var ratePolicyRoutes = []struct {
	prefix string
	policy string
}{
	{"/api/auth/signup", PolicySignup},
	{"/api/auth/login", PolicyLogin},
	{"/api/auth/reset-password", PolicyPasswordReset},
	{"/api/auth/forgot-password", PolicyPasswordReset},
}

// IsAPIPath reports whether p is /api or below it
func IsAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// IsStaticAsset reports whether p is a static asset served without routing
func IsStaticAsset(p string) bool {
	if p == "/favicon.ico" {
		return true
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

// matchRoute matches p against a route entry. "/auth/" matches "/auth" and
// everything below it; "/login" matches only itself.
func matchRoute(p, route string) bool {
	if strings.HasSuffix(route, "/") {
		return p == strings.TrimSuffix(route, "/") || strings.HasPrefix(p, route)
	}
	return p == route
}

func matchAny(p string, routes []string) bool {
	for _, route := range routes {
		if matchRoute(p, route) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches prefix on a segment boundary
func hasPathPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// ratePolicyName selects the rate limit policy for an API path
func ratePolicyName(p string) string {
	for _, route := range ratePolicyRoutes {
		if hasPathPrefix(p, route.prefix) {
			return route.policy
		}
	}
	return PolicyAPI
}
