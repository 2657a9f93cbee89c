package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAPIPath(t *testing.T) {
	assert.True(t, IsAPIPath("/api"))
	assert.True(t, IsAPIPath("/api/auth/login"))
	assert.False(t, IsAPIPath("/apiary"))
	assert.False(t, IsAPIPath("/"))
}

func TestIsStaticAsset(t *testing.T) {
	tests := map[string]bool{
		"/_next/static/chunk.js": true,
		"/images/hero":           true,
		"/img/a.txt":             true,
		"/static/app.css":        true,
		"/favicon.ico":           true,
		"/logo.PNG":              true,
		"/photos/cat.webp":       true,
		"/about":                 false,
		"/":                      false,
		"/docs/readme.md":        false,
	}

	for p, expected := range tests {
		assert.Equal(t, expected, IsStaticAsset(p), p)
	}
}

func TestMatchRoute(t *testing.T) {
	public := DefaultPublicRoutes()

	assert.True(t, matchAny("/login", public))
	assert.False(t, matchAny("/login/extra", public))
	assert.False(t, matchAny("/loginx", public))
	assert.True(t, matchAny("/auth", public))
	assert.True(t, matchAny("/auth/callback", public))
	assert.False(t, matchAny("/authority", public))
	assert.True(t, matchAny("/invitation/abc123", public))
	assert.True(t, matchAny("/payment/success", public))
	assert.True(t, matchAny("/pricing", public))
	assert.False(t, matchAny("/dashboard", public))

	exempt := DefaultCSRFExemptRoutes()
	assert.True(t, matchAny("/api/webhooks/stripe", exempt))
	assert.True(t, matchAny("/api/csrf", exempt))
	assert.True(t, matchAny("/api/auth/callback", exempt))
	assert.False(t, matchAny("/api/auth/login", exempt))
}

func TestRatePolicyName(t *testing.T) {
	tests := map[string]string{
		"/api/auth/signup":          PolicySignup,
		"/api/auth/signup/verify":   PolicySignup,
		"/api/auth/login":           PolicyLogin,
		"/api/auth/reset-password":  PolicyPasswordReset,
		"/api/auth/forgot-password": PolicyPasswordReset,
		"/api/auth/loginx":          PolicyAPI,
		"/api/projects":             PolicyAPI,
		"/api":                      PolicyAPI,
	}

	for p, expected := range tests {
		assert.Equal(t, expected, ratePolicyName(p), p)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assertSecurityHeaders(t, w)
}

func assertSecurityHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", w.Header().Get("Permissions-Policy"))
	assert.Equal(t, "0", w.Header().Get("X-XSS-Protection"))
}
