package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/wondrousdigital/gateway/pkg/httputil"
)

// CSRF double-submit token names
const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

const csrfTokenBytes = 32

// CSRFTokenResponse is the body of GET /api/csrf
type CSRFTokenResponse struct {
	Token string `json:"csrf_token"`
}

// CSRF issues and validates double-submit tokens
type CSRF struct {
	secureCookie bool
}

// NewCSRF creates a CSRF guard. secureCookie marks the token cookie Secure.
func NewCSRF(secureCookie bool) *CSRF {
	return &CSRF{secureCookie: secureCookie}
}

// GenerateCSRFToken returns a random hex token
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IssueToken handles GET /api/csrf. The cookie stays readable by scripts so
// the client can echo it in the header.
func (c *CSRF) IssueToken(w http.ResponseWriter, r *http.Request) {
	token, err := GenerateCSRFToken()
	if err != nil {
		httputil.WriteServiceUnavailable(w, "csrf token unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   c.secureCookie,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteSuccess(w, CSRFTokenResponse{Token: token})
}

// Valid reports whether the header token matches the cookie token
func (c *CSRF) Valid(r *http.Request) bool {
	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return false
	}
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) == 1
}

// requiresCSRF reports whether method mutates state
func requiresCSRF(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
