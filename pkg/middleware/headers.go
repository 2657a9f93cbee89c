package middleware

import "net/http"

var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"X-XSS-Protection", "0"},
}

// SetSecurityHeaders sets the browser hardening headers on w. It must run
// before anything is written.
func SetSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	for _, kv := range securityHeaders {
		h.Set(kv[0], kv[1])
	}
}

// SecurityHeaders applies SetSecurityHeaders to every response
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSecurityHeaders(w)
		next.ServeHTTP(w, r)
	})
}
