package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/contextkeys"
	"github.com/wondrousdigital/gateway/pkg/httputil"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "wd_session"

// MinSessionSecretLength is the shortest accepted HS256 signing secret
const MinSessionSecretLength = 32

// ErrNoSession is returned when a request carries no valid session
var ErrNoSession = errors.New("no valid session")

// SessionStore resolves the user behind a request
type SessionStore interface {
	CurrentUser(r *http.Request) (*accounts.User, error)
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTSessionStore verifies HS256 session tokens from the wd_session cookie or
// an Authorization: Bearer header
type JWTSessionStore struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTSessionStore creates a session store signing with secret
func NewJWTSessionStore(secret []byte, issuer string) (*JWTSessionStore, error) {
	if len(secret) < MinSessionSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}
	return &JWTSessionStore{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for user valid for ttl
func (s *JWTSessionStore) Issue(user accounts.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// CurrentUser returns the user of a valid session, or ErrNoSession
func (s *JWTSessionStore) CurrentUser(r *http.Request) (*accounts.User, error) {
	raw := sessionToken(r)
	if raw == "" {
		return nil, ErrNoSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims sessionClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", ErrNoSession)
	}

	return &accounts.User{ID: userID, Email: claims.Email}, nil
}

// sessionToken prefers the session cookie over a bearer token
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequireSession rejects requests without a valid session with 401 and
// places the session user in the request context
func RequireSession(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := store.CurrentUser(r)
			if err != nil || user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *accounts.User) context.Context {
	ctx = contextkeys.WithUser(ctx, user)
	if user != nil {
		ctx = contextkeys.WithUserID(ctx, user.ID.String())
	}
	return ctx
}

// GetUser extracts the authenticated user from the request, nil if absent
func GetUser(r *http.Request) *accounts.User {
	user, _ := r.Context().Value(contextkeys.UserKey).(*accounts.User)
	return user
}
