package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wondrousdigital/gateway/pkg/accounts"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSessions(t *testing.T) *JWTSessionStore {
	t.Helper()
	store, err := NewJWTSessionStore(testSecret, "wondrous-gateway")
	require.NoError(t, err)
	return store
}

func TestNewJWTSessionStore_ShortSecret(t *testing.T) {
	_, err := NewJWTSessionStore([]byte("short"), "")
	assert.Error(t, err)
}

func TestJWTSessionStore_CurrentUser(t *testing.T) {
	store := newTestSessions(t)
	user := accounts.User{ID: uuid.New(), Email: "owner@acme.test"}

	token, err := store.Issue(user, time.Hour)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

		got, err := store.CurrentUser(req)
		require.NoError(t, err)
		assert.Equal(t, user, *got)
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me/role", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		got, err := store.CurrentUser(req)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("no token", func(t *testing.T) {
		_, err := store.CurrentUser(httptest.NewRequest("GET", "/", nil))
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestJWTSessionStore_RejectsInvalidTokens(t *testing.T) {
	store := newTestSessions(t)
	user := accounts.User{ID: uuid.New(), Email: "user@acme.test"}

	expired, err := store.Issue(user, -time.Minute)
	require.NoError(t, err)

	other, err := NewJWTSessionStore([]byte(strings.Repeat("x", 32)), "wondrous-gateway")
	require.NoError(t, err)
	foreign, err := other.Issue(user, time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTSessionStore(testSecret, "someone-else")
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue(user, time.Hour)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    "wondrous-gateway",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: user.ID.String(),
		Issuer:  "wondrous-gateway",
	}).SignedString(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		Issuer:    "wondrous-gateway",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"bad subject":  badSubject,
		"no expiry":    noExpiry,
		"alg none":     unsigned,
		"garbage":      "not.a.jwt",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

			_, err := store.CurrentUser(req)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestRequireSession(t *testing.T) {
	store := newTestSessions(t)
	user := accounts.User{ID: uuid.New(), Email: "user@acme.test"}
	token, err := store.Issue(user, time.Hour)
	require.NoError(t, err)

	var seen *accounts.User
	handler := RequireSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me/role", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.ID, seen.ID)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/me/role", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
	})
}

func TestGetUser_Absent(t *testing.T) {
	assert.Nil(t, GetUser(httptest.NewRequest("GET", "/", nil)))
}
