package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/config"
	"github.com/wondrousdigital/gateway/pkg/domains"
	"github.com/wondrousdigital/gateway/pkg/middleware"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testGatewayConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Redis:  config.RedisConfig{KeyPrefix: "ratelimit", Timeout: time.Second},
		Routing: config.RoutingConfig{
			Domains: domains.Config{
				MarketingDomain:    "wondrousdigital.com",
				AppDomains:         []string{"app.wondrousdigital.com"},
				ReservedSubdomains: domains.DefaultReservedSubdomains(),
				LookupTimeout:      time.Second,
			},
			Cache: domains.DefaultCacheConfig(),
		},
		Session: config.SessionConfig{Secret: testSecret, Issuer: "wondrousdigital"},
	}
}

func testUser() accounts.User {
	return accounts.User{ID: uuid.New(), Email: "owner@acme.example"}
}

type gatewayFixture struct {
	gw   *gateway
	mock sqlmock.Sqlmock
	dir  string
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	dir := t.TempDir()
	auditLog, err := newAuditLog(context.Background(),
		config.ObservabilityConfig{AuditDir: dir, AuditMaxSize: 1 << 20, AuditMaxFiles: 2}, time.Second, logger)
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	gw, err := newGateway(testGatewayConfig(), db, client, metrics, auditLog, logger)
	require.NoError(t, err)
	return &gatewayFixture{gw: gw, mock: mock, dir: dir}
}

func (f *gatewayFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.gw.handler.ServeHTTP(w, req)
	return w
}

func TestGateway_PreviewSite(t *testing.T) {
	f := newGatewayFixture(t)
	projectID := uuid.New()

	f.mock.ExpectQuery(`FROM projects p\s+WHERE p.slug = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "slug", "archived_at", "created_at"}).
			AddRow(projectID.String(), uuid.NewString(), "Acme", "acme", nil, time.Now()))

	w := f.serve(httptest.NewRequest("GET", "http://acme.wondrousdigital.com/about?x=1", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body SiteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, projectID.String(), body.ProjectID)
	assert.Equal(t, domains.KindPreviewDomain, body.Kind)
	assert.Equal(t, "acme.wondrousdigital.com", body.Host)
	assert.Equal(t, "/about", body.Path)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGateway_NonCleanPathIsNotRedirected(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/blog//post", "/blog/post"},
		{"/a/../b", "/b"},
		{"/about/", "/about/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newGatewayFixture(t)
			projectID := uuid.New()

			f.mock.ExpectQuery(`FROM projects p\s+WHERE p.slug = \$1`).
				WithArgs("acme").
				WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "slug", "archived_at", "created_at"}).
					AddRow(projectID.String(), uuid.NewString(), "Acme", "acme", nil, time.Now()))

			w := f.serve(httptest.NewRequest("GET", "http://acme.wondrousdigital.com"+tt.path, nil))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Empty(t, w.Header().Get("Location"))
			var body SiteResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, projectID.String(), body.ProjectID)
			assert.Equal(t, tt.want, body.Path)
		})
	}
}

func TestGateway_UnknownSite(t *testing.T) {
	f := newGatewayFixture(t)

	f.mock.ExpectQuery(`FROM projects p\s+WHERE p.slug = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "slug", "archived_at", "created_at"}))

	w := f.serve(httptest.NewRequest("GET", "http://ghost.wondrousdigital.com/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_SitesPathOnAppHostIsNotFound(t *testing.T) {
	f := newGatewayFixture(t)
	sessions, err := middleware.NewJWTSessionStore([]byte(testSecret), "wondrousdigital")
	require.NoError(t, err)

	token, err := sessions.Issue(testUser(), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "http://app.wondrousdigital.com/sites/"+uuid.NewString()+"/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})

	w := f.serve(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_AppPageRequiresSession(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.serve(httptest.NewRequest("GET", "http://app.wondrousdigital.com/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirectTo=%2Fdashboard", w.Header().Get("Location"))
}

func TestGateway_CSRFToken(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.serve(httptest.NewRequest("GET", "http://app.wondrousdigital.com/api/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body middleware.CSRFTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Token, 64)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CSRFCookieName, cookies[0].Name)
	assert.Equal(t, body.Token, cookies[0].Value)
}

func TestGateway_RoleEndpointRequiresSession(t *testing.T) {
	f := newGatewayFixture(t)

	w := f.serve(httptest.NewRequest("GET", "http://app.wondrousdigital.com/api/me/role", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateway_RoleEndpoint(t *testing.T) {
	f := newGatewayFixture(t)
	sessions, err := middleware.NewJWTSessionStore([]byte(testSecret), "wondrousdigital")
	require.NoError(t, err)

	user := testUser()
	token, err := sessions.Issue(user, time.Hour)
	require.NoError(t, err)

	accountID := uuid.New()
	// Platform standing and highest role are resolved separately
	for i := 0; i < 2; i++ {
		f.mock.ExpectQuery(`FROM account_memberships`).
			WithArgs(user.ID).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "account_id", "role", "invited_by", "joined_at"}).
				AddRow(user.ID.String(), accountID.String(), "account_owner", nil, time.Now()))
	}

	req := httptest.NewRequest("GET", "http://app.wondrousdigital.com/api/me/role", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := f.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"is_admin":false,"is_staff":false,"highest_role":"account_owner"}`, w.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGateway_AccountEndpoint(t *testing.T) {
	f := newGatewayFixture(t)
	sessions, err := middleware.NewJWTSessionStore([]byte(testSecret), "wondrousdigital")
	require.NoError(t, err)

	user := testUser()
	token, err := sessions.Issue(user, time.Hour)
	require.NoError(t, err)
	accountID := uuid.New()

	f.mock.ExpectQuery(`FROM account_memberships\s+WHERE user_id = \$1`).
		WithArgs(user.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "account_id", "role", "invited_by", "joined_at"}).
			AddRow(user.ID.String(), accountID.String(), "user", nil, time.Now()))
	f.mock.ExpectQuery(`FROM account_memberships m`).
		WithArgs(user.ID, accountID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "role", "granted"}).
			AddRow(accountID.String(), "user", true))
	f.mock.ExpectQuery(`FROM accounts\s+WHERE id = \$1`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "plan_tier", "settings", "created_at"}).
			AddRow(accountID.String(), "Acme", "acme", "pro", nil, time.Now()))

	req := httptest.NewRequest("GET", "http://app.wondrousdigital.com/api/accounts/"+accountID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := f.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body accounts.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, accountID, body.ID)
	assert.Equal(t, accounts.PlanPro, body.PlanTier)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGateway_AccountEndpointDenied(t *testing.T) {
	f := newGatewayFixture(t)
	sessions, err := middleware.NewJWTSessionStore([]byte(testSecret), "wondrousdigital")
	require.NoError(t, err)

	user := testUser()
	token, err := sessions.Issue(user, time.Hour)
	require.NoError(t, err)
	accountID := uuid.New()

	f.mock.ExpectQuery(`FROM account_memberships\s+WHERE user_id = \$1`).
		WithArgs(user.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "account_id", "role", "invited_by", "joined_at"}))
	f.mock.ExpectQuery(`FROM account_memberships m`).
		WithArgs(user.ID, accountID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "role", "granted"}))

	req := httptest.NewRequest("GET", "http://app.wondrousdigital.com/api/accounts/"+accountID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := f.serve(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGateway_CSRFRejectionIsAudited(t *testing.T) {
	f := newGatewayFixture(t)

	req := httptest.NewRequest("POST", "http://app.wondrousdigital.com/api/projects", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	w := f.serve(req)
	require.Equal(t, http.StatusForbidden, w.Code)

	reader, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: f.dir})
	require.NoError(t, err)
	defer reader.Close()

	events, err := reader.ReadLogs(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeCSRFRejected, events[0].Type)
	assert.Equal(t, "198.51.100.4", events[0].IPAddress)
	assert.Equal(t, w.Header().Get("X-Request-ID"), events[0].RequestID)
}

func TestNewAuditLog_Pooled(t *testing.T) {
	dir := t.TempDir()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	auditLog, err := newAuditLog(context.Background(), config.ObservabilityConfig{
		AuditDir:       dir,
		AuditMaxSize:   1 << 20,
		AuditMaxFiles:  2,
		AuditWorkers:   1,
		AuditQueueSize: 4,
	}, time.Second, logger)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, auditLog.Log(context.Background(),
			audit.NewEvent(context.Background(), audit.EventTypeRateLimited, audit.EventStatusDenied)))
	}
	require.NoError(t, auditLog.Close())

	reader, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: dir})
	require.NoError(t, err)
	defer reader.Close()

	events, err := reader.ReadLogs(0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
