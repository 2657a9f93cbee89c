package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/wondrousdigital/gateway/pkg/async"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/config"
	"github.com/wondrousdigital/gateway/pkg/domains"
	"github.com/wondrousdigital/gateway/pkg/httputil"
	"github.com/wondrousdigital/gateway/pkg/middleware"
	"github.com/wondrousdigital/gateway/pkg/observability"
	"github.com/wondrousdigital/gateway/pkg/rbac"
	"github.com/wondrousdigital/gateway/pkg/storage/postgres"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// gateway holds the request path components built from configuration
type gateway struct {
	handler http.Handler
	cache   *domains.CachingStore
}

// newGateway wires the dispatcher, the application router and the
// middleware chain. reads serves every lookup on the request path.
func newGateway(
	cfg *config.Config,
	reads *sql.DB,
	redisClient *redis.Client,
	metrics *observability.Metrics,
	auditLog audit.Logger,
	logger *observability.Logger,
) (*gateway, error) {
	cache := domains.NewCachingStore(domains.NewPostgresStore(reads), cfg.Routing.Cache)

	classifier, err := domains.NewClassifier(cfg.Routing.Domains, cache, logger)
	if err != nil {
		return nil, err
	}
	classifier.WithMetrics(metrics)

	sessions, err := middleware.NewJWTSessionStore([]byte(cfg.Session.Secret), cfg.Session.Issuer)
	if err != nil {
		return nil, err
	}

	limiter := middleware.NewRateLimiter(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.Timeout)
	csrf := middleware.NewCSRF(cfg.Server.SecureCookies)

	dispatcher, err := middleware.NewDispatcher(classifier, limiter, csrf, sessions, cfg.DispatcherConfig(), logger)
	if err != nil {
		return nil, err
	}
	dispatcher.WithMetrics(metrics).WithAudit(auditLog)

	rbacManager := rbac.NewManager(reads, logger, metrics).WithAudit(auditLog)
	router := newRouter(rbacManager, sessions, csrf, metrics)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(dispatcher.Handler(router))

	return &gateway{
		handler: otelhttp.NewHandler(handler, "gateway"),
		cache:   cache,
	}, nil
}

// newRouter builds the application routes that dispatched requests reach
func newRouter(
	rbacManager *rbac.Manager,
	sessions middleware.SessionStore,
	csrf *middleware.CSRF,
	metrics *observability.Metrics,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics))

	router.HandleFunc("/api/csrf", csrf.IssueToken).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireSession(sessions))
	rbacManager.RegisterRoutes(api)

	router.PathPrefix("/sites/{project_id}").HandlerFunc(serveSite)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})

	return router
}

// SiteResponse is the body served for rewritten project requests
type SiteResponse struct {
	ProjectID string       `json:"project_id"`
	Kind      domains.Kind `json:"kind"`
	Host      string       `json:"host"`
	Path      string       `json:"path"`
}

// serveSite answers rewritten project requests. Rendering happens elsewhere;
// this reports which project the host resolved to.
func serveSite(w http.ResponseWriter, r *http.Request) {
	classification, ok := middleware.GetClassification(r)
	if !ok {
		httputil.WriteNotFoundError(w, "site not found")
		return
	}

	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil || projectID != classification.ProjectID {
		httputil.WriteNotFoundError(w, "site not found")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, middleware.SitesPrefix+projectID.String())
	if path == "" {
		path = "/"
	}

	httputil.WriteSuccess(w, SiteResponse{
		ProjectID: projectID.String(),
		Kind:      classification.Kind,
		Host:      r.Host,
		Path:      path,
	})
}

// newAuditLog sends audit events to the application log and, when
// configured, to a rotated file. With workers configured the writes run on
// a background pool drained within drain on Close.
func newAuditLog(ctx context.Context, cfg config.ObservabilityConfig, drain time.Duration, logger *observability.Logger) (*audit.MultiLogger, error) {
	sinks := []audit.Logger{audit.NewLogLogger(logger)}
	if fileCfg, ok := cfg.AuditFileConfig(); ok {
		fileLog, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileLog)
	}

	auditLog := audit.NewMultiLogger(sinks...)
	if cfg.AuditWorkers > 0 {
		pool := async.NewWorkerPool(ctx, logger, cfg.AuditWorkers, cfg.AuditQueueSize, "audit", drain)
		auditLog.WithPool(pool, drain)
	}
	return auditLog, nil
}

func runServe(logger *logrus.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTelConfig(), appLogger)
	if err != nil {
		return err
	}

	cm, err := postgres.NewConnectionManager(cfg.Database.ConnectionConfig(), appLogger)
	if err != nil {
		return err
	}

	redisClient, err := postgres.NewRedisClient(ctx, cfg.Redis.ClientConfig())
	if err != nil {
		cm.Close()
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	cm.StartMaintenance(ctx, cfg.Database.MaintenanceInterval, metrics)

	auditLog, err := newAuditLog(context.WithoutCancel(ctx), cfg.Observability, cfg.Server.ShutdownTimeout, appLogger)
	if err != nil {
		redisClient.Close()
		cm.Close()
		return err
	}

	gw, err := newGateway(cfg, cm.Replica(), redisClient, metrics, auditLog, appLogger)
	if err != nil {
		auditLog.Close()
		redisClient.Close()
		cm.Close()
		return err
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      gw.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(cm.Primary(), redisClient).
		WithVersion(cfg.Observability.OTelServiceVersion))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(appLogger, cfg.Server.ShutdownTimeout, server, healthServer)
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error { return auditLog.Close() })
	shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return cm.Close() })
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, appLogger)
	})

	for _, srv := range []*http.Server{server, healthServer} {
		go func(srv *http.Server) {
			logger.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Server on %s failed: %v", srv.Addr, err)
				cancel()
			}
		}(srv)
	}

	logger.WithFields(logrus.Fields{
		"marketing_domain": cfg.Routing.Domains.MarketingDomain,
		"app_domains":      strings.Join(cfg.Routing.Domains.AppDomains, ","),
	}).Info("Gateway started")

	if err := shutdown.WaitForShutdown(ctx); err != nil {
		return err
	}

	hits, misses := gw.cache.Stats()
	logger.WithFields(logrus.Fields{"cache_hits": hits, "cache_misses": misses}).Info("Gateway stopped")
	return nil
}
