// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown for the gateway.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("host", host).WithError(err).Warn("Domain classification failed")
//
// FromContext adds the request id, user id and trace ids carried by a
// context.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DomainClassificationsTotal.WithLabelValues("custom_domain").Inc()
//
// HTTPMetricsMiddleware labels requests by mux route template, never by raw
// path.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(serveMux, checker)
//
// Both PostgreSQL and Redis are required for readiness.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "wondrous-gateway",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
