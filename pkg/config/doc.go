// Package config loads gateway configuration from environment variables and
// an optional YAML routing file.
//
// Server settings:
//
//	GATEWAY_HOST="0.0.0.0"
//	GATEWAY_PORT="8080"
//	GATEWAY_HEALTH_PORT="9090"
//	GATEWAY_TRUST_PROXY="false"
//	GATEWAY_SECURE_COOKIES="true"
//
// Backing stores:
//
//	GATEWAY_POSTGRES_URL="postgres://localhost/gateway"
//	GATEWAY_POSTGRES_REPLICA_URLS="postgres://replica1/gateway,postgres://replica2/gateway"
//	GATEWAY_REDIS_URL="redis://localhost:6379"
//
// Sessions:
//
//	GATEWAY_SESSION_SECRET="<at least 32 bytes>"
//	GATEWAY_SESSION_ISSUER="wondrousdigital"
//
// Routing (GATEWAY_ROUTING_FILE points at a YAML file; the variables below
// override it):
//
//	marketing_domain: wondrousdigital.com
//	app_domains: [app.wondrousdigital.com]
//	reserved_subdomains: [www, app, api, admin]
//	lookup_timeout: 2s
//	public_routes: [/login, /signup, /auth/]
//	rate_limits:
//	  login: {limit: 10, window: 15m}
//
//	GATEWAY_MARKETING_DOMAIN, GATEWAY_APP_DOMAINS, GATEWAY_RESERVED_SUBDOMAINS,
//	GATEWAY_LOOKUP_TIMEOUT, GATEWAY_DOMAIN_CACHE_SIZE, GATEWAY_DOMAIN_CACHE_TTL
//
// Observability:
//
//	GATEWAY_LOG_LEVEL="info"  # debug, info, warn, error
//	GATEWAY_METRICS_ENABLED="true"
//	GATEWAY_OTEL_ENABLED="true"
//	GATEWAY_OTEL_ENDPOINT="otel-collector:4317"
//	GATEWAY_AUDIT_DIR="/var/log/wondrous/audit"  # unset: audit events go to the log only
//	GATEWAY_AUDIT_MAX_SIZE="104857600"
//	GATEWAY_AUDIT_MAX_FILES="10"
//	GATEWAY_AUDIT_WORKERS="2"  # 0 writes audit events inline
//	GATEWAY_AUDIT_QUEUE_SIZE="1024"
//
// LoadConfig validates the result; a gateway never starts with a missing
// secret, store URL or routing domain.
package config
