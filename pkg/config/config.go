package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/domains"
	"github.com/wondrousdigital/gateway/pkg/middleware"
	"github.com/wondrousdigital/gateway/pkg/observability"
	"github.com/wondrousdigital/gateway/pkg/storage/postgres"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Routing configuration, optionally read from a YAML file
	Routing RoutingConfig

	// Session configuration
	Session SessionConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// TrustProxy takes the client address from X-Forwarded-For
	TrustProxy bool

	// SecureCookies marks issued cookies Secure
	SecureCookies bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL                 string
	ReplicaURLs         []string
	MaxConns            int
	MinConns            int
	Timeout             time.Duration
	MaintenanceInterval time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	Timeout    time.Duration
	KeyPrefix  string
}

// RoutingConfig holds host classification and dispatch rules
type RoutingConfig struct {
	Domains          domains.Config
	Cache            domains.CacheConfig
	PublicRoutes     []string
	CSRFExemptRoutes []string
	RateLimits       map[string]middleware.RateLimitPolicy
}

// SessionConfig holds session token settings
type SessionConfig struct {
	Secret string
	Issuer string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64

	// Audit trail. Events always go to the log; AuditDir adds a rotated file.
	AuditDir      string
	AuditMaxSize  int64
	AuditMaxFiles int
	// AuditWorkers moves audit writes off the request path. Zero writes inline.
	AuditWorkers   int
	AuditQueueSize int
}

// routingFile is the layout of GATEWAY_ROUTING_FILE
type routingFile struct {
	MarketingDomain    string                                `yaml:"marketing_domain"`
	AppDomains         []string                              `yaml:"app_domains"`
	ReservedSubdomains []string                              `yaml:"reserved_subdomains"`
	LookupTimeout      time.Duration                         `yaml:"lookup_timeout"`
	PublicRoutes       []string                              `yaml:"public_routes"`
	CSRFExemptRoutes   []string                              `yaml:"csrf_exempt_routes"`
	RateLimits         map[string]middleware.RateLimitPolicy `yaml:"rate_limits"`
}

// LoadConfig loads configuration from environment variables and the
// optional routing file. Environment variables win over the file.
func LoadConfig() (*Config, error) {
	routing, err := loadRoutingConfig(getEnv("GATEWAY_ROUTING_FILE", ""))
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLogLevel(getEnv("GATEWAY_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Routing:       routing,
		Session:       loadSessionConfig(),
		Observability: loadObservabilityConfig(level),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEWAY_HOST", "0.0.0.0"),
		Port:            getEnv("GATEWAY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEWAY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEWAY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEWAY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEWAY_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("GATEWAY_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("GATEWAY_HEALTH_PORT", "9090"),
		TrustProxy:      getEnvBool("GATEWAY_TRUST_PROXY", false),
		SecureCookies:   getEnvBool("GATEWAY_SECURE_COOKIES", true),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	defaults := postgres.DefaultConnectionConfig()
	return DatabaseConfig{
		URL:                 getEnv("GATEWAY_POSTGRES_URL", ""),
		ReplicaURLs:         postgres.ParseReplicaURLs(getEnv("GATEWAY_POSTGRES_REPLICA_URLS", "")),
		MaxConns:            getEnvInt("GATEWAY_POSTGRES_MAX_CONNS", defaults.MaxConns),
		MinConns:            getEnvInt("GATEWAY_POSTGRES_MIN_CONNS", defaults.MinConns),
		Timeout:             getEnvDuration("GATEWAY_POSTGRES_TIMEOUT", defaults.Timeout),
		MaintenanceInterval: getEnvDuration("GATEWAY_POSTGRES_MAINTENANCE_INTERVAL", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("GATEWAY_REDIS_URL", ""),
		Password:   getEnv("GATEWAY_REDIS_PASSWORD", ""),
		DB:         getEnvInt("GATEWAY_REDIS_DB", 0),
		MaxRetries: getEnvInt("GATEWAY_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("GATEWAY_REDIS_POOL_SIZE", 10),
		Timeout:    getEnvDuration("GATEWAY_REDIS_TIMEOUT", 3*time.Second),
		KeyPrefix:  getEnv("GATEWAY_REDIS_KEY_PREFIX", "ratelimit"),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		Secret: getEnv("GATEWAY_SESSION_SECRET", ""),
		Issuer: getEnv("GATEWAY_SESSION_ISSUER", "wondrousdigital"),
	}
}

func loadObservabilityConfig(level observability.LogLevel) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("GATEWAY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GATEWAY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GATEWAY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GATEWAY_OTEL_SERVICE_NAME", "wondrous-gateway"),
		OTelServiceVersion: getEnv("GATEWAY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GATEWAY_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("GATEWAY_OTEL_SAMPLE_RATIO", 1),
		AuditDir:           getEnv("GATEWAY_AUDIT_DIR", ""),
		AuditMaxSize:       getEnvInt64("GATEWAY_AUDIT_MAX_SIZE", audit.DefaultFileLoggerConfig().MaxSize),
		AuditMaxFiles:      getEnvInt("GATEWAY_AUDIT_MAX_FILES", audit.DefaultFileLoggerConfig().MaxFiles),
		AuditWorkers:       getEnvInt("GATEWAY_AUDIT_WORKERS", 2),
		AuditQueueSize:     getEnvInt("GATEWAY_AUDIT_QUEUE_SIZE", 1024),
	}
}

// loadRoutingConfig layers the routing file, then environment variables,
// over the built-in defaults
func loadRoutingConfig(path string) (RoutingConfig, error) {
	cfg := RoutingConfig{
		Domains: domains.Config{
			ReservedSubdomains: domains.DefaultReservedSubdomains(),
			LookupTimeout:      2 * time.Second,
		},
		Cache:            domains.DefaultCacheConfig(),
		PublicRoutes:     middleware.DefaultPublicRoutes(),
		CSRFExemptRoutes: middleware.DefaultCSRFExemptRoutes(),
	}

	if path != "" {
		file, err := readRoutingFile(path)
		if err != nil {
			return RoutingConfig{}, err
		}
		file.applyTo(&cfg)
	}

	cfg.Domains.MarketingDomain = getEnv("GATEWAY_MARKETING_DOMAIN", cfg.Domains.MarketingDomain)
	cfg.Domains.AppDomains = getEnvList("GATEWAY_APP_DOMAINS", cfg.Domains.AppDomains)
	cfg.Domains.ReservedSubdomains = getEnvList("GATEWAY_RESERVED_SUBDOMAINS", cfg.Domains.ReservedSubdomains)
	cfg.Domains.LookupTimeout = getEnvDuration("GATEWAY_LOOKUP_TIMEOUT", cfg.Domains.LookupTimeout)
	cfg.Cache.Size = getEnvInt("GATEWAY_DOMAIN_CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTL = getEnvDuration("GATEWAY_DOMAIN_CACHE_TTL", cfg.Cache.TTL)

	return cfg, nil
}

func readRoutingFile(path string) (*routingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing file: %w", err)
	}

	var file routingFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse routing file %s: %w", path, err)
	}
	return &file, nil
}

func (f *routingFile) applyTo(cfg *RoutingConfig) {
	if f.MarketingDomain != "" {
		cfg.Domains.MarketingDomain = f.MarketingDomain
	}
	if len(f.AppDomains) > 0 {
		cfg.Domains.AppDomains = f.AppDomains
	}
	if len(f.ReservedSubdomains) > 0 {
		cfg.Domains.ReservedSubdomains = f.ReservedSubdomains
	}
	if f.LookupTimeout > 0 {
		cfg.Domains.LookupTimeout = f.LookupTimeout
	}
	if f.PublicRoutes != nil {
		cfg.PublicRoutes = f.PublicRoutes
	}
	if f.CSRFExemptRoutes != nil {
		cfg.CSRFExemptRoutes = f.CSRFExemptRoutes
	}
	if len(f.RateLimits) > 0 {
		cfg.RateLimits = make(map[string]middleware.RateLimitPolicy, len(f.RateLimits))
		for name, policy := range f.RateLimits {
			if policy.Name == "" {
				policy.Name = name
			}
			cfg.RateLimits[name] = policy
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	timeouts := map[string]time.Duration{
		"read timeout":     c.Server.ReadTimeout,
		"write timeout":    c.Server.WriteTimeout,
		"idle timeout":     c.Server.IdleTimeout,
		"shutdown timeout": c.Server.ShutdownTimeout,
		"postgres timeout": c.Database.Timeout,
		"redis timeout":    c.Redis.Timeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("postgres max connections must be positive")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if len(c.Session.Secret) < middleware.MinSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", middleware.MinSessionSecretLength)
	}

	if err := c.Routing.Domains.Validate(); err != nil {
		return err
	}
	known := middleware.DefaultRateLimitPolicies()
	for name, policy := range c.Routing.RateLimits {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unknown rate limit policy %q", name)
		}
		if policy.Name != name {
			return fmt.Errorf("rate limit policy %q registered as %q", policy.Name, name)
		}
		if err := policy.Validate(); err != nil {
			return err
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
		}
	}

	if c.Observability.AuditDir != "" && (c.Observability.AuditMaxSize <= 0 || c.Observability.AuditMaxFiles <= 0) {
		return fmt.Errorf("audit file size and retention must be positive")
	}
	if c.Observability.AuditWorkers < 0 || c.Observability.AuditQueueSize < 0 {
		return fmt.Errorf("audit workers and queue size must not be negative")
	}

	return nil
}

// ConnectionConfig returns the pool settings for the connection manager
func (c DatabaseConfig) ConnectionConfig() postgres.ConnectionConfig {
	cfg := postgres.DefaultConnectionConfig()
	cfg.PrimaryURL = c.URL
	cfg.ReplicaURLs = c.ReplicaURLs
	cfg.MaxConns = c.MaxConns
	cfg.MinConns = c.MinConns
	cfg.Timeout = c.Timeout
	return cfg
}

// ClientConfig returns the Redis client settings
func (c RedisConfig) ClientConfig() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:        c.URL,
		Password:   c.Password,
		DB:         c.DB,
		MaxRetries: c.MaxRetries,
		PoolSize:   c.PoolSize,
		Timeout:    c.Timeout,
	}
}

// DispatcherConfig returns the dispatch rules for the request dispatcher
func (c *Config) DispatcherConfig() middleware.DispatcherConfig {
	return middleware.DispatcherConfig{
		PublicRoutes:     c.Routing.PublicRoutes,
		CSRFExemptRoutes: c.Routing.CSRFExemptRoutes,
		RateLimits:       c.Routing.RateLimits,
		TrustProxy:       c.Server.TrustProxy,
	}
}

// OTelConfig returns the OpenTelemetry exporter settings
func (c ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// AuditFileConfig returns the audit file settings. ok is false when no
// audit directory is configured.
func (c ObservabilityConfig) AuditFileConfig() (cfg audit.FileLoggerConfig, ok bool) {
	if c.AuditDir == "" {
		return audit.FileLoggerConfig{}, false
	}
	return audit.FileLoggerConfig{
		BasePath: c.AuditDir,
		Rotate:   true,
		MaxSize:  c.AuditMaxSize,
		MaxFiles: c.AuditMaxFiles,
	}, true
}
