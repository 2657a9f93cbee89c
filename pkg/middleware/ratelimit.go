package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Rate limit policy names
const (
	PolicyAPI           = "api"
	PolicySignup        = "signup"
	PolicyLogin         = "login"
	PolicyPasswordReset = "password_reset"
)

// RateLimitPolicy is a fixed window: at most Limit requests per Window
type RateLimitPolicy struct {
	Name   string        `yaml:"name"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Validate checks the policy is usable
func (p RateLimitPolicy) Validate() error {
	if p.Name == "" {
		return errors.New("rate limit policy name is required")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("rate limit policy %s: limit must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %s: window must be positive", p.Name)
	}
	return nil
}

// DefaultRateLimitPolicies returns the built-in policies keyed by name
func DefaultRateLimitPolicies() map[string]RateLimitPolicy {
	return map[string]RateLimitPolicy{
		PolicyAPI:           {Name: PolicyAPI, Limit: 100, Window: time.Minute},
		PolicySignup:        {Name: PolicySignup, Limit: 5, Window: time.Hour},
		PolicyLogin:         {Name: PolicyLogin, Limit: 10, Window: 15 * time.Minute},
		PolicyPasswordReset: {Name: PolicyPasswordReset, Limit: 5, Window: time.Hour},
	}
}

// RateLimitResult describes one counted request
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// fixedWindowScript increments the window counter, starts the window on the
// first hit and reports the count with the remaining window in milliseconds.
// A key that lost its expiry is given a fresh one.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RateLimiter counts requests per policy and key in Redis so limits are
// shared by every gateway instance
type RateLimiter struct {
	redis   *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRateLimiter creates a Redis-backed rate limiter. Each Redis call is
// bounded by timeout when it is positive.
func NewRateLimiter(redisClient *redis.Client, prefix string, timeout time.Duration) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:   redisClient,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (rl *RateLimiter) redisKey(policy RateLimitPolicy, key string) string {
	return fmt.Sprintf("%s:%s:%s", rl.prefix, policy.Name, key)
}

func (rl *RateLimiter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if rl.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, rl.timeout)
}

// Allow counts one request for key under policy
func (rl *RateLimiter) Allow(ctx context.Context, policy RateLimitPolicy, key string) (RateLimitResult, error) {
	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	raw, err := fixedWindowScript.Run(ctx, rl.redis,
		[]string{rl.redisKey(policy, key)},
		policy.Window.Milliseconds(),
	).Result()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit %s: %w", policy.Name, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return RateLimitResult{}, fmt.Errorf("rate limit %s: unexpected script reply %v", policy.Name, raw)
	}
	count, ok1 := values[0].(int64)
	ttl, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return RateLimitResult{}, fmt.Errorf("rate limit %s: unexpected script reply %v", policy.Name, raw)
	}

	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:    count <= int64(policy.Limit),
		Limit:      policy.Limit,
		Remaining:  remaining,
		ResetAfter: time.Duration(ttl) * time.Millisecond,
	}, nil
}

// Reset clears the counter for key under policy (for testing or admin purposes)
func (rl *RateLimiter) Reset(ctx context.Context, policy RateLimitPolicy, key string) error {
	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	if err := rl.redis.Del(ctx, rl.redisKey(policy, key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit %s: %w", policy.Name, err)
	}
	return nil
}

// retryAfterSeconds rounds up to whole seconds, at least one
func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func writeRateLimitHeaders(w http.ResponseWriter, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))
}

// clientIP returns the request's client address. Proxy headers are only
// consulted when the gateway sits behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
