// Package middleware provides the gateway's request dispatch and the HTTP
// guards it is built from.
//
// # Dispatcher
//
// The Dispatcher wraps the application router and routes every request:
//
//	dispatcher, err := middleware.NewDispatcher(classifier, limiter, csrf, sessions,
//		middleware.DefaultDispatcherConfig(), logger)
//	server.Handler = dispatcher.Handler(router)
//
//   - /api/...: rate limited per policy and client IP, then CSRF checked for
//     mutating methods outside the exempt routes.
//   - Static assets: passed through.
//   - Pages: the host is classified. App hosts require a session except on
//     public routes; project hosts are rewritten to /sites/<project id><path>;
//     anything else is 404 {"error":"site not found"}.
//
// Security headers are set on every response before any branch writes.
//
// # Rate Limiting
//
// RateLimiter is a Redis fixed-window counter shared by all instances. A
// Redis failure denies the request with 429.
//
//	limiter := middleware.NewRateLimiter(redisClient, "ratelimit", 500*time.Millisecond)
//	result, err := limiter.Allow(ctx, policy, clientIP)
//
// # CSRF
//
// Double-submit tokens: GET /api/csrf sets the csrf_token cookie and the
// client echoes it in X-CSRF-Token.
//
// # Sessions
//
// JWTSessionStore verifies HS256 tokens from the wd_session cookie or a
// bearer header. RequireSession guards API routes; GetUser reads the user.
package middleware
