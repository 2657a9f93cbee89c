// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// Every deny response is a JSON object with a single error field:
//
//	httputil.WriteUnauthorized(w, "authentication required") // {"error":"authentication required"}
//	httputil.WriteNotFoundError(w, "site not found")
//	httputil.WriteTooManyRequests(w, "rate limit exceeded")
//
// # Request Parsing
//
//	accountID, ok := httputil.ParsePathUUIDOrError(w, r, "account_id", "invalid account id")
//	if !ok {
//		return // Error response already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Request dispatch, sessions, rate limiting and CSRF
package httputil
