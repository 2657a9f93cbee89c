// Package audit records gateway access decisions that deny or fail a request.
//
// # Overview
//
// Every rejection the gateway makes on behalf of a tenant is written as a
// structured Event: permission denials and lookup failures from the
// permission evaluator, requests dropped by the rate limiter, CSRF
// rejections and failed site lookups. Allowed requests are not audited.
//
// # Event Types
//
// Authorization: authz.permission_denied, authz.permission_error
// Gateway: gateway.rate_limited, gateway.csrf_rejected, gateway.site_lookup_failed
//
// # Sinks
//
// LogLogger writes through the application logger. FileLogger appends JSON
// lines to audit.log and rotates by size. MultiLogger fans one event out to
// several sinks, optionally on an async.WorkerPool.
//
//	sink := audit.NewMultiLogger(audit.NewLogLogger(logger), fileLogger)
//	event := audit.NewRequestEvent(r, clientIP, audit.EventTypeRateLimited, audit.EventStatusDenied)
//	event.Metadata = map[string]string{"policy": "auth"}
//	_ = sink.Log(r.Context(), event)
//
// # Related Packages
//
//   - pkg/rbac: permission denials
//   - pkg/middleware: request gate rejections
package audit
