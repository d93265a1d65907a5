// Package middleware adapts goThrottle.Engine decisions to net/http.
//
// # Handlers
//
//   - [RateLimit] charges a fixed-window counter per client and answers 429 with Retry-After.
//   - [RequireAdmin] guards admin reset endpoints with a bearer token from package jwt.
//   - [ClientIdentity] derives the client key from X-Forwarded-For or RemoteAddr.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls and applies the engine's
// fail-open setting. Counting and lockout decisions are made by the Engine.
//
// # What this package must NOT do
//
//   - Access Redis directly.
//   - Swallow store failures silently: fail-open admissions are logged at Warn.
package middleware
