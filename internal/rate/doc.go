// Package rate implements the fixed-window request limiter on top of the
// internal/stores adapter.
//
// # Window semantics
//
// Each (limiter, client, subject?) tuple owns a hash with fields createdAt
// (unix ms) and count. The first request, or the first request at least one
// window after createdAt, starts a new window with count 1 and clears any
// block marker. Requests below the cap increment count. Requests at the cap
// are denied; the first denial writes a block marker holding its timestamp
// with a TTL of one window, and the remaining time reported to callers is
// measured from that marker.
//
// The whole evaluation runs as one store-side script, so concurrent requests
// for the same tuple are serialized by the store.
//
// # What this package must NOT do
//
//   - Build transport responses (callers translate decisions).
//   - Be imported outside the goThrottle module.
package rate
