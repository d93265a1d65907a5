// Package stores provides the key-value store adapter that every throttling
// decision in goThrottle reads from and writes to.
//
// # Design
//
// [Store] is the minimal capability surface the limiters need: plain
// get/set/delete with TTL, atomic increment, TTL inspection, hash fields,
// glob key listing, and one compound operation ([Store.RunWindow]) that
// executes the fixed-window check as a single server-side script so that
// concurrent callers on the same key cannot under-count.
//
// [RedisStore] implements Store on top of a go-redis UniversalClient. It
// assumes a single logical Redis instance (or a deployment that presents
// single-key atomicity); key listing uses SCAN on that instance.
//
// # Architecture boundaries
//
// This package owns wire access and error classification only. It does NOT
// compose keys, interpret counters, or decide whether a request is allowed.
//
// # What this package must NOT do
//
//   - Import goThrottle or any sibling internal package.
//   - Retry failed commands (retry policy belongs to the client options).
//   - Use KEYS for enumeration.
package stores
