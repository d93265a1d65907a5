// Package internal groups the packages that are private to goThrottle.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - keys — Redis key layout for counters, block markers and lockouts
//   - limiters — escalating login lockout over failure counters
//   - rate — fixed-window rate limit check, peek, reset and subject unlock
//   - stores — Redis adapter and the window Lua script
//
// # What this package must NOT do
//
//   - Export types that appear in the public goThrottle API.
//   - Be imported by any package outside the goThrottle module.
package internal
