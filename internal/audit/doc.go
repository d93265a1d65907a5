// Package audit dispatches throttling events to pluggable sinks.
//
// # Components
//
//   - [Event] — one decision or admin action, identified by a random UUID.
//   - [Sink] — event consumer (channel, JSON lines, no-op).
//   - [Dispatcher] — buffered relay with drop-if-full or block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The engine decides which events
// exist and what they carry.
//
// # What this package must NOT do
//
//   - Filter events based on throttling outcomes.
//   - Import goThrottle or any sibling internal package.
package audit
