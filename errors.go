package goThrottle

import "errors"

var (
	// ErrStoreUnavailable is returned when the backing store cannot be reached
	// or rejects a command. Callers decide whether to fail open or closed.
	ErrStoreUnavailable = errors.New("throttle store unavailable")
	// ErrInvalidConfiguration is returned by Config.Validate, Builder.Build and
	// by calls whose per-call overrides are unusable.
	ErrInvalidConfiguration = errors.New("invalid throttle configuration")
	// ErrInvalidRequest is returned for an empty limiter key, client identity or subject.
	ErrInvalidRequest = errors.New("invalid throttle request")
	// ErrInvalidCredentials marks a failed credential check inside a verifier
	// passed to Engine.GuardLogin. Verifiers may wrap it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
