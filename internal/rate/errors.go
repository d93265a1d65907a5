package rate

import "errors"

var (
	// ErrStoreUnavailable wraps every store failure seen by the limiter.
	ErrStoreUnavailable = errors.New("rate store unavailable")
	// ErrInvalidRequest is returned before any store access for malformed requests.
	ErrInvalidRequest = errors.New("invalid rate limit request")
)
