package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goThrottle/internal/keys"
	"github.com/MrEthical07/goThrottle/internal/stores"
)

// Request identifies the counter to evaluate and the limits to apply.
// MaxRequests and Window must already be resolved against defaults.
type Request struct {
	Limiter     string
	Client      string
	Subject     string
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of [Limiter.Check].
type Decision struct {
	Allowed       bool
	CurrentCount  int64
	RemainingTime time.Duration
	Client        string
	WindowStart   time.Time
	BlockStarted  bool
}

// Status is a read-only view of a counter.
type Status struct {
	Exists         bool
	Count          int64
	WindowStart    time.Time
	BlockRemaining time.Duration
}

// Limiter enforces fixed-window request caps using store counters.
type Limiter struct {
	store stores.Store
	keys  keys.Space
	now   func() time.Time
}

// New creates a [Limiter]. A nil clock defaults to time.Now.
func New(store stores.Store, space keys.Space, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		store: store,
		keys:  space,
		now:   now,
	}
}

// Check counts one request against the tuple's current window.
func (l *Limiter) Check(ctx context.Context, req Request) (Decision, error) {
	if err := validate(req); err != nil {
		return Decision{}, err
	}

	counter := counterOf(req)
	now := l.now()

	res, err := l.store.RunWindow(ctx, l.keys.Counter(counter), l.keys.Marker(counter), now, int64(req.MaxRequests), req.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	d := Decision{
		Allowed:      res.Allowed,
		CurrentCount: res.Count,
		Client:       req.Client,
		WindowStart:  res.CreatedAt,
		BlockStarted: res.BlockStarted,
	}
	if !res.Allowed {
		d.RemainingTime = remaining(req.Window, now, res.BlockedAt)
	}

	return d, nil
}

// Peek reads a counter without counting a request.
func (l *Limiter) Peek(ctx context.Context, req Request) (Status, error) {
	if req.Limiter == "" || req.Client == "" {
		return Status{}, ErrInvalidRequest
	}

	counter := counterOf(req)
	fields, err := l.store.HGetAll(ctx, l.keys.Counter(counter))
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Status{}, nil
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("%w: counter %q: count: %v", ErrStoreUnavailable, l.keys.Counter(counter), err)
	}
	created, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("%w: counter %q: createdAt: %v", ErrStoreUnavailable, l.keys.Counter(counter), err)
	}
	status := Status{Exists: true, Count: count, WindowStart: time.UnixMilli(created)}

	ttl, err := l.store.TTL(ctx, l.keys.Marker(counter))
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl > 0 {
		status.BlockRemaining = ceilSeconds(ttl)
	}

	return status, nil
}

// Reset deletes one counter and its block marker.
func (l *Limiter) Reset(ctx context.Context, req Request) error {
	if req.Limiter == "" || req.Client == "" {
		return ErrInvalidRequest
	}

	counter := counterOf(req)
	if _, err := l.store.Delete(ctx, l.keys.Counter(counter), l.keys.Marker(counter)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// UnlockSubject deletes every counter and marker that embeds subject and
// returns how many keys were removed. Unknown subjects remove nothing.
func (l *Limiter) UnlockSubject(ctx context.Context, subject string) (int64, error) {
	if subject == "" {
		return 0, ErrInvalidRequest
	}

	found, err := l.store.Keys(ctx, l.keys.SubjectCounters(subject))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(found) == 0 {
		return 0, nil
	}

	deleted, err := l.store.Delete(ctx, found...)
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return deleted, nil
}

func validate(req Request) error {
	if req.Limiter == "" || req.Client == "" {
		return ErrInvalidRequest
	}
	if req.MaxRequests <= 0 || req.Window <= 0 {
		return fmt.Errorf("%w: max requests and window must be > 0", ErrInvalidRequest)
	}
	return nil
}

func counterOf(req Request) keys.Counter {
	return keys.Counter{
		Limiter: req.Limiter,
		Client:  req.Client,
		Subject: req.Subject,
	}
}

// remaining reports how long the block that started at blockedAt has left,
// rounded up to whole seconds and never negative.
func remaining(window time.Duration, now, blockedAt time.Time) time.Duration {
	if blockedAt.IsZero() {
		return ceilSeconds(window)
	}
	return ceilSeconds(window - now.Sub(blockedAt))
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}
