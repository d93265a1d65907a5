package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goThrottle/internal/keys"
	"github.com/MrEthical07/goThrottle/internal/stores"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T) (*Limiter, *fakeClock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)}
	return New(stores.NewRedisStore(client), keys.NewSpace("gt"), clock.Now), clock, mr
}

func forgotPassword(ip string) Request {
	return Request{Limiter: "forgot-password", Client: ip, MaxRequests: 10, Window: time.Minute}
}

func TestCheckFirstRequestIsAllowed(t *testing.T) {
	l, _, _ := newTestLimiter(t)

	d, err := l.Check(context.Background(), forgotPassword("10.0.0.1"))
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.EqualValues(t, 1, d.CurrentCount)
	require.Equal(t, "10.0.0.1", d.Client)
	require.Zero(t, d.RemainingTime)
}

func TestCheckCountsUpToCapThenDenies(t *testing.T) {
	l, clock, _ := newTestLimiter(t)
	ctx := context.Background()
	req := forgotPassword("10.0.0.1")

	for i := 1; i <= req.MaxRequests; i++ {
		d, err := l.Check(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		require.EqualValues(t, i, d.CurrentCount)
		clock.Advance(100 * time.Millisecond)
	}

	d, err := l.Check(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.BlockStarted)
	require.EqualValues(t, 10, d.CurrentCount)
	require.Equal(t, time.Minute, d.RemainingTime)

	prev := d.RemainingTime
	for i := 0; i < 5; i++ {
		clock.Advance(1500 * time.Millisecond)
		d, err = l.Check(ctx, req)
		require.NoError(t, err)
		require.False(t, d.Allowed)
		require.False(t, d.BlockStarted)
		require.GreaterOrEqual(t, d.RemainingTime, time.Duration(0))
		require.LessOrEqual(t, d.RemainingTime, prev)
		prev = d.RemainingTime
	}
	require.Equal(t, 53*time.Second, d.RemainingTime)
}

func TestCheckWindowExpiryResetsCounterAndMarker(t *testing.T) {
	l, clock, mr := newTestLimiter(t)
	ctx := context.Background()
	req := Request{Limiter: "signup", Client: "10.0.0.2", MaxRequests: 2, Window: 30 * time.Second}

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, req)
		require.NoError(t, err)
	}
	require.True(t, mr.Exists("gt:rl:ip:signup:10.0.0.2:block"))

	clock.Advance(30 * time.Second)
	d, err := l.Check(ctx, req)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.EqualValues(t, 1, d.CurrentCount)
	require.False(t, mr.Exists("gt:rl:ip:signup:10.0.0.2:block"))
}

func TestCheckMarkerExpiryBeforeWindowRecreatesMarker(t *testing.T) {
	l, clock, mr := newTestLimiter(t)
	ctx := context.Background()
	req := Request{Limiter: "signup", Client: "10.0.0.3", MaxRequests: 1, Window: 10 * time.Second}

	_, err := l.Check(ctx, req)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	d, err := l.Check(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.BlockStarted)

	// The marker TTL runs on the store clock; the window runs on createdAt.
	mr.FastForward(10 * time.Second)
	clock.Advance(2 * time.Second)

	d, err = l.Check(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.BlockStarted)
	require.Equal(t, 10*time.Second, d.RemainingTime)
}

func TestCheckSubjectSeparatesCounters(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()

	anon := Request{Limiter: "verify", Client: "10.0.0.4", MaxRequests: 1, Window: time.Minute}
	ident := anon
	ident.Subject = "user@test.com"

	d, err := l.Check(ctx, anon)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, ident)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.EqualValues(t, 1, d.CurrentCount)
}

func TestCheckRejectsInvalidRequests(t *testing.T) {
	l, _, _ := newTestLimiter(t)

	tests := []Request{
		{Client: "1.1.1.1", MaxRequests: 1, Window: time.Second},
		{Limiter: "x", MaxRequests: 1, Window: time.Second},
		{Limiter: "x", Client: "1.1.1.1", Window: time.Second},
		{Limiter: "x", Client: "1.1.1.1", MaxRequests: 1},
	}
	for _, req := range tests {
		_, err := l.Check(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestCheckConcurrentRequestsNeverUnderCount(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	req := Request{Limiter: "burst", Client: "10.0.0.5", MaxRequests: 25, Window: time.Minute}

	const workers = 100
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
		counts  = make(map[int64]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Check(ctx, req)
			if err != nil {
				t.Errorf("check: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				counts[d.CurrentCount]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, req.MaxRequests, allowed)
	for n := int64(1); n <= int64(req.MaxRequests); n++ {
		require.Equal(t, 1, counts[n], "count %d", n)
	}
}

func TestPeekDoesNotCount(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	req := Request{Limiter: "peek", Client: "10.0.0.6", MaxRequests: 1, Window: time.Minute}

	st, err := l.Peek(ctx, req)
	require.NoError(t, err)
	require.False(t, st.Exists)

	for i := 0; i < 2; i++ {
		_, err = l.Check(ctx, req)
		require.NoError(t, err)
	}

	st, err = l.Peek(ctx, req)
	require.NoError(t, err)
	require.True(t, st.Exists)
	require.EqualValues(t, 1, st.Count)
	require.Equal(t, time.Minute, st.BlockRemaining)

	st2, err := l.Peek(ctx, req)
	require.NoError(t, err)
	require.Equal(t, st, st2)
}

func TestPeekRejectsCorruptCounter(t *testing.T) {
	l, _, mr := newTestLimiter(t)
	req := Request{Limiter: "peek", Client: "10.0.0.8", MaxRequests: 1, Window: time.Minute}

	mr.HSet("gt:rl:ip:peek:10.0.0.8", "createdAt", "1700000000000", "count", "lots")
	_, err := l.Peek(context.Background(), req)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	mr.HSet("gt:rl:ip:peek:10.0.0.8", "count", "3", "createdAt", "")
	_, err = l.Peek(context.Background(), req)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestResetAndUnlockSubject(t *testing.T) {
	l, _, mr := newTestLimiter(t)
	ctx := context.Background()

	a := Request{Limiter: "a", Client: "1.1.1.1", Subject: "alice", MaxRequests: 1, Window: time.Minute}
	b := Request{Limiter: "b", Client: "2.2.2.2", Subject: "alice", MaxRequests: 1, Window: time.Minute}
	bob := Request{Limiter: "a", Client: "1.1.1.1", Subject: "bob", MaxRequests: 1, Window: time.Minute}
	anon := Request{Limiter: "a", Client: "1.1.1.1", MaxRequests: 1, Window: time.Minute}

	for _, req := range []Request{a, a, b, bob, anon} {
		_, err := l.Check(ctx, req)
		require.NoError(t, err)
	}

	deleted, err := l.UnlockSubject(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted) // two counters and one marker

	deleted, err = l.UnlockSubject(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, deleted)

	d, err := l.Check(ctx, a)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.EqualValues(t, 1, d.CurrentCount)

	require.True(t, mr.Exists("gt:rl:sub:bob:a:1.1.1.1"))
	require.True(t, mr.Exists("gt:rl:ip:a:1.1.1.1"))

	require.NoError(t, l.Reset(ctx, anon))
	require.False(t, mr.Exists("gt:rl:ip:a:1.1.1.1"))
	require.NoError(t, l.Reset(ctx, anon))
}

type failingStore struct {
	stores.Store
}

func (failingStore) RunWindow(context.Context, string, string, time.Time, int64, time.Duration) (stores.WindowResult, error) {
	return stores.WindowResult{}, stores.Error.New("connection refused")
}

func TestCheckPropagatesStoreFailure(t *testing.T) {
	l := New(failingStore{}, keys.NewSpace("gt"), nil)

	_, err := l.Check(context.Background(), forgotPassword("10.0.0.7"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStoreUnavailable))
}
