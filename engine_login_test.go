package goThrottle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func failLogin(t *testing.T, te testEngine, subject, client string, n int) LoginFailure {
	t.Helper()

	var f LoginFailure
	for i := 0; i < n; i++ {
		var err error
		f, err = te.RecordLoginFailure(context.Background(), subject, client)
		require.NoError(t, err)
	}
	return f
}

func TestThreeFailuresBlockForTenSeconds(t *testing.T) {
	te := newTestEngine(t, nil, nil)
	ctx := context.Background()

	st, err := te.EvaluateLogin(ctx, "user1@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.False(t, st.Blocked())

	f := failLogin(t, te, "user1@test.com", "10.0.0.2", 3)
	require.True(t, f.BlockApplied)
	require.Equal(t, 10*time.Second, f.BlockDuration)

	st, err = te.EvaluateLogin(ctx, "user1@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.True(t, st.Blocked())
	require.Greater(t, st.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, st.RetryAfter, 10*time.Second)
	require.Equal(t, 10*time.Second, st.BlockDuration)

	// The lockout is scoped to the (subject, client) pair.
	st, err = te.EvaluateLogin(ctx, "user1@test.com", "10.0.0.3")
	require.NoError(t, err)
	require.False(t, st.Blocked())
}

func TestLockoutEscalatesAcrossTiers(t *testing.T) {
	te := newTestEngine(t, func(c *Config) {
		c.Login.FailuresPerBlock = 2
		c.Login.BlockSchedule = []time.Duration{5 * time.Second, 30 * time.Second}
	}, nil)

	want := []time.Duration{5 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, d := range want {
		f := failLogin(t, te, "s", "c", 2)
		require.True(t, f.BlockApplied, "tier %d", i)
		require.Equal(t, d, f.BlockDuration, "tier %d", i)
		require.EqualValues(t, 2*(i+1), f.FailedCount)
	}
}

func TestGuardLoginPaths(t *testing.T) {
	te := newTestEngine(t, nil, nil)
	ctx := context.Background()

	badPassword := func(context.Context) error {
		return fmt.Errorf("user1@test.com: %w", ErrInvalidCredentials)
	}

	for i := 1; i <= 2; i++ {
		attempt, err := te.GuardLogin(ctx, "user1@test.com", "10.0.0.2", badPassword)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.False(t, attempt.Blocked)
		require.False(t, attempt.Succeeded)
		require.EqualValues(t, i, attempt.Failure.FailedCount)
	}

	attempt, err := te.GuardLogin(ctx, "user1@test.com", "10.0.0.2", badPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.True(t, attempt.Failure.BlockApplied)

	called := false
	attempt, err = te.GuardLogin(ctx, "user1@test.com", "10.0.0.2", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, attempt.Blocked)
	require.False(t, called)
	require.Equal(t, 10*time.Second, attempt.Status.RetryAfter)
	require.Equal(t, 10*time.Second, attempt.Status.BlockDuration)

	te.mr.FastForward(10 * time.Second)

	attempt, err = te.GuardLogin(ctx, "user1@test.com", "10.0.0.2", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.True(t, attempt.Succeeded)

	st, err := te.EvaluateLogin(ctx, "user1@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.Equal(t, LoginStatus{}, st)
}

func TestGuardLoginPassesOtherErrorsThrough(t *testing.T) {
	te := newTestEngine(t, nil, nil)
	ctx := context.Background()
	boom := errors.New("user directory offline")

	for i := 0; i < 5; i++ {
		_, err := te.GuardLogin(ctx, "user2@test.com", "10.0.0.2", func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	st, err := te.EvaluateLogin(ctx, "user2@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.Zero(t, st.FailedCount)

	_, err = te.GuardLogin(ctx, "user2@test.com", "10.0.0.2", nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResetLoginsForSubject(t *testing.T) {
	te := newTestEngine(t, nil, nil)
	ctx := context.Background()

	failLogin(t, te, "user1@test.com", "10.0.0.2", 3)
	failLogin(t, te, "user1@test.com", "10.0.0.3", 1)
	failLogin(t, te, "user2@test.com", "10.0.0.2", 3)

	n, err := te.ResetLoginsForSubject(ctx, "user1@test.com")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = te.ResetLoginsForSubject(ctx, "user1@test.com")
	require.NoError(t, err)
	require.Zero(t, n)

	st, err := te.EvaluateLogin(ctx, "user1@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.False(t, st.Blocked())

	st, err = te.EvaluateLogin(ctx, "user2@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.True(t, st.Blocked())

	require.NoError(t, te.ResetLogin(ctx, "user2@test.com", "10.0.0.2"))
	st, err = te.EvaluateLogin(ctx, "user2@test.com", "10.0.0.2")
	require.NoError(t, err)
	require.Equal(t, LoginStatus{}, st)
}

func TestLoginMetrics(t *testing.T) {
	te := newTestEngine(t, nil, nil)
	ctx := context.Background()

	failLogin(t, te, "s", "c", 4)
	_, err := te.EvaluateLogin(ctx, "s", "c")
	require.NoError(t, err)
	require.NoError(t, te.ResetLogin(ctx, "s", "c"))
	_, err = te.ResetLoginsForSubject(ctx, "s")
	require.NoError(t, err)

	snap := te.MetricsSnapshot()
	require.EqualValues(t, 4, snap.Counters[MetricLoginFailure])
	require.EqualValues(t, 1, snap.Counters[MetricLoginLockout])
	require.EqualValues(t, 1, snap.Counters[MetricLoginBlocked])
	require.EqualValues(t, 1, snap.Counters[MetricLoginReset])
	require.EqualValues(t, 1, snap.Counters[MetricSubjectLoginReset])
}
