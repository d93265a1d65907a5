package goThrottle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goThrottle/internal/rate"
)

// CheckRateLimit describes the checkratelimit operation and its observable behavior.
//
// CheckRateLimit counts one request against the fixed window of (LimiterKey, ClientIdentity,
// Subject). The first request of a window is allowed with CurrentCount 1; requests are allowed
// until CurrentCount reaches the cap; later requests in the same window are denied with the
// time left on the block. A denial is a decision, not an error.
// CheckRateLimit returns [ErrInvalidConfiguration] for unusable per-call overrides,
// [ErrInvalidRequest] for an empty key or identity, and [ErrStoreUnavailable] when the store
// fails. All of these are reported before or instead of counting.
func (e *Engine) CheckRateLimit(ctx context.Context, req RateLimitRequest) (RateLimitDecision, error) {
	if e == nil || e.rateLimiter == nil {
		return RateLimitDecision{}, ErrEngineNotReady
	}

	resolved, err := e.resolveRateLimit(req)
	if err != nil {
		return RateLimitDecision{}, err
	}

	start := time.Now()
	d, err := e.rateLimiter.Check(ctx, resolved)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricCheckLatency, time.Since(start))
	}
	if err != nil {
		return RateLimitDecision{}, e.translateError("check_rate_limit", err)
	}

	decision := RateLimitDecision{
		Allowed:        d.Allowed,
		CurrentCount:   d.CurrentCount,
		RemainingTime:  d.RemainingTime,
		ClientIdentity: d.Client,
		WindowStart:    d.WindowStart,
	}

	if decision.Allowed {
		e.metricInc(MetricRateLimitAllowed)
		return decision, nil
	}

	e.metricInc(MetricRateLimitDenied)
	if d.BlockStarted {
		e.metricInc(MetricRateLimitBlockStarted)
		e.logger.Info("rate limit block started",
			zap.String("limiter", req.LimiterKey),
			zap.String("client", req.ClientIdentity),
			zap.Int64("count", d.CurrentCount),
			zap.Duration("window", resolved.Window),
		)
		e.emitAudit(ctx, auditEventRateLimitBlocked, auditTarget{
			subject: req.Subject,
			client:  req.ClientIdentity,
			limiter: req.LimiterKey,
		}, nil, func() map[string]string {
			return map[string]string{
				"max_requests": fmt.Sprint(resolved.MaxRequests),
				"window":       resolved.Window.String(),
			}
		})
	}

	return decision, nil
}

// PeekRateLimit describes the peekratelimit operation and its observable behavior.
//
// PeekRateLimit reads the counter and block marker of a tuple without counting a request.
// MaxRequests and Window are ignored.
func (e *Engine) PeekRateLimit(ctx context.Context, req RateLimitRequest) (RateLimitStatus, error) {
	if e == nil || e.rateLimiter == nil {
		return RateLimitStatus{}, ErrEngineNotReady
	}

	st, err := e.rateLimiter.Peek(ctx, toRateRequest(req))
	if err != nil {
		return RateLimitStatus{}, e.translateError("peek_rate_limit", err)
	}

	return RateLimitStatus{
		Exists:         st.Exists,
		Count:          st.Count,
		WindowStart:    st.WindowStart,
		BlockRemaining: st.BlockRemaining,
	}, nil
}

// ResetRateLimit deletes the counter and block marker of one tuple. Resetting an absent
// counter is not an error.
func (e *Engine) ResetRateLimit(ctx context.Context, req RateLimitRequest) error {
	if e == nil || e.rateLimiter == nil {
		return ErrEngineNotReady
	}

	if err := e.rateLimiter.Reset(ctx, toRateRequest(req)); err != nil {
		return e.translateError("reset_rate_limit", err)
	}

	e.emitAudit(ctx, auditEventRateLimitReset, auditTarget{
		subject: req.Subject,
		client:  req.ClientIdentity,
		limiter: req.LimiterKey,
	}, nil, nil)
	return nil
}

// UnlockRateLimitsForSubject describes the unlockratelimitsforsubject operation and its
// observable behavior.
//
// UnlockRateLimitsForSubject deletes every rate-limit counter and block marker recorded with
// subject, across all limiters and clients, and returns how many keys were removed. Anonymous
// counters are untouched. Calling it again, or for an unknown subject, returns 0 and no error.
func (e *Engine) UnlockRateLimitsForSubject(ctx context.Context, subject string) (int, error) {
	if e == nil || e.rateLimiter == nil {
		return 0, ErrEngineNotReady
	}

	deleted, err := e.rateLimiter.UnlockSubject(ctx, subject)
	if err != nil {
		return int(deleted), e.translateError("unlock_rate_limits_for_subject", err)
	}

	e.metricInc(MetricSubjectRateLimitUnlock)
	e.logger.Info("rate limits unlocked for subject",
		zap.String("subject", subject),
		zap.Int64("deleted_keys", deleted),
	)
	e.emitAudit(ctx, auditEventSubjectRateUnlocked, auditTarget{subject: subject}, nil, func() map[string]string {
		return map[string]string{"deleted_keys": fmt.Sprint(deleted)}
	})

	return int(deleted), nil
}

func (e *Engine) resolveRateLimit(req RateLimitRequest) (rate.Request, error) {
	out := toRateRequest(req)

	switch {
	case req.MaxRequests == 0:
		out.MaxRequests = e.config.RateLimit.DefaultMaxRequests
	case req.MaxRequests < 0:
		return rate.Request{}, fmt.Errorf("%w: MaxRequests must be > 0", ErrInvalidConfiguration)
	}

	switch {
	case req.Window == 0:
		out.Window = e.config.RateLimit.DefaultWindow
	case req.Window < time.Second:
		return rate.Request{}, fmt.Errorf("%w: Window must be >= 1s", ErrInvalidConfiguration)
	}

	return out, nil
}

func toRateRequest(req RateLimitRequest) rate.Request {
	return rate.Request{
		Limiter:     req.LimiterKey,
		Client:      req.ClientIdentity,
		Subject:     req.Subject,
		MaxRequests: req.MaxRequests,
		Window:      req.Window,
	}
}
