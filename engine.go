package goThrottle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goThrottle/internal/audit"
	"github.com/MrEthical07/goThrottle/internal/limiters"
	"github.com/MrEthical07/goThrottle/internal/rate"
	"github.com/MrEthical07/goThrottle/internal/stores"
)

// Engine evaluates rate limits and login lockouts against the shared store.
//
// Engine methods are safe for concurrent use after [Builder.Build]. The engine keeps no
// throttling state in memory; every decision reads the store.
type Engine struct {
	config      Config
	store       stores.Store
	rateLimiter *rate.Limiter
	logins      *limiters.LoginThrottle
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close flushes and stops the audit dispatcher. It does not close the Redis client, which
// stays owned by the caller. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Ping describes the ping operation and its observable behavior.
//
// Ping round-trips to the store and returns an error wrapping [ErrStoreUnavailable] when it is
// unreachable. It is meant for startup and health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FailOpen reports the configured failure stance for transport collaborators.
func (e *Engine) FailOpen() bool {
	return e != nil && e.config.Store.FailOpen
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped returns how many audit events were dropped by backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// translateError maps internal sentinels to the public ones and records
// store failures.
func (e *Engine) translateError(op string, err error) error {
	switch {
	case errors.Is(err, rate.ErrStoreUnavailable),
		errors.Is(err, limiters.ErrLockoutUnavailable):
		e.metricInc(MetricStoreError)
		e.logger.Warn("store unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, rate.ErrInvalidRequest),
		errors.Is(err, limiters.ErrInvalidLockoutRequest):
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	default:
		return err
	}
}
