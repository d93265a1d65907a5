package goThrottle

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goThrottle/internal/audit"
	"github.com/MrEthical07/goThrottle/internal/keys"
	"github.com/MrEthical07/goThrottle/internal/limiters"
	"github.com/MrEthical07/goThrottle/internal/rate"
	"github.com/MrEthical07/goThrottle/internal/stores"
)

// Builder assembles an [Engine].
//
// Builder instances are single-use: after a successful Build every further Build call fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration with a copy of cfg. Validation is deferred to
// Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis sets the store client. The caller keeps ownership: [Engine.Close] does not close it.
// Any go-redis client works, including *redis.Client and *redis.ClusterClient, but subject-wide
// resets scan only the node they are sent to.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. A nil logger keeps the default no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination of audit events. Events are only produced when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the clock used for rate-limit windows. Tests use it to
// move time without sleeping.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the CheckRateLimit latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires the store, the rate limiter, the login throttle,
// metrics and the audit dispatcher, and returns a ready engine. It performs no store I/O; use
// [Engine.Ping] for a startup health check. Build fails with [ErrInvalidConfiguration] for an
// invalid configuration and when no Redis client was supplied.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrInvalidConfiguration)
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := stores.NewRedisStore(b.redis)
	space := keys.NewSpace(cfg.Store.KeyPrefix)

	throttle, err := limiters.NewLoginThrottle(store, space, limiters.LockoutConfig{
		Threshold: cfg.Login.FailuresPerBlock,
		Schedule:  cfg.Login.BlockSchedule,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:      cfg,
		store:       store,
		rateLimiter: rate.New(store, space, now),
		logins:      throttle,
		metrics:     NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Retained:   retainedAuditEvents,
		}, b.auditSink),
		logger: logger.Named("gothrottle"),
		now:    now,
	}

	b.built = true

	return engine, nil
}
