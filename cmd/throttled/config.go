package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"

	goThrottle "github.com/MrEthical07/goThrottle"
)

// ConfigError is a class of errors relating to config validation.
var ConfigError = errs.Class("throttled configuration")

// Config is the config for running the server. Every flag defaults to the
// environment variable named in its help text.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration

	RedisURI string
	Memory   bool

	KeyPrefix        string
	Window           time.Duration
	MaxRequests      int
	FailuresPerBlock int
	BlockPeriods     []string
	FailOpen         bool

	AdminSecret string
	CORSOrigins []string
	SeedUsers   []string

	LogLevel string
	LogDev   bool
	AuditLog bool
}

func (c *Config) bind(fs *pflag.FlagSet) {
	defaults := goThrottle.DefaultConfig()

	fs.StringVar(&c.ListenAddr, "listen-addr", envString("LISTEN_ADDR", ":3000"), "address to listen on (LISTEN_ADDR)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown deadline")

	fs.StringVar(&c.RedisURI, "redis-uri", envString("REDIS_URI", "redis://localhost:6379"), "redis connection URI (REDIS_URI)")
	fs.BoolVar(&c.Memory, "memory", false, "use an in-process miniredis instead of --redis-uri")

	fs.StringVar(&c.KeyPrefix, "key-prefix", envString("KEY_PREFIX", defaults.Store.KeyPrefix), "prefix of every redis key (KEY_PREFIX)")
	fs.DurationVar(&c.Window, "window", envSeconds("RATE_LIMIT_RESET", defaults.RateLimit.DefaultWindow), "default rate-limit window; env value in seconds (RATE_LIMIT_RESET)")
	fs.IntVar(&c.MaxRequests, "max-requests", envInt("DEFAULT_MAX_REQUESTS", defaults.RateLimit.DefaultMaxRequests), "default requests per window (DEFAULT_MAX_REQUESTS)")
	fs.IntVar(&c.FailuresPerBlock, "failures-per-block", envInt("FAILED_ATTEMPTS_PER_BLOCK", defaults.Login.FailuresPerBlock), "failed logins per lockout step (FAILED_ATTEMPTS_PER_BLOCK)")
	fs.StringSliceVar(&c.BlockPeriods, "block-periods", envList("BLOCK_PERIODS", formatDurations(defaults.Login.BlockSchedule)), "lockout schedule; durations or seconds (BLOCK_PERIODS)")
	fs.BoolVar(&c.FailOpen, "fail-open", envBool("FAIL_OPEN", defaults.Store.FailOpen), "admit requests while redis is unreachable (FAIL_OPEN)")

	fs.StringVar(&c.AdminSecret, "admin-jwt-secret", envString("ADMIN_JWT_SECRET", ""), "HS256 secret guarding the reset endpoints; empty disables the check (ADMIN_JWT_SECRET)")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", envList("CORS_ORIGINS", nil), "allowed CORS origins (CORS_ORIGINS)")
	fs.StringSliceVar(&c.SeedUsers, "seed-user", []string{"user1@test.com:password1", "user2@test.com:password2"}, "demo account as email:password; repeatable")

	fs.StringVar(&c.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "log level (LOG_LEVEL)")
	fs.BoolVar(&c.LogDev, "log-dev", false, "human-readable development logging")
	fs.BoolVar(&c.AuditLog, "audit-log", envBool("AUDIT_LOG", false), "write audit events as JSON lines to stderr (AUDIT_LOG)")
}

// throttleConfig converts the flags into an engine configuration.
func (c Config) throttleConfig() (goThrottle.Config, error) {
	schedule, err := parseDurations(c.BlockPeriods)
	if err != nil {
		return goThrottle.Config{}, ConfigError.Wrap(err)
	}

	cfg := goThrottle.DefaultConfig()
	cfg.Store.KeyPrefix = c.KeyPrefix
	cfg.Store.FailOpen = c.FailOpen
	cfg.RateLimit.DefaultWindow = c.Window
	cfg.RateLimit.DefaultMaxRequests = c.MaxRequests
	cfg.Login.FailuresPerBlock = c.FailuresPerBlock
	cfg.Login.BlockSchedule = schedule
	cfg.Audit.Enabled = c.AuditLog

	if err := cfg.Validate(); err != nil {
		return goThrottle.Config{}, ConfigError.Wrap(err)
	}
	return cfg, nil
}

// seedAccounts splits --seed-user values.
func (c Config) seedAccounts() ([][2]string, error) {
	out := make([][2]string, 0, len(c.SeedUsers))
	for _, entry := range c.SeedUsers {
		email, pass, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(email) == "" || pass == "" {
			return nil, ConfigError.New("seed user %q: want email:password", entry)
		}
		out = append(out, [2]string{strings.TrimSpace(email), pass})
	}
	return out, nil
}

// parseDurations accepts Go durations ("10s", "1h30m") and bare integers,
// which are read as seconds.
func parseDurations(values []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out = append(out, time.Duration(secs)*time.Second)
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errs.New("block period %q: %v", raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func formatDurations(ds []time.Duration) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(envString(key, "")); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(envString(key, "")); err == nil {
		return v
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if v, err := strconv.ParseInt(envString(key, ""), 10, 64); err == nil {
		return time.Duration(v) * time.Second
	}
	return def
}

func envList(key string, def []string) []string {
	v := envString(key, "")
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
