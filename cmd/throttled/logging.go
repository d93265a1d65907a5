package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/goThrottle/middleware"
)

// statusLevel takes an HTTP status and returns an appropriate log level.
// 429 is logged at Info so throttling is visible without debug logging.
func statusLevel(status int) zapcore.Level {
	switch {
	case status == http.StatusNotImplemented:
		return zap.WarnLevel
	case status >= 500:
		return zap.ErrorLevel
	case status == http.StatusTooManyRequests:
		return zap.InfoLevel
	default:
		return zap.DebugLevel
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		if ce := s.log.Check(statusLevel(rec.status), "request"); ce != nil {
			ce.Write(
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("client", middleware.ClientIdentity(r)),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, ConfigError.New("log level %q: %v", level, err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
