package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	goThrottle "github.com/MrEthical07/goThrottle"
)

// Policy selects the counter charged by [RateLimit].
type Policy struct {
	LimiterKey string
	// MaxRequests and Window override the engine defaults when non-zero.
	MaxRequests int
	Window      time.Duration
	// Subject, when set, identifies the caller so identified and anonymous
	// traffic from one client are counted separately.
	Subject func(*http.Request) string
	Logger  *zap.Logger
}

// RateLimitedData is the data member of a 429 response.
type RateLimitedData struct {
	RetryAfter   int64  `json:"retryAfter"`
	CurrentCount int64  `json:"currentCount"`
	IP           string `json:"ip"`
}

type decisionContextKey struct{}

// DecisionFromContext returns the decision made by [RateLimit] for an admitted request.
func DecisionFromContext(ctx context.Context) (goThrottle.RateLimitDecision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(goThrottle.RateLimitDecision)
	return d, ok
}

// RateLimit describes the ratelimit operation and its observable behavior.
//
// RateLimit charges one request per call against policy for the caller's [ClientIdentity].
// Admitted requests reach next with the decision in their context. Denied requests get 429,
// a Retry-After header in seconds and a JSON body {message, data:{retryAfter, currentCount, ip}}.
// When the store is unavailable the request is admitted if the engine is configured to fail
// open and rejected with 503 otherwise. A nil engine rejects every request with 503.
func RateLimit(engine *goThrottle.Engine, policy Policy) func(http.Handler) http.Handler {
	logger := policy.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteJSON(w, http.StatusServiceUnavailable, Body{Message: "Rate limiter unavailable"})
				return
			}

			req := goThrottle.RateLimitRequest{
				LimiterKey:     policy.LimiterKey,
				ClientIdentity: ClientIdentity(r),
				MaxRequests:    policy.MaxRequests,
				Window:         policy.Window,
			}
			if policy.Subject != nil {
				req.Subject = policy.Subject(r)
			}

			d, err := engine.CheckRateLimit(r.Context(), req)
			switch {
			case errors.Is(err, goThrottle.ErrStoreUnavailable):
				if engine.FailOpen() {
					logger.Warn("rate limiter unavailable, admitting request",
						zap.String("limiter", policy.LimiterKey),
						zap.Error(err),
					)
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("rate limiter unavailable", zap.String("limiter", policy.LimiterKey), zap.Error(err))
				WriteJSON(w, http.StatusServiceUnavailable, Body{Message: "Rate limiter unavailable"})
				return
			case err != nil:
				logger.Error("rate limit check failed", zap.String("limiter", policy.LimiterKey), zap.Error(err))
				WriteJSON(w, http.StatusInternalServerError, Body{Message: "Internal server error"})
				return
			}

			if !d.Allowed {
				retry := d.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				WriteJSON(w, http.StatusTooManyRequests, Body{
					Message: "Too many requests",
					Data: RateLimitedData{
						RetryAfter:   retry,
						CurrentCount: d.CurrentCount,
						IP:           d.ClientIdentity,
					},
				})
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
