package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	goThrottle "github.com/MrEthical07/goThrottle"
	"github.com/MrEthical07/goThrottle/jwt"
	"github.com/MrEthical07/goThrottle/metrics/export/prometheus"
	"github.com/MrEthical07/goThrottle/middleware"
	"github.com/MrEthical07/goThrottle/password"
)

const maxBodyBytes = 1 << 16

// server holds the HTTP handlers of throttled.
type server struct {
	engine *goThrottle.Engine
	users  *password.Directory
	tokens *jwt.Manager
	log    *zap.Logger
	now    func() time.Time
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetBody struct {
	Email string `json:"email"`
	IP    string `json:"ip,omitempty"`
}

type loginBlockedData struct {
	RetryAfter    int64 `json:"retryAfter"`
	BlockDuration int64 `json:"blockDuration"`
}

func (s *server) routes(corsOrigins []string) http.Handler {
	r := mux.NewRouter()

	users := r.PathPrefix("/users").Subrouter()
	users.HandleFunc("/signin", s.handleSignIn).Methods(http.MethodPost)
	users.Handle("/signup", s.rateLimited("signup", s.handleSignUp)).Methods(http.MethodPost)
	users.Handle("/forgot-password", s.rateLimited("forgot-password", s.handleForgotPassword)).Methods(http.MethodPost)

	admin := middleware.RequireAdmin(s.tokens, jwt.ScopeReset)
	users.Handle("/reset-rate-limit", admin(http.HandlerFunc(s.handleResetRateLimit))).Methods(http.MethodPost)
	users.Handle("/reset-all-rate-limits", admin(http.HandlerFunc(s.handleResetAll))).Methods(http.MethodPost)

	r.HandleFunc("/health/redis", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.NewPrometheusExporter(s.engine).Handler()).Methods(http.MethodGet)

	var h http.Handler = s.logRequests(r)
	if len(corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Retry-After"},
		}).Handler(h)
	}
	return h
}

func (s *server) rateLimited(limiter string, fn http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.engine, middleware.Policy{
		LimiterKey: limiter,
		Logger:     s.log,
	})(fn)
}

func (s *server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.Body{Message: "email and password are required"})
		return
	}

	email := password.NormalizeEmail(body.Email)
	client := middleware.ClientIdentity(r)
	attempt, err := s.engine.GuardLogin(r.Context(), email, client, func(ctx context.Context) error {
		return s.users.Authenticate(ctx, email, body.Password)
	})

	switch {
	case attempt.Blocked:
		w.Header().Set("Retry-After", formatSeconds(attempt.Status.RetryAfter))
		middleware.WriteJSON(w, http.StatusTooManyRequests, middleware.Body{
			Message: "Too many login attempts",
			Data: loginBlockedData{
				RetryAfter:    int64(attempt.Status.RetryAfter / time.Second),
				BlockDuration: int64(attempt.Status.BlockDuration / time.Second),
			},
		})
	case errors.Is(err, goThrottle.ErrInvalidCredentials):
		middleware.WriteJSON(w, http.StatusUnauthorized, middleware.Body{Message: "Invalid credentials"})
	case err != nil:
		s.writeEngineError(w, "signin", err)
	default:
		middleware.WriteJSON(w, http.StatusOK, middleware.Body{
			Message: "Signed in successfully",
			Data:    map[string]string{"email": email},
		})
	}
}

func (s *server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Password == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.Body{Message: "email and password are required"})
		return
	}
	err := s.users.Create(body.Email, body.Password)
	switch {
	case errors.Is(err, password.ErrAccountExists):
		middleware.WriteJSON(w, http.StatusConflict, middleware.Body{Message: "User already exists"})
		return
	case err != nil:
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.Body{Message: err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, middleware.Body{
		Message: "User registered successfully",
		Data: map[string]string{
			"email":     password.NormalizeEmail(body.Email),
			"createdAt": s.now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Body{
		Message: "Password reset email sent successfully",
		Data: map[string]any{
			"email":      body.Email,
			"resetToken": uuid.NewString(),
			"expiresIn":  3600,
		},
	})
}

func (s *server) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if !decodeBody(w, r, &body) {
		return
	}
	ip := strings.TrimSpace(body.IP)
	if ip == "" {
		ip = middleware.ClientIdentity(r)
	}

	if err := s.engine.ResetLogin(r.Context(), password.NormalizeEmail(body.Email), ip); err != nil {
		s.writeEngineError(w, "reset-rate-limit", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Body{Message: "Rate limit reset successfully"})
}

func (s *server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if !decodeBody(w, r, &body) {
		return
	}

	email := password.NormalizeEmail(body.Email)
	logins, err := s.engine.ResetLoginsForSubject(r.Context(), email)
	if err != nil {
		s.writeEngineError(w, "reset-all-rate-limits", err)
		return
	}
	limits, err := s.engine.UnlockRateLimitsForSubject(r.Context(), email)
	if err != nil {
		s.writeEngineError(w, "reset-all-rate-limits", err)
		return
	}

	fields := []zap.Field{zap.String("subject", email), zap.Int("login_keys", logins), zap.Int("rate_limit_keys", limits)}
	if claims, ok := middleware.AdminFromContext(r.Context()); ok {
		fields = append(fields, zap.String("admin", claims.Subject))
	}
	s.log.Info("all rate limits reset", fields...)

	middleware.WriteJSON(w, http.StatusOK, middleware.Body{
		Message: "All rate limits reset successfully",
		Data:    map[string]int{"deletedKeys": logins + limits},
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "connected", http.StatusOK
	if err := s.engine.Ping(ctx); err != nil {
		s.log.Warn("redis health check failed", zap.Error(err))
		status, code = "disconnected", http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *server) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, goThrottle.ErrInvalidRequest):
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.Body{Message: "email is required"})
	case errors.Is(err, goThrottle.ErrStoreUnavailable):
		s.log.Error("store unavailable", zap.String("op", op), zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, middleware.Body{Message: "Rate limiter unavailable"})
	default:
		s.log.Error("request failed", zap.String("op", op), zap.Error(err))
		middleware.WriteJSON(w, http.StatusInternalServerError, middleware.Body{Message: "Internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.Body{Message: "invalid JSON body"})
		return false
	}
	return true
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
