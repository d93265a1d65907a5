package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goThrottle/jwt"
)

type adminContextKey struct{}

// AdminFromContext returns the claims of the admin token accepted by [RequireAdmin].
func AdminFromContext(ctx context.Context) (*jwt.AdminClaims, bool) {
	claims, ok := ctx.Value(adminContextKey{}).(*jwt.AdminClaims)
	return claims, ok
}

// RequireAdmin rejects requests without a bearer token that verifies against tokens and
// carries every scope in scopes. A nil manager disables the check, which is how the server
// runs when no admin secret is configured.
func RequireAdmin(tokens *jwt.Manager, scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="throttle-admin"`)
				WriteJSON(w, http.StatusUnauthorized, Body{Message: "Unauthorized"})
				return
			}

			claims, err := tokens.Verify(token, scopes...)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="throttle-admin", error="invalid_token"`)
				WriteJSON(w, http.StatusUnauthorized, Body{Message: "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
