// Package server provides the HTTP API server, middleware, and handlers for the assistant.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/auth"
	"github.com/hrm8/assistant/internal/requestctx"
)

// AuthMiddleware validates the bearer token, rebuilds the actor from its
// claims and rejects actors that fail actor.Validate with 403.
func AuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed bearer token")
				return
			}
			a, err := tokens.ValidateToken(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", msg)
				return
			}
			if err := actor.Validate(a); err != nil {
				log.Warn().Err(err).Str("user_id", a.UserID).Msg("invalid_actor_rejected")
				writeError(w, http.StatusForbidden, "invalid_actor", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.SetActor(r.Context(), a)))
		})
	}
}

// RequireLevel rejects actors below level with 403.
func RequireLevel(level actor.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := requestctx.Actor(r.Context())
			if a == nil || !actor.DeriveAccessLevel(a).AtLeast(level) {
				writeError(w, http.StatusForbidden, "forbidden", "requires "+level.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware returns 429 with Retry-After when the actor exceeds
// its request rate. A nil limiter disables limiting.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := requestctx.Actor(r.Context())
			if a == nil {
				next.ServeHTTP(w, r)
				return
			}
			if rl.Allow(a.UserID) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
		})
	}
}

// CORSMiddleware returns a middleware that sets CORS headers. allowedOrigins can be ["*"] for any.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				for _, o := range allowedOrigins {
					if o == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "300")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorStatus maps typed errors onto a status and error code. fallback is
// used for anything untyped.
func errorStatus(err error, fallback int) (int, string) {
	var (
		verr *apperr.ValidationError
		aerr *apperr.AuthorizationError
		serr *apperr.ScopeConfigurationError
		perr *apperr.ProviderError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &aerr):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &serr):
		return http.StatusForbidden, "scope_configuration"
	case errors.As(err, &perr):
		return fallback, "provider_error"
	}
	return fallback, "internal"
}
