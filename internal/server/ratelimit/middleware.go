package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/server/reqctx"
)

// WriteHeaders writes rate limit headers to the response.
func WriteHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// BuildKey creates a bucket key from a scope name and the client identifier.
func BuildKey(scope, identifier string) string {
	return scope + ":" + identifier
}

// Middleware limits next per client IP as resolved by the request context,
// falling back to the peer address. A nil Limiter disables limiting.
func Middleware(l *Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := reqctx.ClientIP(r.Context())
			if ip == "" {
				ip = reqctx.GetClientIP(r)
			}
			result := l.Allow(BuildKey(scope, ip))
			WriteHeaders(w, result)
			if !result.Allowed {
				slog.WarnContext(r.Context(), "Rate limited", "scope", scope, "ip", ip)
				apiErr := apierrors.TooManyRequests()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(apiErr.StatusCode())
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": apiErr.Code(), "message": apiErr.Error()},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
