package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/auth"
	"github.com/maruel/buyandsell/internal/server/reqctx"
	"github.com/maruel/buyandsell/internal/storage"
)

// Authenticate attaches the user named by a bearer token to the request
// context. Requests without an Authorization header pass through anonymous;
// a header that does not verify is rejected with 401.
func Authenticate(users *storage.UserService, tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			tokenString, ok := auth.BearerToken(header)
			if !ok {
				writeAPIError(ctx, w, apierrors.Unauthorized().WithDetail("reason", "invalid authorization header"))
				return
			}
			userID, err := tokens.Parse(tokenString)
			if err != nil {
				writeAPIError(ctx, w, apierrors.Unauthorized().Wrap(err))
				return
			}
			user, err := users.Get(userID)
			if err != nil {
				writeAPIError(ctx, w, apierrors.Unauthorized().Wrap(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(models.WithUser(ctx, user)))
		})
	}
}

// RequestContext stores the client IP and a request ID in the context. The
// ID is taken from X-Request-ID when the client sent one and echoed back.
// Forwarded headers are only believed from proxies; nil trusts none.
func RequestContext(proxies *reqctx.Proxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := reqctx.WithClientIP(r.Context(), proxies.ClientIP(r))
			ctx = reqctx.WithRequestID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LimitBody caps request bodies at n bytes. Reads past the cap fail with
// *http.MaxBytesError.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		ctx := r.Context()
		level := slog.LevelInfo
		if rw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "http",
			"m", r.Method,
			"p", r.URL.Path,
			"s", rw.status,
			"d", time.Since(start).Round(time.Millisecond),
			"b", rw.size,
			"ip", reqctx.ClientIP(ctx),
			"id", reqctx.RequestID(ctx),
		)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (l *loggingResponseWriter) WriteHeader(code int) {
	l.status = code
	l.ResponseWriter.WriteHeader(code)
}

func (l *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := l.ResponseWriter.Write(b)
	l.size += n
	return n, err
}

func (l *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return l.ResponseWriter
}
