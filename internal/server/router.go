// Package server wires the HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/maruel/buyandsell/internal/metrics"
	"github.com/maruel/buyandsell/internal/server/auth"
	"github.com/maruel/buyandsell/internal/server/handlers"
	"github.com/maruel/buyandsell/internal/server/ratelimit"
	"github.com/maruel/buyandsell/internal/server/reqctx"
	"github.com/maruel/buyandsell/internal/storage"
)

// Config holds what NewRouter needs.
type Config struct {
	Store   *storage.Store
	Tokens  *auth.Tokens
	Metrics *metrics.Metrics // optional
	Version string
	// Proxies lists the reverse proxies whose forwarded headers are
	// believed; nil uses the peer address.
	Proxies *reqctx.Proxies

	// AuthRatePerMin limits registration and login per client IP; 0 disables.
	AuthRatePerMin int
	// MaxBodyBytes caps every request body; uploads are additionally capped
	// by the upload store.
	MaxBodyBytes int64
}

// Router is the HTTP handler of the API.
type Router struct {
	http.Handler
	limiter *ratelimit.Limiter
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *Config) *Router {
	mux := http.NewServeMux()
	store := cfg.Store

	health := handlers.NewHealthHandler(cfg.Version)
	users := handlers.NewUserHandler(store.Users, store.Uploads, cfg.Tokens)
	categories := handlers.NewCategoryHandler(store.Categories)
	offers := handlers.NewOfferHandler(store)
	comments := handlers.NewCommentHandler(store)

	var limiter *ratelimit.Limiter
	if cfg.AuthRatePerMin > 0 {
		limiter = ratelimit.NewLimiter(cfg.AuthRatePerMin, time.Minute, cfg.AuthRatePerMin)
	}
	authLimit := ratelimit.Middleware(limiter, "auth")

	// Health check
	mux.Handle("GET /api/health", Wrap(health.Health))

	// Users
	mux.Handle("POST /api/users/register", authLimit(WrapCreated(users.Register)))
	mux.Handle("POST /api/users/login", authLimit(Wrap(users.Login)))
	mux.Handle("GET /api/users/me", WrapAuth(users.Me))
	mux.Handle("POST /api/users/{id}/avatar", WrapAuthRaw(users.UploadAvatar))

	// Categories
	mux.Handle("GET /api/categories", Wrap(categories.List))
	mux.Handle("POST /api/categories", WrapAuthCreated(categories.Create))

	// Offers
	mux.Handle("GET /api/offers", Wrap(offers.List))
	mux.Handle("GET /api/offers/{id}", Wrap(offers.Get))
	mux.Handle("POST /api/offers", WrapAuthCreated(offers.Create))
	mux.Handle("PATCH /api/offers/{id}", WrapAuth(offers.Update))
	mux.Handle("DELETE /api/offers/{id}", WrapAuthNoContent(offers.Delete))

	// Comments
	mux.Handle("GET /api/offers/{id}/comments", Wrap(comments.List))
	mux.Handle("POST /api/offers/{id}/comments", WrapAuthCreated(comments.Create))

	// Uploaded avatars and images
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(store.Uploads.Dir()))))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	// The instrumentation reads the pattern the mux stores in the request, so
	// it must receive the same *http.Request as the mux.
	var h http.Handler = mux
	if cfg.Metrics != nil {
		h = cfg.Metrics.InstrumentHandler(h)
	}
	h = Authenticate(store.Users, cfg.Tokens)(h)
	h = LimitBody(cfg.MaxBodyBytes)(h)
	h = AccessLog(h)
	h = RequestContext(cfg.Proxies)(h)
	return &Router{Handler: h, limiter: limiter}
}
