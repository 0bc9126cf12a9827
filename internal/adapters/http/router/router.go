// Package router monta as rotas HTTP e os limiters que protegem cada grupo.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/http/handlers"
	httpMiddleware "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/http/middleware"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
)

type Deps struct {
	Limiters           *services.Limiters
	Stats              ports.StatsRecorder
	Logger             zerolog.Logger
	FailOpen           bool
	TrustXForwardedFor bool
	IdentityHeader     string
}

// New returns the application router:
//
//	GET  /healthz                  unguarded
//	POST /api/auth/{signin,signup} auth limiter, per route and client IP
//	GET  /api/{accounts,...}       api limiter, per user or client IP
//	POST /api/insights/generate    ai limiter, per user or client IP
func New(deps Deps) http.Handler {
	byIP := httpMiddleware.ByIP(deps.TrustXForwardedFor)
	byUser := httpMiddleware.ByHeader(deps.IdentityHeader, byIP)

	limiters := deps.Limiters
	if limiters == nil {
		limiters = &services.Limiters{}
	}

	guard := func(g services.Guard, keyFn httpMiddleware.KeyFunc) func(http.Handler) http.Handler {
		// A missing limiter must reach the middleware as a nil interface.
		var limiter ports.RateLimiter
		if g.Limiter != nil {
			limiter = g.Limiter
		}
		return httpMiddleware.NewRateLimiterMiddleware(limiter, g.Limit, httpMiddleware.Options{
			KeyFn:    keyFn,
			FailOpen: deps.FailOpen,
			Stats:    deps.Stats,
			Logger:   deps.Logger,
		})
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(httpMiddleware.NewRequestContextMiddleware(deps.Logger))

	r.Get("/healthz", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(guard(limiters.Auth, httpMiddleware.Composite("signin", byIP))).
				Post("/signin", handlers.Acknowledge("auth.signin"))
			r.With(guard(limiters.Auth, httpMiddleware.Composite("signup", byIP))).
				Post("/signup", handlers.Acknowledge("auth.signup"))
		})

		r.Group(func(r chi.Router) {
			r.Use(guard(limiters.API, byUser))
			r.Get("/accounts", handlers.Acknowledge("accounts.list"))
			r.Get("/transactions", handlers.Acknowledge("transactions.list"))
			r.Get("/goals", handlers.Acknowledge("goals.list"))
		})

		r.With(guard(limiters.AI, httpMiddleware.Composite("insights", byUser))).
			Post("/insights/generate", handlers.Acknowledge("insights.generate"))
	})

	return r
}
