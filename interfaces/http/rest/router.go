package rest

import (
	"context"
	"net/http"
	"time"

	"bottomtime/interfaces/http/rest/handlers"
	"bottomtime/interfaces/http/rest/middleware"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/common"
	"bottomtime/pkg/errors"
	"bottomtime/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// CORSConfig controls cross-origin access
type CORSConfig struct {
	Enabled bool
	Origins []string
}

// Router creates and configures the HTTP router
type Router struct {
	authHandler    *handlers.AuthHandler
	userHandler    *handlers.UserHandler
	diveLogHandler *handlers.DiveLogHandler

	authenticator middleware.Authenticator
	users         middleware.UserLookup
	loginLimiter  auth.RateLimiter

	errs        *errors.ErrorHandler
	tracer      *observability.Tracer
	httpMetrics *observability.HTTPMetrics
	cors        CORSConfig
	proxyHops   int
	checks      map[string]ReadinessCheck
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	diveLogHandler *handlers.DiveLogHandler,
	authenticator middleware.Authenticator,
	users middleware.UserLookup,
	loginLimiter auth.RateLimiter,
	errs *errors.ErrorHandler,
	tracer *observability.Tracer,
	httpMetrics *observability.HTTPMetrics,
	corsConfig CORSConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		authHandler:    authHandler,
		userHandler:    userHandler,
		diveLogHandler: diveLogHandler,
		authenticator:  authenticator,
		users:          users,
		loginLimiter:   loginLimiter,
		errs:           errs,
		tracer:         tracer,
		httpMetrics:    httpMetrics,
		cors:           corsConfig,
		checks:         make(map[string]ReadinessCheck),
		logger:         logger,
	}
}

// AddReadinessCheck registers a dependency checked by /ready
func (rt *Router) AddReadinessCheck(name string, check ReadinessCheck) {
	rt.checks[name] = check
}

// TrustProxies sets how many reverse proxies in front of the API append to
// X-Forwarded-For. Zero keys clients on the TCP peer.
func (rt *Router) TrustProxies(hops int) {
	rt.proxyHops = hops
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RealIP(rt.proxyHops))
	router.Use(rt.errs.Middleware)
	router.Use(rt.tracer.Middleware)
	router.Use(rt.httpMetrics.Middleware)
	router.Use(chimiddleware.StripSlashes)

	if rt.cors.Enabled {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cors.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Use(middleware.LoadSession(rt.authenticator, rt.errs, rt.logger))
	router.Use(middleware.Logger(rt.logger))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.httpMetrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(
				middleware.RateLimit(rt.loginLimiter, rt.errs, rt.logger),
				middleware.ResetOnSuccess(rt.loginLimiter, rt.logger),
			).Post("/login", rt.authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(rt.errs))
				r.Post("/logout", rt.authHandler.Logout)
				r.Get("/me", rt.authHandler.Me)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", rt.userHandler.SignUp)

			r.Route("/{user}", func(r chi.Router) {
				r.Post("/requestPasswordReset", rt.userHandler.RequestPasswordReset)
				r.Post("/resetPassword", rt.userHandler.ResetPassword)

				r.Group(func(r chi.Router) {
					r.Use(middleware.SelfOrAdmin(rt.users, rt.errs))
					r.Get("/", rt.userHandler.Get)
					r.Patch("/", rt.userHandler.Update)
					r.Post("/changePassword", rt.userHandler.ChangePassword)
					r.Get("/oauth", rt.userHandler.ListOAuth)
					r.Delete("/oauth/{provider}", rt.userHandler.DisconnectOAuth)
				})
			})
		})

		r.Route("/logs/{user}", func(r chi.Router) {
			r.Use(middleware.SelfOrAdmin(rt.users, rt.errs))
			r.Post("/", rt.diveLogHandler.Create)
			r.Get("/", rt.diveLogHandler.List)
			r.Get("/{logId}", rt.diveLogHandler.Get)
			r.Put("/{logId}", rt.diveLogHandler.Update)
			r.Patch("/{logId}", rt.diveLogHandler.Update)
			r.Delete("/{logId}", rt.diveLogHandler.Delete)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errs.Handle(w, r, errors.NewNotFoundError("route"))
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck runs every registered dependency check
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not ready",
			"failures": failures,
		})
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
