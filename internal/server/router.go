package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mangos/mangos/internal/handler"
	"github.com/mangos/mangos/internal/middleware"
)

// RouterConfig carries everything the HTTP routes depend on.
type RouterConfig struct {
	Logger *slog.Logger

	Index   *handler.Handler
	Health  *handler.HealthHandler
	Metrics *handler.MetricsHandler
	Mangos  *handler.MangoHandler
	APIKeys *handler.APIKeyHandler

	Keys      middleware.KeyStore
	AuthCache middleware.AuthCache
	Limiter   middleware.RateLimiter

	RateLimitEnabled   bool
	IsDevelopment      bool
	CORSAllowedOrigins []string
	MaxRequestBodySize int64

	// AuthMinDuration overrides the auth timing floor when positive.
	AuthMinDuration time.Duration
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(rc RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := rc.CORSAllowedOrigins
	if len(origins) == 0 && rc.IsDevelopment {
		origins = []string{"*"}
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = origins
	corsCfg.Logger = rc.Logger

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(rc.Logger))
	r.Use(middleware.Recoverer(rc.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: rc.IsDevelopment}))
	r.Use(middleware.CORS(corsCfg))
	if rc.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(rc.MaxRequestBodySize))
	}

	// Probes and metrics (no auth required)
	r.Get("/healthz", rc.Health.Healthz)
	r.Get("/readyz", rc.Health.Readyz)
	if rc.Metrics != nil {
		r.Get("/metrics", rc.Metrics.Metrics)
	}

	r.Get("/", rc.Index.Index)

	authCfg := middleware.AuthConfig{
		Logger:      rc.Logger,
		Keys:        rc.Keys,
		Cache:       rc.AuthCache,
		MinDuration: rc.AuthMinDuration,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  rc.Logger,
		Limiter: rc.Limiter,
		Enabled: rc.RateLimitEnabled,
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.Route("/mangos", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", rc.Mangos.List)
			r.With(middleware.RequireWrite()).Post("/", rc.Mangos.Create)
			r.With(middleware.RequireRead()).Get("/{id}", rc.Mangos.Get)
			r.With(middleware.RequireWrite()).Patch("/{id}", rc.Mangos.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", rc.Mangos.Delete)
		})

		// Key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", rc.APIKeys.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", rc.APIKeys.CreateAPIKey)
			r.With(middleware.RequireAdmin()).Delete("/{key_id}", rc.APIKeys.RevokeAPIKey)
			r.With(middleware.RequireAdmin()).Post("/{key_id}/rotate", rc.APIKeys.RotateAPIKey)
		})
	})

	r.NotFound(rc.Index.NotFound)
	r.MethodNotAllowed(rc.Index.MethodNotAllowed)

	return r
}
