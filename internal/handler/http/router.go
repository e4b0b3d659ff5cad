package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhayc-main/next-starter/pkg/health"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

// RouterConfig holds the HTTP-layer settings.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PostLoginRedirect string
	OAuthStateTTL     time.Duration
	SecureCookies     bool
}

// NewRouter creates a chi router with all routes registered. flow may be nil,
// in which case the OAuth routes are not mounted.
func NewRouter(
	accounts AccountService,
	sessions SessionParser,
	validate middleware.TokenValidator,
	flow OAuthFlow,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(accounts, sessions, cfg.PostLoginRedirect, cfg.SecureCookies, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Get("/session", authHandler.Session)
		r.Post("/session/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		if flow != nil {
			oauthHandler := NewOAuthHandler(flow, accounts, cfg.PostLoginRedirect, cfg.OAuthStateTTL, cfg.SecureCookies, logger)
			r.Get("/oauth/{provider}/login", oauthHandler.Login)
			r.Get("/oauth/{provider}/callback", oauthHandler.Callback)
		}
	})

	// Signed-in account endpoints
	accountHandler := NewAccountHandler(accounts, logger)
	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.Use(middleware.Auth(validate))
		r.Use(middleware.RequestLogger(logger))

		r.Get("/me", accountHandler.GetProfile)
		r.With(ContentTypeJSON).Patch("/me", accountHandler.UpdateProfile)
	})

	return r
}
