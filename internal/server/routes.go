package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/server/handlers"
	servermw "github.com/pkgmeta/repometa/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Scrape output of the exporter, proxied onto the API port.
	s.router.Get("/metrics", MetricsHandler)

	if s.opts.Processor != nil {
		s.router.Method("POST", "/v1/analyze", &handlers.AnalyzeHandler{Processor: s.opts.Processor})
	}

	s.registerAdminEndpoints()
}

// registerAdminEndpoints registers the token-protected admin surface when
// an admin token is configured.
func (s *Server) registerAdminEndpoints() {
	logger := observability.Current()

	if s.opts.AdminToken == "" {
		logger.Debug("Admin endpoints disabled (no admin.token configured)")
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	signalHandler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})
	s.router.Post("/admin/signal", signalHandler.ServeHTTP)

	if s.opts.Cache != nil {
		cache := &handlers.CacheHandlers{Cache: s.opts.Cache}
		s.router.Group(func(r chi.Router) {
			r.Use(servermw.BearerToken(s.opts.AdminToken))
			r.Get("/admin/cache", cache.Stats)
			r.Post("/admin/cache/invalidate", cache.Invalidate)
		})
	}

	logger.Info("Admin endpoints enabled",
		zap.String("path", "/admin/*"),
		zap.String("auth", "bearer token"),
		zap.String("signal_rate_limit", "10/min, burst 5"))
	logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
