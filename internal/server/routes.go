package server

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rankwise/internal/extract"
	"rankwise/internal/handlers"
	"rankwise/internal/handlers/api"
	"rankwise/internal/llm"
	"rankwise/internal/metrics"
	"rankwise/internal/middleware"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Resolver          middleware.IdentityResolver
	Gate              api.QuotaGate
	Client            llm.Client
	CompletionOptions llm.Options
	Extractor         *extract.Extractor
	Researcher        api.Researcher
	Metrics           *metrics.Metrics
	// Database is pinged by the readiness probe; nil skips the check.
	Database handlers.Pinger
	// MetricsHandler serves /metrics; defaults to the global registry.
	MetricsHandler http.Handler
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Dependencies) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Resolver, s.Cfg.TrustProxy)

	probeHandler := handlers.NewProbeHandler(deps.Database, s.logger)
	keywordHandler := api.NewKeywordHandler(deps.Gate, deps.Client, deps.Extractor, deps.CompletionOptions, deps.Metrics, s.logger)
	researchHandler := api.NewResearchHandler(deps.Gate, deps.Researcher, deps.Metrics, s.logger)
	quotaHandler := api.NewQuotaHandler(deps.Gate)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(metricsHandler))

	// Actions
	apiGroup := s.App.Group("/api", s.rateLimiter(), authMiddleware.Identify)
	apiGroup.All("/keywords", api.Action(fiber.MethodPost, keywordHandler.Generate))
	apiGroup.All("/research", api.Action(fiber.MethodPost, researchHandler.Analyze))
	apiGroup.All("/quota", api.Action(fiber.MethodGet, quotaHandler.Status))
}
