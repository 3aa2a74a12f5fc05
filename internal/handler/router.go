package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
)

// Router wires the handlers into a chi mux.
type Router struct {
	authHandler           *AuthHandler
	recommendationHandler *RecommendationHandler
	healthHandler         *HealthHandler
	authMiddleware        func(http.Handler) http.Handler
	metrics               *metrics.Metrics
	metricsPath           string
	cors                  config.CORSConfig
	rateLimit             config.RateLimitConfig
	maxBodySize           int64
	logger                zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler           *AuthHandler
	RecommendationHandler *RecommendationHandler
	HealthHandler         *HealthHandler
	AuthMiddleware        func(http.Handler) http.Handler

	// Metrics, when not nil, is served on MetricsPath and fed by the access log.
	Metrics     *metrics.Metrics
	MetricsPath string

	CORS        config.CORSConfig
	RateLimit   config.RateLimitConfig
	MaxBodySize int64
	Logger      zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Router{
		authHandler:           cfg.AuthHandler,
		recommendationHandler: cfg.RecommendationHandler,
		healthHandler:         cfg.HealthHandler,
		authMiddleware:        cfg.AuthMiddleware,
		metrics:               cfg.Metrics,
		metricsPath:           metricsPath,
		cors:                  cfg.CORS,
		rateLimit:             cfg.RateLimit,
		maxBodySize:           cfg.MaxBodySize,
		logger:                cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID(rt.logger))
	r.Use(AccessLog(rt.metrics))
	r.Use(chimiddleware.Recoverer)
	if rt.cors.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cors.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         rt.cors.MaxAge,
		}))
	}
	r.Use(BodyLimit(rt.maxBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health and banner (no auth)
	r.Get("/", rt.healthHandler.Root)
	r.Get("/health", rt.healthHandler.Health)
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics.Handler())
	}

	// Credential endpoints, rate limited per client IP
	r.Group(func(r chi.Router) {
		if rt.rateLimit.Enabled {
			r.Use(httprate.Limit(
				rt.rateLimit.Requests,
				rt.rateLimit.Window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusTooManyRequests, "Too many requests")
				}),
			))
		}
		r.Post("/signup", rt.authHandler.Signup)
		r.Post("/login", rt.authHandler.Login)
	})

	r.With(rt.authMiddleware).Get("/me", rt.authHandler.Me)

	// Model predictions
	r.Post("/predict", rt.recommendationHandler.Predict)
	r.Post("/recommend", rt.recommendationHandler.Predict)

	// Rule table
	r.Route("/api/recommendations", func(r chi.Router) {
		r.Post("/", rt.recommendationHandler.Recommend)
		r.Get("/crops", rt.recommendationHandler.Crops)
		r.Get("/rules", rt.recommendationHandler.Rules)
	})

	return r
}
