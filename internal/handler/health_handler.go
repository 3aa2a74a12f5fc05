package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// DatabaseChecker reports whether the database answers queries.
type DatabaseChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves the banner and health endpoints.
type HealthHandler struct {
	db              DatabaseChecker
	predictions     *service.PredictionService
	recommendations *service.RecommendationService
	logger          zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(
	db DatabaseChecker,
	predictions *service.PredictionService,
	recommendations *service.RecommendationService,
	logger zerolog.Logger,
) *HealthHandler {
	return &HealthHandler{
		db:              db,
		predictions:     predictions,
		recommendations: recommendations,
		logger:          logger.With().Str("handler", "health").Logger(),
	}
}

type healthResponse struct {
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	ClassifierLoaded bool   `json:"classifier_loaded"`
	Rules            int    `json:"rules"`
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Fertilizer Recommendation API is running!"})
}

// Health handles GET /health. It fails only when the database is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "healthy",
		ClassifierLoaded: h.predictions.Available(),
		Rules:            h.recommendations.RuleCount(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("database health check failed")
		resp.Status = "unhealthy"
		resp.Error = "database unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
