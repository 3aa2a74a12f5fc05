package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/service"
	"github.com/prn-tf/fertilizer-advisor/internal/validation"
)

// RecommendationHandler serves model predictions and rule-table lookups.
type RecommendationHandler struct {
	predictions     *service.PredictionService
	recommendations *service.RecommendationService
	logger          zerolog.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(
	predictions *service.PredictionService,
	recommendations *service.RecommendationService,
	logger zerolog.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		predictions:     predictions,
		recommendations: recommendations,
		logger:          logger.With().Str("handler", "recommendation").Logger(),
	}
}

type nutrientRequest struct {
	N *float64 `json:"N" validate:"required,gte=0"`
	P *float64 `json:"P" validate:"required,gte=0"`
	K *float64 `json:"K" validate:"required,gte=0"`
}

func (req nutrientRequest) reading() domain.NutrientReading {
	return domain.NutrientReading{N: *req.N, P: *req.P, K: *req.K}
}

type cropRequest struct {
	Crop *string  `json:"crop" validate:"required,notblank"`
	N    *float64 `json:"N" validate:"required,gte=0"`
	P    *float64 `json:"P" validate:"required,gte=0"`
	K    *float64 `json:"K" validate:"required,gte=0"`
}

type fertilizerResponse struct {
	Fertilizer string `json:"fertilizer"`
}

type cropsResponse struct {
	Crops []string `json:"crops"`
}

type rulesResponse struct {
	Crop  string         `json:"crop"`
	Rules []*domain.Rule `json:"rules"`
}

// Predict handles POST /predict and POST /recommend.
func (h *RecommendationHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req nutrientRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	rec, err := h.predictions.Predict(r.Context(), req.reading())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fertilizerResponse{Fertilizer: rec.Fertilizer})
}

// Recommend handles POST /api/recommendations.
// A reading that meets no rule is still a 200 with matched=false.
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req cropRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	rec := h.recommendations.Lookup(*req.Crop, domain.NutrientReading{N: *req.N, P: *req.P, K: *req.K})
	writeJSON(w, http.StatusOK, rec)
}

// Crops handles GET /api/recommendations/crops.
func (h *RecommendationHandler) Crops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cropsResponse{Crops: h.recommendations.Crops()})
}

// Rules handles GET /api/recommendations/rules?crop=.
func (h *RecommendationHandler) Rules(w http.ResponseWriter, r *http.Request) {
	crop := strings.TrimSpace(r.URL.Query().Get("crop"))
	if crop == "" {
		writeServiceError(w, r, validation.NewError("crop", "required", "crop is required"))
		return
	}

	rules, err := h.recommendations.RulesForCrop(r.Context(), crop)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rules == nil {
		rules = []*domain.Rule{}
	}

	writeJSON(w, http.StatusOK, rulesResponse{Crop: crop, Rules: rules})
}
