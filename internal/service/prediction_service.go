package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/classifier"
	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
)

// Predictor maps a nutrient reading to a fertilizer name.
// *classifier.Classifier satisfies it.
type Predictor interface {
	Predict(reading domain.NutrientReading) (string, error)
}

// PredictionService serves model-backed recommendations.
type PredictionService struct {
	predictor Predictor
	recorder  OutcomeRecorder
	logger    zerolog.Logger
}

// NewPredictionService creates a new PredictionService.
// A nil predictor makes every prediction fail with ErrClassifierUnavailable.
func NewPredictionService(predictor Predictor, recorder OutcomeRecorder, logger zerolog.Logger) *PredictionService {
	return &PredictionService{
		predictor: predictor,
		recorder:  recorderOrNop(recorder),
		logger:    logger.With().Str("service", "prediction").Logger(),
	}
}

// Available reports whether a model is loaded.
func (s *PredictionService) Available() bool {
	return s.predictor != nil
}

// Predict runs the classifier on reading.
func (s *PredictionService) Predict(ctx context.Context, reading domain.NutrientReading) (domain.Recommendation, error) {
	if s.predictor == nil {
		s.recorder.RecordRecommendation(string(domain.SourceModel), metrics.OutcomeError)
		return domain.Recommendation{}, ErrClassifierUnavailable
	}
	if err := ctx.Err(); err != nil {
		return domain.Recommendation{}, err
	}

	label, err := s.predictor.Predict(reading)
	if err != nil {
		s.recorder.RecordRecommendation(string(domain.SourceModel), metrics.OutcomeError)

		var inferr *classifier.InferenceError
		if errors.As(err, &inferr) {
			s.logger.Error().Err(inferr.Err).Str("stage", inferr.Stage).Msg("inference failed")
		} else {
			s.logger.Error().Err(err).Msg("inference failed")
		}
		return domain.Recommendation{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	s.recorder.RecordRecommendation(string(domain.SourceModel), metrics.OutcomeMatched)
	return domain.Recommendation{
		Fertilizer: label,
		Matched:    true,
		Source:     domain.SourceModel,
	}, nil
}
