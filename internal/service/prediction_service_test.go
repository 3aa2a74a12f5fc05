package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/fertilizer-advisor/internal/classifier"
	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
)

func TestPredictionService_Predict(t *testing.T) {
	reading := domain.NutrientReading{N: 30, P: 10, K: 3}

	predictor := new(MockPredictor)
	predictor.On("Predict", reading).Return("Urea", nil).Once()

	recorder := newRecordingRecorder()
	svc := NewPredictionService(predictor, recorder, zerolog.Nop())
	require.True(t, svc.Available())

	rec, err := svc.Predict(context.Background(), reading)
	require.NoError(t, err)
	require.Equal(t, domain.Recommendation{Fertilizer: "Urea", Matched: true, Source: domain.SourceModel}, rec)
	require.Equal(t, 1, recorder.recommendations["model/"+metrics.OutcomeMatched])
	predictor.AssertExpectations(t)
}

func TestPredictionService_InferenceError(t *testing.T) {
	reading := domain.NutrientReading{N: 1, P: 2, K: 3}
	cause := &classifier.InferenceError{Stage: "decode", Err: classifier.ErrDecoderMismatch}

	predictor := new(MockPredictor)
	predictor.On("Predict", reading).Return("", cause).Once()

	svc := NewPredictionService(predictor, nil, zerolog.Nop())

	_, err := svc.Predict(context.Background(), reading)
	require.ErrorIs(t, err, ErrInference)
	require.Contains(t, err.Error(), "decode")
	predictor.AssertExpectations(t)
}

func TestPredictionService_Unavailable(t *testing.T) {
	recorder := newRecordingRecorder()
	svc := NewPredictionService(nil, recorder, zerolog.Nop())
	require.False(t, svc.Available())

	_, err := svc.Predict(context.Background(), domain.NutrientReading{})
	require.True(t, errors.Is(err, ErrClassifierUnavailable))
	require.Equal(t, 1, recorder.recommendations["model/"+metrics.OutcomeError])
}
