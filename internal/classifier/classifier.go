package classifier

import (
	"math"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
)

// Classifier predicts a fertilizer name from a nutrient reading.
// It is immutable once built and safe for concurrent use.
type Classifier struct {
	model   Model
	decoder Decoder
}

// New creates a classifier from a model and the decoder for its classes.
func New(model Model, decoder Decoder) *Classifier {
	return &Classifier{model: model, decoder: decoder}
}

// Predict returns the decoded fertilizer label for a reading.
// Every failure is an *InferenceError.
func (c *Classifier) Predict(reading domain.NutrientReading) (string, error) {
	features := BuildFeatures(reading)
	for _, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", &InferenceError{Stage: "features", Err: ErrFeatureMismatch}
		}
	}

	class, err := c.model.Predict(features)
	if err != nil {
		return "", &InferenceError{Stage: "predict", Err: err}
	}

	label, err := c.decoder.Decode(class)
	if err != nil {
		return "", &InferenceError{Stage: "decode", Err: err}
	}
	return label, nil
}
