package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArtifact indicates the model artifact is malformed or inconsistent.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrFeatureMismatch indicates the feature vector does not fit the model.
	ErrFeatureMismatch = errors.New("feature vector does not match model")

	// ErrDecoderMismatch indicates the model produced a class the decoder does not know.
	ErrDecoderMismatch = errors.New("class index outside label decoder range")

	// ErrUnsupportedSource indicates the artifact location scheme is not supported.
	ErrUnsupportedSource = errors.New("unsupported artifact source")
)

// InferenceError reports a failed prediction. It never carries a fallback result.
type InferenceError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed during %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *InferenceError) Unwrap() error {
	return e.Err
}
