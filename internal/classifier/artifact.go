package classifier

import (
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
)

// ArtifactFormat identifies the supported artifact layout.
const ArtifactFormat = "random_forest/v1"

// Artifact is the serialized model: the fitted trees, the class ids the
// trees vote for and the label decoder that turns a class id into a name.
type Artifact struct {
	Format       string   `json:"format"`
	FeatureNames []string `json:"feature_names"`
	Classes      []int    `json:"classes"`
	LabelClasses []string `json:"label_classes"`
	Trees        []Tree   `json:"trees"`
}

// Build validates the artifact and assembles a Classifier from it.
func (a *Artifact) Build() (*Classifier, error) {
	if a.Format != ArtifactFormat {
		return nil, fmt.Errorf("%w: format %q, want %q", ErrInvalidArtifact, a.Format, ArtifactFormat)
	}
	if !slices.Equal(a.FeatureNames, FeatureColumns) {
		return nil, fmt.Errorf("%w: feature names %v, want %v", ErrInvalidArtifact, a.FeatureNames, FeatureColumns)
	}

	decoder, err := NewLabelDecoder(a.LabelClasses)
	if err != nil {
		return nil, err
	}
	for _, class := range a.Classes {
		if _, err := decoder.Decode(class); err != nil {
			return nil, fmt.Errorf("%w: model class %d has no label", ErrInvalidArtifact, class)
		}
	}

	forest, err := NewForest(a.Trees, a.Classes, len(a.FeatureNames))
	if err != nil {
		return nil, err
	}

	return New(forest, decoder), nil
}

// LoadOptions controls artifact loading.
type LoadOptions struct {
	// SHA256 is the expected hex digest of the raw artifact; empty skips the check.
	SHA256 string
}

// Load reads an artifact from src, verifies it and builds a Classifier.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Classifier, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model artifact from %s: %w", src, err)
	}

	if err := crypto.VerifySHA256(data, opts.SHA256); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	return Parse(data)
}

// Parse decodes and builds a Classifier from raw artifact JSON.
func Parse(data []byte) (*Classifier, error) {
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return artifact.Build()
}
