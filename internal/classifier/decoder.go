package classifier

import "fmt"

// Decoder maps a class index back to its label.
type Decoder interface {
	Decode(class int) (string, error)
}

// LabelDecoder decodes class indices by position, the inverse of the label
// encoding applied before training.
type LabelDecoder struct {
	labels []string
}

// NewLabelDecoder creates a decoder over labels in encoded order.
func NewLabelDecoder(labels []string) (*LabelDecoder, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: decoder has no labels", ErrInvalidArtifact)
	}
	seen := make(map[string]struct{}, len(labels))
	for i, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("%w: decoder label %d is empty", ErrInvalidArtifact, i)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: decoder label %q repeats", ErrInvalidArtifact, label)
		}
		seen[label] = struct{}{}
	}
	return &LabelDecoder{labels: append([]string(nil), labels...)}, nil
}

// Decode returns the label for class.
func (d *LabelDecoder) Decode(class int) (string, error) {
	if class < 0 || class >= len(d.labels) {
		return "", fmt.Errorf("%w: class %d, %d labels", ErrDecoderMismatch, class, len(d.labels))
	}
	return d.labels[class], nil
}

// Ensure LabelDecoder implements Decoder
var _ Decoder = (*LabelDecoder)(nil)
