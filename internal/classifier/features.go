package classifier

import "github.com/prn-tf/fertilizer-advisor/internal/domain"

// Feature column names as the model was trained on them.
const (
	FeatureNitrogen   = "Nitrogen"
	FeaturePotassium  = "Potassium"
	FeaturePhosphorus = "Phosphorus"
)

// FeatureColumns is the column order the model expects.
// Potassium precedes Phosphorus; the trained split indices depend on it.
var FeatureColumns = []string{FeatureNitrogen, FeaturePotassium, FeaturePhosphorus}

// BuildFeatures returns the feature row for a reading in FeatureColumns order.
func BuildFeatures(r domain.NutrientReading) []float64 {
	return []float64{r.N, r.K, r.P}
}
