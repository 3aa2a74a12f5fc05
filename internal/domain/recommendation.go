package domain

import (
	"math"
	"strings"
)

// NoRecommendationMessage is returned in place of a fertilizer name when no rule matches.
const NoRecommendationMessage = "No recommendation found"

// RecommendationSource identifies what produced a recommendation.
type RecommendationSource string

const (
	// SourceRules marks a result produced by the threshold rule table.
	SourceRules RecommendationSource = "rules"

	// SourceModel marks a result produced by the trained classifier.
	SourceModel RecommendationSource = "model"
)

// NutrientReading holds soil nutrient levels for nitrogen, phosphorus and potassium.
type NutrientReading struct {
	N float64 `json:"N"`
	P float64 `json:"P"`
	K float64 `json:"K"`
}

// Validate rejects negative or non-finite readings.
func (r NutrientReading) Validate() error {
	for _, v := range []float64{r.N, r.P, r.K} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidReading
		}
	}
	return nil
}

// Rule maps a crop and minimum nutrient thresholds to a fertilizer.
// Thresholds are inclusive lower bounds.
type Rule struct {
	ID         int64  `json:"id"`
	Crop       string `json:"crop"`
	N          int    `json:"n"`
	P          int    `json:"p"`
	K          int    `json:"k"`
	Fertilizer string `json:"fertilizer"`
}

// Validate checks that the rule can take part in lookups.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Crop) == "" {
		return NewDomainError(ErrInvalidRule, "crop is required", "")
	}
	if strings.TrimSpace(r.Fertilizer) == "" {
		return NewDomainError(ErrInvalidRule, "fertilizer is required", r.Crop)
	}
	if r.N < 0 || r.P < 0 || r.K < 0 {
		return NewDomainError(ErrInvalidRule, "thresholds must not be negative", r.Crop)
	}
	return nil
}

// Matches reports whether the rule applies to crop and every reading meets its threshold.
// Crop names compare case-insensitively after trimming surrounding space.
func (r Rule) Matches(crop string, reading NutrientReading) bool {
	if !strings.EqualFold(strings.TrimSpace(r.Crop), strings.TrimSpace(crop)) {
		return false
	}
	return reading.N >= float64(r.N) &&
		reading.P >= float64(r.P) &&
		reading.K >= float64(r.K)
}

// Recommendation is the outcome of a recommendation request.
// A negative outcome is a valid result, not an error.
type Recommendation struct {
	Fertilizer string               `json:"fertilizer"`
	Matched    bool                 `json:"matched"`
	Source     RecommendationSource `json:"source"`
	RuleID     int64                `json:"rule_id,omitempty"`
}

// NoRecommendation returns the negative result for source.
func NoRecommendation(source RecommendationSource) Recommendation {
	return Recommendation{
		Fertilizer: NoRecommendationMessage,
		Matched:    false,
		Source:     source,
	}
}

// RecommendationFromRule returns the positive result for a matched rule.
func RecommendationFromRule(rule Rule) Recommendation {
	return Recommendation{
		Fertilizer: rule.Fertilizer,
		Matched:    true,
		Source:     SourceRules,
		RuleID:     rule.ID,
	}
}

// DefaultRules returns the rule set seeded into an empty table.
// Within a crop, stricter rules come first so the lowest id wins.
func DefaultRules() []Rule {
	return []Rule{
		{Crop: "Wheat", N: 41, P: 0, K: 0, Fertilizer: "Urea"},
		{Crop: "Wheat", N: 13, P: 0, K: 0, Fertilizer: "DAP"},
		{Crop: "Wheat", N: 0, P: 20, K: 20, Fertilizer: "14-35-14"},
		{Crop: "Rice", N: 37, P: 0, K: 0, Fertilizer: "Urea"},
		{Crop: "Rice", N: 12, P: 36, K: 0, Fertilizer: "DAP"},
		{Crop: "Rice", N: 0, P: 14, K: 14, Fertilizer: "17-17-17"},
		{Crop: "Maize", N: 36, P: 0, K: 0, Fertilizer: "Urea"},
		{Crop: "Maize", N: 9, P: 30, K: 0, Fertilizer: "DAP"},
		{Crop: "Maize", N: 0, P: 10, K: 10, Fertilizer: "20-20"},
		{Crop: "Cotton", N: 38, P: 0, K: 0, Fertilizer: "Urea"},
		{Crop: "Cotton", N: 22, P: 21, K: 0, Fertilizer: "28-28"},
		{Crop: "Cotton", N: 0, P: 0, K: 13, Fertilizer: "10-26-26"},
		{Crop: "Sugarcane", N: 35, P: 0, K: 0, Fertilizer: "Urea"},
		{Crop: "Sugarcane", N: 13, P: 20, K: 0, Fertilizer: "DAP"},
		{Crop: "Sugarcane", N: 0, P: 0, K: 18, Fertilizer: "10-26-26"},
		{Crop: "Potato", N: 15, P: 0, K: 19, Fertilizer: "17-17-17"},
		{Crop: "Potato", N: 0, P: 18, K: 0, Fertilizer: "DAP"},
	}
}
