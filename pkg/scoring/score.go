// Package scoring turns user preferences into a single optimization score.
//
// Ratings run from 1 (favor performance) to 3 (favor cost). The score is the
// weighted mean of the ratings of every category the user answered.
package scoring

import (
	"errors"
	"math"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// ErrNoApplicableCategories is returned when no preference matched the rating table
var ErrNoApplicableCategories = errors.New("no applicable categories to score")

// Weights maps a category to its non-negative weight. Weights need not sum to 1.
type Weights map[models.Category]float64

// RatingTable maps a category to the rating of each of its options
type RatingTable map[models.Category]map[models.Selection]float64

// ComputeScore returns the weighted score of prefs rounded to one decimal.
//
// Categories missing from ratings contribute nothing. When the matched weights
// sum to exactly 1 the weighted sum is returned as is, otherwise it is divided
// by the total weight.
func ComputeScore(prefs models.Preferences, weights Weights, ratings RatingTable) (float64, error) {
	var weightedSum, totalWeight float64

	for category, selection := range prefs {
		options, ok := ratings[category]
		if !ok {
			continue
		}
		rating, ok := options[selection]
		if !ok {
			continue
		}
		weight := weights[category]
		weightedSum += rating * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0, ErrNoApplicableCategories
	}

	score := weightedSum
	if totalWeight != 1.0 {
		score = weightedSum / totalWeight
	}

	return roundToTenth(score), nil
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
