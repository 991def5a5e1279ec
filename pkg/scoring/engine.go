package scoring

import (
	"sort"
	"strings"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// ValidationError is returned for unknown categories and selections
type ValidationError = models.ValidationError

// DefaultWeights sum to 1
func DefaultWeights() Weights {
	return Weights{
		models.CategoryPriority:       0.4,
		models.CategoryTrafficPattern: 0.2,
		models.CategoryCriticality:    0.25,
		models.CategoryBudget:         0.15,
	}
}

// DefaultRatings rates every option from 1 (performance) to 3 (cost)
func DefaultRatings() RatingTable {
	return RatingTable{
		models.CategoryPriority: {
			models.SelectionPerformance: 1,
			models.SelectionBalanced:    2,
			models.SelectionCost:        3,
		},
		models.CategoryTrafficPattern: {
			models.SelectionSpiky:  1,
			models.SelectionSteady: 2,
			models.SelectionIdle:   3,
		},
		models.CategoryCriticality: {
			models.SelectionCritical:    1,
			models.SelectionStandard:    2,
			models.SelectionNonCritical: 3,
		},
		models.CategoryBudget: {
			models.SelectionFlexible: 1,
			models.SelectionModerate: 2,
			models.SelectionStrict:   3,
		},
	}
}

// Engine validates preferences against a closed rating table and scores them
type Engine struct {
	weights Weights
	ratings RatingTable
}

// NewEngine creates an engine with the default weights and ratings
func NewEngine() *Engine {
	return NewEngineWith(DefaultWeights(), DefaultRatings())
}

// NewEngineWith creates an engine with custom tables
func NewEngineWith(weights Weights, ratings RatingTable) *Engine {
	return &Engine{weights: weights, ratings: ratings}
}

// Validate rejects categories and selections the rating table does not know
func (e *Engine) Validate(prefs models.Preferences) error {
	if len(prefs) == 0 {
		return &ValidationError{Field: "preferences", Value: "", Reason: "at least one category is required"}
	}
	for category, selection := range prefs {
		options, ok := e.ratings[category]
		if !ok {
			return &ValidationError{
				Field:  "category",
				Value:  string(category),
				Reason: "expected one of " + strings.Join(e.Categories(), ", "),
			}
		}
		if _, ok := options[selection]; !ok {
			return &ValidationError{
				Field:  string(category),
				Value:  string(selection),
				Reason: "expected one of " + strings.Join(e.Options(category), ", "),
			}
		}
	}
	return nil
}

// Score validates prefs and computes their score
func (e *Engine) Score(prefs models.Preferences) (float64, error) {
	if err := e.Validate(prefs); err != nil {
		return 0, err
	}
	return ComputeScore(prefs, e.weights, e.ratings)
}

// Categories lists known categories in sorted order
func (e *Engine) Categories() []string {
	out := make([]string, 0, len(e.ratings))
	for c := range e.ratings {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Options lists the selections of a category in sorted order
func (e *Engine) Options(category models.Category) []string {
	options := e.ratings[category]
	out := make([]string, 0, len(options))
	for s := range options {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// ParsePreferences parses "category=selection" pairs as given on the command line
func ParsePreferences(pairs []string) (models.Preferences, error) {
	prefs := make(models.Preferences, len(pairs))
	for _, pair := range pairs {
		category, selection, ok := strings.Cut(pair, "=")
		category, selection = strings.TrimSpace(category), strings.TrimSpace(selection)
		if !ok || category == "" || selection == "" {
			return nil, &ValidationError{Field: "preference", Value: pair, Reason: "expected category=selection"}
		}
		prefs[models.Category(category)] = models.Selection(selection)
	}
	return prefs, nil
}
