package models

import (
	"strconv"
	"time"
)

// Bounds of the optimization score
const (
	MinScore = 1.0
	MaxScore = 3.0
)

// ValidateScore rejects scores outside [MinScore, MaxScore], including NaN
func ValidateScore(score float64) error {
	if !(score >= MinScore && score <= MaxScore) {
		return &ValidationError{
			Field:  "score",
			Value:  strconv.FormatFloat(score, 'f', -1, 64),
			Reason: "must be between 1.0 and 3.0",
		}
	}
	return nil
}

// Category is one axis of user preference that feeds the optimization score
type Category string

const (
	CategoryPriority       Category = "priority"
	CategoryTrafficPattern Category = "trafficPattern"
	CategoryCriticality    Category = "criticality"
	CategoryBudget         Category = "budget"
)

// Selection is the option a user picked within a Category
type Selection string

const (
	// priority
	SelectionPerformance Selection = "performance"
	SelectionBalanced    Selection = "balanced"
	SelectionCost        Selection = "cost"

	// trafficPattern
	SelectionSpiky  Selection = "spiky"
	SelectionSteady Selection = "steady"
	SelectionIdle   Selection = "idle"

	// criticality
	SelectionCritical    Selection = "critical"
	SelectionStandard    Selection = "standard"
	SelectionNonCritical Selection = "nonCritical"

	// budget
	SelectionFlexible Selection = "flexible"
	SelectionModerate Selection = "moderate"
	SelectionStrict   Selection = "strict"
)

// Preferences maps each category to the user's selection
type Preferences map[Category]Selection

// OptimizationSettings is the persisted per-workload record.
// Score is computed when preferences change and is never recomputed by the
// optimization loop.
type OptimizationSettings struct {
	Identity    WorkloadIdentity `json:"identity"`
	Preferences Preferences      `json:"preferences"`
	Score       float64          `json:"score"`
	Enabled     bool             `json:"enabled"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// EnabledWorkload pairs an identity with the settings that were re-validated
// when the enabled index was read
type EnabledWorkload struct {
	Identity WorkloadIdentity
	Settings *OptimizationSettings
}
