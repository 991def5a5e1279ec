package models

import "time"

// RecommendationType represents the type of recommendation
type RecommendationType string

const (
	RecommendationScaleUp   RecommendationType = "SCALE_UP"
	RecommendationScaleDown RecommendationType = "SCALE_DOWN"
	RecommendationNoAction  RecommendationType = "NO_ACTION"
)

// Recommendation is what a strategy decided for one workload during one pass
type Recommendation struct {
	ID       string             `json:"id"`
	PassID   string             `json:"passId"`
	Type     RecommendationType `json:"type"`
	Strategy string             `json:"strategy"`
	Workload WorkloadIdentity   `json:"workload"`

	CurrentReplicas     int32 `json:"currentReplicas"`
	RecommendedReplicas int32 `json:"recommendedReplicas"`

	// Analysis
	Score         float64   `json:"score"`
	Utilization   float64   `json:"utilization"`
	Reason        string    `json:"reason"`
	SavingsHourly float64   `json:"savingsHourly"`
	Risk          RiskLevel `json:"risk"`

	// Generated command
	Command string `json:"command,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// RiskLevel represents the risk of applying a recommendation
type RiskLevel string

const (
	RiskNone   RiskLevel = "NONE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)
