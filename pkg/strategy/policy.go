package strategy

import "github.com/opscart/k8s-workload-optimizer/pkg/models"

// Policy holds the replica thresholds a band applies
type Policy struct {
	ScaleUpAbove      float64 // utilization that triggers scale up
	ScaleDownBelow    float64 // utilization that triggers scale down, 0 disables
	IdleRatioLimit    float64 // idle share of cost that triggers scale down, 0 disables
	TargetUtilization float64 // utilization the new replica count aims for
	MinReplicas       int32
	MaxStep           float64 // largest multiplicative change in one pass
	ScaleDownRisk     models.RiskLevel
	Description       string
}

// GetPolicy returns the policy for a band
func GetPolicy(band Band) Policy {
	policies := map[Band]Policy{
		Performance: {
			ScaleUpAbove:      0.6,
			ScaleDownBelow:    0, // never trade headroom for cost
			TargetUtilization: 0.5,
			MinReplicas:       2,
			MaxStep:           2.0,
			ScaleDownRisk:     models.RiskHigh,
			Description:       "Keep headroom, scale up early, never scale down",
		},
		Balanced: {
			ScaleUpAbove:      0.8,
			ScaleDownBelow:    0.3,
			TargetUtilization: 0.6,
			MinReplicas:       1,
			MaxStep:           2.0,
			ScaleDownRisk:     models.RiskLow,
			Description:       "Track moderate utilization in both directions",
		},
		CostEfficient: {
			ScaleUpAbove:      0.95,
			ScaleDownBelow:    0.6,
			IdleRatioLimit:    0.5,
			TargetUtilization: 0.8,
			MinReplicas:       1,
			MaxStep:           2.0,
			ScaleDownRisk:     models.RiskMedium,
			Description:       "Run hot and trim idle capacity",
		},
	}

	if p, ok := policies[band]; ok {
		return p
	}

	// Unknown bands get a policy that never acts
	return Policy{
		ScaleUpAbove:      2.0,
		TargetUtilization: 1.0,
		MinReplicas:       1,
		MaxStep:           1.0,
		ScaleDownRisk:     models.RiskHigh,
		Description:       "No action",
	}
}
