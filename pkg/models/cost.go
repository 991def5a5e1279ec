package models

import "time"

// AllocationMetrics is the accumulated cost and utilization of one namespace
// over a snapshot window. Costs are in the currency reported by the source.
type AllocationMetrics struct {
	Name          string  `json:"name"`
	CPUCost       float64 `json:"cpuCost"`
	RAMCost       float64 `json:"ramCost"`
	TotalCost     float64 `json:"totalCost"`
	IdleCost      float64 `json:"idleCost"`
	CPUEfficiency float64 `json:"cpuEfficiency"`
	RAMEfficiency float64 `json:"ramEfficiency"`
	Utilization   float64 `json:"utilization"` // 0-1
	Window        string  `json:"window"`
}

// IdleRatio is the share of TotalCost spent on unused requests
func (m *AllocationMetrics) IdleRatio() float64 {
	if m.TotalCost <= 0 {
		return 0
	}
	return m.IdleCost / m.TotalCost
}

// MetricsSnapshot is fetched once per pass and is read-only afterwards
type MetricsSnapshot struct {
	Window      string
	FetchedAt   time.Time
	Namespaces  map[string]AllocationMetrics
	ClusterIdle *AllocationMetrics
}

// Lookup returns the allocation for a namespace
func (s *MetricsSnapshot) Lookup(namespace string) (AllocationMetrics, bool) {
	if s == nil || s.Namespaces == nil {
		return AllocationMetrics{}, false
	}
	m, ok := s.Namespaces[namespace]
	return m, ok
}
