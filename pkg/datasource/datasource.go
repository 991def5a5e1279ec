package datasource

import (
	"context"
	"fmt"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// MetricsGateway fetches one aggregated cost and utilization snapshot keyed
// by namespace. Implementations must accumulate over the whole window and
// include idle cost.
type MetricsGateway interface {
	FetchSnapshot(ctx context.Context, window string) (*models.MetricsSnapshot, error)
	Name() string
}

// AvailabilityChecker is implemented by gateways that can check their backend
// without fetching a snapshot
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

type Config struct {
	Source        string // kubecost or prometheus
	KubecostURL   string
	PrometheusURL string
}

// NewGateway creates the gateway selected by cfg.Source
func NewGateway(cfg *Config) (MetricsGateway, error) {
	switch cfg.Source {
	case "kubecost", "":
		return NewKubecostGateway(cfg.KubecostURL)
	case "prometheus":
		return NewPrometheusGateway(cfg.PrometheusURL)
	default:
		return nil, fmt.Errorf("unknown metrics source: %s", cfg.Source)
	}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// idleCost is the cost of requested but unused CPU and memory
func idleCost(cpuCost, cpuEff, ramCost, ramEff float64) float64 {
	return clampNonNegative(cpuCost*(1-cpuEff)) + clampNonNegative(ramCost*(1-ramEff))
}
