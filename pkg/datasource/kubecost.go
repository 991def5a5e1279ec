package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"

	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

const (
	allocationEndpoint = "/model/allocation"
	healthEndpoint     = "/healthz"
	idleAllocationName = "__idle__"
	unallocatedName    = "__unallocated__"
)

// KubecostGateway reads namespace allocations from the Kubecost allocation API
type KubecostGateway struct {
	client api.Client
}

// NewKubecostGateway creates a gateway for the Kubecost cost-analyzer at url
func NewKubecostGateway(url string) (*KubecostGateway, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubecost client: %w", err)
	}

	return &KubecostGateway{
		client: client,
	}, nil
}

type allocationResponse struct {
	Code    int                             `json:"code"`
	Message string                          `json:"message,omitempty"`
	Data    []map[string]kubecostAllocation `json:"data"`
}

type kubecostAllocation struct {
	Name            string  `json:"name"`
	CPUCost         float64 `json:"cpuCost"`
	GPUCost         float64 `json:"gpuCost"`
	RAMCost         float64 `json:"ramCost"`
	PVCost          float64 `json:"pvCost"`
	NetworkCost     float64 `json:"networkCost"`
	TotalCost       float64 `json:"totalCost"`
	CPUEfficiency   float64 `json:"cpuEfficiency"`
	RAMEfficiency   float64 `json:"ramEfficiency"`
	TotalEfficiency float64 `json:"totalEfficiency"`
}

// FetchSnapshot requests the allocation for window aggregated by namespace,
// accumulated into a single set and with idle cost included
func (k *KubecostGateway) FetchSnapshot(ctx context.Context, window string) (*models.MetricsSnapshot, error) {
	u := k.client.URL(allocationEndpoint, nil)
	q := u.Query()
	q.Set("window", window)
	q.Set("aggregate", "namespace")
	q.Set("accumulate", "true")
	q.Set("idle", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build allocation request: %w", err)
	}

	resp, body, err := k.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("allocation request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("allocation request returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed allocationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode allocation response: %w", err)
	}
	if parsed.Code != 0 && parsed.Code != http.StatusOK {
		return nil, fmt.Errorf("allocation API returned code %d: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("allocation API returned no data for window %s", window)
	}
	if len(parsed.Data) > 1 {
		logging.Log.Warnw("allocation response was not accumulated, merging sets", "sets", len(parsed.Data))
	}

	return buildSnapshot(window, mergeSets(parsed.Data)), nil
}

// IsAvailable checks if the cost-analyzer answers its health endpoint
func (k *KubecostGateway) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.client.URL(healthEndpoint, nil).String(), nil)
	if err != nil {
		return false
	}
	resp, _, err := k.client.Do(ctx, req)
	return err == nil && resp.StatusCode == http.StatusOK
}

// mergeSets folds several allocation sets into one, weighting efficiencies by cost
func mergeSets(sets []map[string]kubecostAllocation) map[string]kubecostAllocation {
	if len(sets) == 1 {
		return sets[0]
	}
	merged := make(map[string]kubecostAllocation)
	for _, set := range sets {
		for name, a := range set {
			m := merged[name]
			m.Name = name
			m.CPUEfficiency = weighted(m.CPUEfficiency, m.CPUCost, a.CPUEfficiency, a.CPUCost)
			m.RAMEfficiency = weighted(m.RAMEfficiency, m.RAMCost, a.RAMEfficiency, a.RAMCost)
			m.TotalEfficiency = weighted(m.TotalEfficiency, m.TotalCost, a.TotalEfficiency, a.TotalCost)
			m.CPUCost += a.CPUCost
			m.GPUCost += a.GPUCost
			m.RAMCost += a.RAMCost
			m.PVCost += a.PVCost
			m.NetworkCost += a.NetworkCost
			m.TotalCost += a.TotalCost
			merged[name] = m
		}
	}
	return merged
}

func weighted(v1, w1, v2, w2 float64) float64 {
	if w1+w2 == 0 {
		return (v1 + v2) / 2
	}
	return (v1*w1 + v2*w2) / (w1 + w2)
}

func buildSnapshot(window string, set map[string]kubecostAllocation) *models.MetricsSnapshot {
	snapshot := &models.MetricsSnapshot{
		Window:     window,
		FetchedAt:  time.Now(),
		Namespaces: make(map[string]models.AllocationMetrics, len(set)),
	}

	for key, a := range set {
		name := a.Name
		if name == "" {
			name = key
		}
		metrics := models.AllocationMetrics{
			Name:          name,
			CPUCost:       a.CPUCost,
			RAMCost:       a.RAMCost,
			TotalCost:     a.TotalCost,
			CPUEfficiency: a.CPUEfficiency,
			RAMEfficiency: a.RAMEfficiency,
			Utilization:   clampNonNegative(a.TotalEfficiency),
			Window:        window,
		}

		switch key {
		case idleAllocationName:
			// the idle entry is entirely unused capacity
			metrics.IdleCost = a.TotalCost
			snapshot.ClusterIdle = &metrics
			continue
		case unallocatedName:
			continue
		}

		metrics.IdleCost = idleCost(a.CPUCost, a.CPUEfficiency, a.RAMCost, a.RAMEfficiency)
		snapshot.Namespaces[key] = metrics
	}

	return snapshot
}

// Name returns the gateway name
func (k *KubecostGateway) Name() string {
	return "Kubecost"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
