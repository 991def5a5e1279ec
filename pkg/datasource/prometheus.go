package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// OpenCost exporter queries, all aggregated by namespace over the window
const (
	cpuCostQuery = `sum by (namespace) (avg_over_time(container_cpu_allocation{namespace!=""}[%[1]s]) * on (node) group_left() avg_over_time(node_cpu_hourly_cost[%[1]s])) * %[2]f`
	ramCostQuery = `sum by (namespace) (avg_over_time(container_memory_allocation_bytes{namespace!=""}[%[1]s]) / 1073741824 * on (node) group_left() avg_over_time(node_ram_hourly_cost[%[1]s])) * %[2]f`
	cpuUsedQuery = `sum by (namespace) (rate(container_cpu_usage_seconds_total{container!="",namespace!=""}[%[1]s]))`
	cpuReqQuery  = `sum by (namespace) (avg_over_time(container_cpu_allocation{namespace!=""}[%[1]s]))`
	ramUsedQuery = `sum by (namespace) (avg_over_time(container_memory_working_set_bytes{container!="",namespace!=""}[%[1]s]))`
	ramReqQuery  = `sum by (namespace) (avg_over_time(container_memory_allocation_bytes{namespace!=""}[%[1]s]))`
)

// PrometheusGateway builds the snapshot from OpenCost metrics in Prometheus
type PrometheusGateway struct {
	client v1.API
}

// NewPrometheusGateway creates a gateway backed by the Prometheus at url
func NewPrometheusGateway(url string) (*PrometheusGateway, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusGateway{
		client: v1.NewAPI(client),
	}, nil
}

// FetchSnapshot evaluates the cost and efficiency queries once each
func (p *PrometheusGateway) FetchSnapshot(ctx context.Context, window string) (*models.MetricsSnapshot, error) {
	d, err := model.ParseDuration(window)
	if err != nil {
		return nil, fmt.Errorf("invalid window %q: %w", window, err)
	}
	hours := time.Duration(d).Hours()
	now := time.Now()

	cpuCost, err := p.queryByNamespace(ctx, fmt.Sprintf(cpuCostQuery, window, hours), now)
	if err != nil {
		return nil, fmt.Errorf("CPU cost query failed: %w", err)
	}
	ramCost, err := p.queryByNamespace(ctx, fmt.Sprintf(ramCostQuery, window, hours), now)
	if err != nil {
		return nil, fmt.Errorf("memory cost query failed: %w", err)
	}
	cpuUsed, err := p.queryByNamespace(ctx, fmt.Sprintf(cpuUsedQuery, window), now)
	if err != nil {
		return nil, fmt.Errorf("CPU usage query failed: %w", err)
	}
	cpuReq, err := p.queryByNamespace(ctx, fmt.Sprintf(cpuReqQuery, window), now)
	if err != nil {
		return nil, fmt.Errorf("CPU allocation query failed: %w", err)
	}
	ramUsed, err := p.queryByNamespace(ctx, fmt.Sprintf(ramUsedQuery, window), now)
	if err != nil {
		return nil, fmt.Errorf("memory usage query failed: %w", err)
	}
	ramReq, err := p.queryByNamespace(ctx, fmt.Sprintf(ramReqQuery, window), now)
	if err != nil {
		return nil, fmt.Errorf("memory allocation query failed: %w", err)
	}

	snapshot := &models.MetricsSnapshot{
		Window:     window,
		FetchedAt:  now,
		Namespaces: make(map[string]models.AllocationMetrics),
	}

	namespaces := make(map[string]struct{})
	for _, m := range []map[string]float64{cpuCost, ramCost} {
		for ns := range m {
			namespaces[ns] = struct{}{}
		}
	}

	for ns := range namespaces {
		cpuEff := ratio(cpuUsed[ns], cpuReq[ns])
		ramEff := ratio(ramUsed[ns], ramReq[ns])
		total := cpuCost[ns] + ramCost[ns]

		snapshot.Namespaces[ns] = models.AllocationMetrics{
			Name:          ns,
			CPUCost:       cpuCost[ns],
			RAMCost:       ramCost[ns],
			TotalCost:     total,
			IdleCost:      idleCost(cpuCost[ns], cpuEff, ramCost[ns], ramEff),
			CPUEfficiency: cpuEff,
			RAMEfficiency: ramEff,
			Utilization:   weighted(cpuEff, cpuCost[ns], ramEff, ramCost[ns]),
			Window:        window,
		}
	}

	return snapshot, nil
}

func (p *PrometheusGateway) queryByNamespace(ctx context.Context, query string, ts time.Time) (map[string]float64, error) {
	result, warnings, err := p.client.Query(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		logging.Log.Warnw("Prometheus returned warnings", "warnings", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for query: %s", result, query)
	}

	out := make(map[string]float64, len(vector))
	for _, sample := range vector {
		ns := string(sample.Metric["namespace"])
		if ns == "" {
			continue
		}
		out[ns] += float64(sample.Value)
	}
	return out, nil
}

func ratio(used, requested float64) float64 {
	if requested <= 0 {
		return 0
	}
	return used / requested
}

// IsAvailable checks if Prometheus is reachable
func (p *PrometheusGateway) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

// Name returns the gateway name
func (p *PrometheusGateway) Name() string {
	return "Prometheus"
}
