package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
)

// ErrNoStrategy is returned when no strategy is registered for a band
var ErrNoStrategy = errors.New("no strategy registered for band")

// Strategy optimizes one workload. Implementations must be safe to call
// concurrently for different workloads.
type Strategy interface {
	Name() string
	Optimize(ctx context.Context, namespace, deployment string, settings *models.OptimizationSettings, metrics models.AllocationMetrics) error
}

// Registry maps each band to the strategy that handles it
type Registry struct {
	strategies map[Band]Strategy
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Band]Strategy)}
}

// Register sets the strategy for band
func (r *Registry) Register(band Band, s Strategy) *Registry {
	r.strategies[band] = s
	return r
}

// Lookup returns the strategy for band
func (r *Registry) Lookup(band Band) (Strategy, bool) {
	s, ok := r.strategies[band]
	return s, ok
}

// Dispatch hands the workload to the strategy registered for band
func (r *Registry) Dispatch(ctx context.Context, band Band, id models.WorkloadIdentity, settings *models.OptimizationSettings, metrics models.AllocationMetrics) error {
	s, ok := r.Lookup(band)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStrategy, band)
	}
	return s.Optimize(ctx, id.Namespace, id.Deployment, settings, metrics)
}

type passIDKey struct{}

// WithPassID tags ctx with the optimization pass it belongs to
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey{}, passID)
}

// PassIDFrom returns the pass ID stored by WithPassID
func PassIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey{}).(string)
	return id
}
