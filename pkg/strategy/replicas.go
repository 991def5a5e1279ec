package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/common/model"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/models"
	"github.com/opscart/k8s-workload-optimizer/pkg/storage"
)

// ReplicaStrategy reads a deployment, decides a replica count from the
// namespace's utilization and records the decision. It never changes the
// cluster; the recommendation carries the kubectl command to apply it.
type ReplicaStrategy struct {
	name   string
	band   Band
	policy Policy
	client kubernetes.Interface
	recs   storage.RecommendationStore
	clock  clock.PassiveClock
}

// NewReplicaStrategy creates a strategy for band using its default policy
func NewReplicaStrategy(band Band, client kubernetes.Interface, recs storage.RecommendationStore) *ReplicaStrategy {
	return &ReplicaStrategy{
		name:   band.String(),
		band:   band,
		policy: GetPolicy(band),
		client: client,
		recs:   recs,
		clock:  clock.RealClock{},
	}
}

// NewPerformance keeps headroom and never scales down
func NewPerformance(client kubernetes.Interface, recs storage.RecommendationStore) *ReplicaStrategy {
	return NewReplicaStrategy(Performance, client, recs)
}

// NewBalanced scales in both directions around moderate utilization
func NewBalanced(client kubernetes.Interface, recs storage.RecommendationStore) *ReplicaStrategy {
	return NewReplicaStrategy(Balanced, client, recs)
}

// NewCostEfficient runs hot and trims idle capacity
func NewCostEfficient(client kubernetes.Interface, recs storage.RecommendationStore) *ReplicaStrategy {
	return NewReplicaStrategy(CostEfficient, client, recs)
}

// DefaultRegistry registers the three replica strategies
func DefaultRegistry(client kubernetes.Interface, recs storage.RecommendationStore) *Registry {
	return NewRegistry().
		Register(Performance, NewPerformance(client, recs)).
		Register(Balanced, NewBalanced(client, recs)).
		Register(CostEfficient, NewCostEfficient(client, recs))
}

// WithClock replaces the clock used to stamp recommendations
func (s *ReplicaStrategy) WithClock(c clock.PassiveClock) *ReplicaStrategy {
	s.clock = c
	return s
}

func (s *ReplicaStrategy) Name() string {
	return s.name
}

// Optimize implements Strategy
func (s *ReplicaStrategy) Optimize(ctx context.Context, namespace, deployment string, settings *models.OptimizationSettings, metrics models.AllocationMetrics) error {
	d, err := s.client.AppsV1().Deployments(namespace).Get(ctx, deployment, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("deployment %s/%s not found: %w", namespace, deployment, err)
	}
	if err != nil {
		return fmt.Errorf("failed to get deployment %s/%s: %w", namespace, deployment, err)
	}

	current := ptr.Deref(d.Spec.Replicas, 1)
	decision := Plan(s.policy, current, metrics)

	rec := &models.Recommendation{
		PassID:              PassIDFrom(ctx),
		Type:                decision.Type,
		Strategy:            s.name,
		Workload:            models.NewWorkloadIdentity(namespace, deployment),
		CurrentReplicas:     current,
		RecommendedReplicas: decision.Replicas,
		Utilization:         metrics.Utilization,
		Reason:              decision.Reason,
		SavingsHourly:       estimateSavings(metrics, current, decision.Replicas),
		Risk:                s.risk(decision.Type),
		CreatedAt:           s.clock.Now().UTC(),
	}
	if settings != nil {
		rec.Score = settings.Score
	}
	if decision.Type != models.RecommendationNoAction {
		rec.Command = fmt.Sprintf("kubectl scale deployment %s -n %s --replicas=%d", deployment, namespace, decision.Replicas)
	}

	if err := s.recs.SaveRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("failed to save recommendation for %s/%s: %w", namespace, deployment, err)
	}

	logging.Log.Infow("strategy decided",
		"strategy", s.name,
		"workload", rec.Workload.String(),
		"type", rec.Type,
		"current", current,
		"recommended", decision.Replicas,
		"utilization", metrics.Utilization,
	)
	return nil
}

func (s *ReplicaStrategy) risk(t models.RecommendationType) models.RiskLevel {
	switch t {
	case models.RecommendationScaleDown:
		return s.policy.ScaleDownRisk
	case models.RecommendationScaleUp:
		return models.RiskLow
	default:
		return models.RiskNone
	}
}

// Decision is the outcome of Plan
type Decision struct {
	Type     models.RecommendationType
	Replicas int32
	Reason   string
}

// Plan decides a replica count for a deployment currently running current
// replicas in a namespace with the given metrics
func Plan(policy Policy, current int32, metrics models.AllocationMetrics) Decision {
	noAction := func(reason string) Decision {
		return Decision{Type: models.RecommendationNoAction, Replicas: current, Reason: reason}
	}

	if current == 0 {
		return noAction("Deployment is scaled to zero")
	}
	if current < policy.MinReplicas {
		return Decision{
			Type:     models.RecommendationScaleUp,
			Replicas: policy.MinReplicas,
			Reason:   fmt.Sprintf("Below the %d replica minimum for this strategy", policy.MinReplicas),
		}
	}

	util := metrics.Utilization
	proportional := int32(math.Ceil(float64(current) * util / policy.TargetUtilization))

	if util > policy.ScaleUpAbove {
		upper := int32(math.Ceil(float64(current) * policy.MaxStep))
		target := proportional
		if target <= current {
			target = current + 1
		}
		if target > upper {
			target = upper
		}
		if target <= current {
			return noAction("Utilization is high but the step limit prevents scaling")
		}
		return Decision{
			Type:     models.RecommendationScaleUp,
			Replicas: target,
			Reason:   fmt.Sprintf("Utilization %.0f%% above %.0f%% threshold", util*100, policy.ScaleUpAbove*100),
		}
	}

	lowUtil := policy.ScaleDownBelow > 0 && util < policy.ScaleDownBelow
	idle := policy.IdleRatioLimit > 0 && metrics.IdleRatio() > policy.IdleRatioLimit
	if lowUtil || idle {
		lower := int32(math.Ceil(float64(current) / policy.MaxStep))
		if lower < policy.MinReplicas {
			lower = policy.MinReplicas
		}
		target := proportional
		if target < lower {
			target = lower
		}
		if target >= current {
			return noAction("Already at the smallest safe replica count")
		}
		reason := fmt.Sprintf("Utilization %.0f%% below %.0f%% threshold", util*100, policy.ScaleDownBelow*100)
		if !lowUtil {
			reason = fmt.Sprintf("Idle cost is %.0f%% of namespace spend", metrics.IdleRatio()*100)
		}
		return Decision{Type: models.RecommendationScaleDown, Replicas: target, Reason: reason}
	}

	return noAction("Resource allocation is appropriate")
}

// estimateSavings is an upper bound that assumes the deployment accounts for
// the whole namespace cost. Scaling up yields a negative value.
func estimateSavings(metrics models.AllocationMetrics, current, recommended int32) float64 {
	if current <= 0 {
		return 0
	}
	hours := 1.0
	if d, err := model.ParseDuration(metrics.Window); err == nil && d > 0 {
		hours = time.Duration(d).Hours()
	}
	hourly := metrics.TotalCost / hours
	return hourly * float64(current-recommended) / float64(current)
}
