package optimizer

import (
	"errors"
	"fmt"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
	"github.com/opscart/k8s-workload-optimizer/pkg/strategy"
)

// ErrPassInProgress is returned when a pass is requested while another one
// is still running in this process
var ErrPassInProgress = errors.New("optimization pass already in progress")

// GatewayError aborts a pass: no workload is processed without a snapshot
type GatewayError struct {
	Source string
	Window string
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("failed to fetch %s snapshot from %s: %v", e.Window, e.Source, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// CorrelationError means the workload's namespace is missing from the snapshot
type CorrelationError struct {
	Workload models.WorkloadIdentity
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("namespace %q of %s not found in metrics snapshot", e.Workload.Namespace, e.Workload)
}

// ClassificationError means the score falls outside every band
type ClassificationError struct {
	Workload models.WorkloadIdentity
	Score    float64
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("score %.1f of %s does not map to a strategy band", e.Score, e.Workload)
}

// StrategyError wraps a failed or timed out strategy call
type StrategyError struct {
	Workload models.WorkloadIdentity
	Band     strategy.Band
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s strategy failed for %s: %v", e.Band, e.Workload, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}
