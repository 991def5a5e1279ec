package optimizer

import (
	"sync"
	"time"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
	"github.com/opscart/k8s-workload-optimizer/pkg/strategy"
)

// Kinds of per-workload failure
const (
	KindCorrelation    = "correlation"
	KindClassification = "classification"
	KindStrategy       = "strategy"
)

// WorkloadError is one isolated failure inside a pass
type WorkloadError struct {
	Workload models.WorkloadIdentity
	Kind     string
	Err      error
}

func (e WorkloadError) Error() string {
	return e.Err.Error()
}

func (e WorkloadError) Unwrap() error {
	return e.Err
}

// PassReport summarizes one optimization pass. Workers append to it
// concurrently; read it only after the pass returns.
type PassReport struct {
	PassID     string
	StartedAt  time.Time
	FinishedAt time.Time

	// Attempted counts workloads whose processing started
	Attempted int
	Succeeded int

	// Aborted is set when the pass failed before any workload was processed
	Aborted bool

	// Cancelled lists workloads skipped because the pass was cancelled
	Cancelled []models.WorkloadIdentity

	PerWorkloadErrors []WorkloadError
	Dispatches        map[strategy.Band]int

	mu sync.Mutex
}

func newPassReport(passID string, started time.Time) *PassReport {
	return &PassReport{
		PassID:     passID,
		StartedAt:  started,
		Dispatches: make(map[strategy.Band]int),
	}
}

// Duration is the wall time of the pass
func (r *PassReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed counts workloads that were attempted and did not succeed
func (r *PassReport) Failed() int {
	return len(r.PerWorkloadErrors)
}

func (r *PassReport) attempt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attempted++
}

func (r *PassReport) dispatched(band strategy.Band, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dispatches[band]++
	if err == nil {
		r.Succeeded++
	}
}

func (r *PassReport) fail(we WorkloadError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PerWorkloadErrors = append(r.PerWorkloadErrors, we)
}

func (r *PassReport) cancel(ids ...models.WorkloadIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancelled = append(r.Cancelled, ids...)
}
