package reporter

import (
	"sort"
	"time"

	"github.com/opscart/k8s-workload-optimizer/pkg/optimizer"
)

// PassSummary is the serializable view of a PassReport
type PassSummary struct {
	PassID          string                 `json:"passId,omitempty"`
	StartedAt       time.Time              `json:"startedAt"`
	FinishedAt      time.Time              `json:"finishedAt"`
	DurationSeconds float64                `json:"durationSeconds"`
	Attempted       int                    `json:"attempted"`
	Succeeded       int                    `json:"succeeded"`
	Failed          int                    `json:"failed"`
	Aborted         bool                   `json:"aborted"`
	Error           string                 `json:"error,omitempty"`
	Cancelled       []string               `json:"cancelled,omitempty"`
	Dispatches      map[string]int         `json:"dispatches,omitempty"`
	Errors          []WorkloadErrorSummary `json:"errors,omitempty"`
}

// WorkloadErrorSummary is one per-workload failure
type WorkloadErrorSummary struct {
	Workload string `json:"workload"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// NewPassSummary flattens a pass report and the pass-level error. report may
// be nil when the pass never started.
func NewPassSummary(report *optimizer.PassReport, err error) PassSummary {
	var s PassSummary
	if err != nil {
		s.Error = err.Error()
	}
	if report == nil {
		return s
	}

	s.PassID = report.PassID
	s.StartedAt = report.StartedAt
	s.FinishedAt = report.FinishedAt
	s.DurationSeconds = report.Duration().Seconds()
	s.Attempted = report.Attempted
	s.Succeeded = report.Succeeded
	s.Failed = report.Failed()
	s.Aborted = report.Aborted

	for _, id := range report.Cancelled {
		s.Cancelled = append(s.Cancelled, id.String())
	}
	sort.Strings(s.Cancelled)

	if len(report.Dispatches) > 0 {
		s.Dispatches = make(map[string]int, len(report.Dispatches))
		for band, n := range report.Dispatches {
			s.Dispatches[band.String()] = n
		}
	}

	for _, we := range report.PerWorkloadErrors {
		s.Errors = append(s.Errors, WorkloadErrorSummary{
			Workload: we.Workload.String(),
			Kind:     we.Kind,
			Message:  we.Error(),
		})
	}
	sort.Slice(s.Errors, func(i, j int) bool { return s.Errors[i].Workload < s.Errors[j].Workload })
	return s
}
