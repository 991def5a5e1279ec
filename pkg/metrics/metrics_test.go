package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	start := time.Unix(1000, 0)
	r.ObservePass(OutcomeCompleted, start, start.Add(3*time.Second))
	r.ObservePass(OutcomeAborted, start, start.Add(time.Second))
	r.Dispatched("balanced", nil)
	r.Dispatched("balanced", errors.New("boom"))
	r.Dispatched("balanced", nil)
	r.WorkloadFailed("correlation")
	r.SetEnabledWorkloads(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.passesTotal.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.passesTotal.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dispatchesTotal.WithLabelValues("balanced", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dispatchesTotal.WithLabelValues("balanced", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workloadErrors.WithLabelValues("correlation")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.enabledWorkloads))
	assert.Equal(t, 1001.0, testutil.ToFloat64(r.lastPassTime))
	assert.Equal(t, 1, testutil.CollectAndCount(r.passDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObservePass(OutcomeCancelled, time.Now(), time.Now())
		r.ObserveFetch("kubecost", time.Second, nil)
		r.Dispatched("performance", nil)
		r.WorkloadFailed("strategy")
		r.SetEnabledWorkloads(1)
	})
}
