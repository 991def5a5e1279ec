package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/opscart/k8s-workload-optimizer/pkg/datasource"
	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/metrics"
	"github.com/opscart/k8s-workload-optimizer/pkg/models"
	"github.com/opscart/k8s-workload-optimizer/pkg/strategy"
)

// WorkloadLister returns the workloads enabled for optimization
type WorkloadLister interface {
	ListEnabledWorkloads(ctx context.Context) ([]models.EnabledWorkload, error)
}

// Dispatcher hands a workload to the strategy for its band
type Dispatcher interface {
	Dispatch(ctx context.Context, band strategy.Band, id models.WorkloadIdentity, settings *models.OptimizationSettings, metrics models.AllocationMetrics) error
}

// Options tune a Coordinator. Zero values fall back to defaults.
type Options struct {
	Window          string
	FetchTimeout    time.Duration
	StrategyTimeout time.Duration
	Workers         int
	Clock           clock.PassiveClock
	Metrics         *metrics.Recorder
}

const (
	DefaultWindow          = "1h"
	DefaultFetchTimeout    = 30 * time.Second
	DefaultStrategyTimeout = 30 * time.Second
	DefaultWorkers         = 4
)

// Coordinator runs optimization passes
type Coordinator struct {
	store      WorkloadLister
	gateway    datasource.MetricsGateway
	dispatcher Dispatcher

	window          string
	fetchTimeout    time.Duration
	strategyTimeout time.Duration
	workers         int
	clock           clock.PassiveClock
	metrics         *metrics.Recorder

	running atomic.Bool
}

// NewCoordinator creates a coordinator over the given collaborators
func NewCoordinator(store WorkloadLister, gateway datasource.MetricsGateway, dispatcher Dispatcher, opts Options) *Coordinator {
	c := &Coordinator{
		store:           store,
		gateway:         gateway,
		dispatcher:      dispatcher,
		window:          opts.Window,
		fetchTimeout:    opts.FetchTimeout,
		strategyTimeout: opts.StrategyTimeout,
		workers:         opts.Workers,
		clock:           opts.Clock,
		metrics:         opts.Metrics,
	}
	if c.window == "" {
		c.window = DefaultWindow
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if c.strategyTimeout <= 0 {
		c.strategyTimeout = DefaultStrategyTimeout
	}
	if c.workers <= 0 {
		c.workers = DefaultWorkers
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	return c
}

// Running reports whether a pass is in progress
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// ExecuteHourlyOptimization runs one pass: list enabled workloads, fetch one
// shared snapshot, then correlate, classify and dispatch every workload.
//
// A failed listing or snapshot fetch aborts the pass and is returned as the
// error. Per-workload failures never abort the pass; they are collected in
// the report. If ctx is cancelled the partial report is returned together
// with ctx.Err(). Calls that overlap a running pass return ErrPassInProgress.
func (c *Coordinator) ExecuteHourlyOptimization(ctx context.Context) (*PassReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer c.running.Store(false)

	report := newPassReport(uuid.New().String(), c.clock.Now())
	ctx = strategy.WithPassID(ctx, report.PassID)
	log := logging.Log.With("pass", report.PassID)

	workloads, err := c.store.ListEnabledWorkloads(ctx)
	if err != nil {
		report.Aborted = true
		c.finish(report, metrics.OutcomeAborted)
		return report, fmt.Errorf("failed to list enabled workloads: %w", err)
	}
	c.metrics.SetEnabledWorkloads(len(workloads))

	snapshot, err := c.fetchSnapshot(ctx)
	if err != nil {
		log.Errorw("aborting optimization pass", "error", err)
		report.Aborted = true
		c.finish(report, metrics.OutcomeAborted)
		return report, err
	}
	log.Infow("optimization pass started", "workloads", len(workloads), "namespaces", len(snapshot.Namespaces))
	if len(workloads) == 0 {
		log.Infow("no workloads enabled for optimization")
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, w := range workloads {
		if ctx.Err() != nil {
			report.cancel(identities(workloads[i:])...)
			break
		}
		w := w
		g.Go(func() error {
			c.processWorkload(ctx, snapshot, w, report)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		c.finish(report, metrics.OutcomeCancelled)
		log.Warnw("optimization pass cancelled",
			"attempted", report.Attempted,
			"succeeded", report.Succeeded,
			"cancelled", len(report.Cancelled),
		)
		return report, err
	}

	c.finish(report, metrics.OutcomeCompleted)
	log.Infow("optimization pass finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed(),
		"duration", report.Duration().String(),
	)
	return report, nil
}

func (c *Coordinator) fetchSnapshot(ctx context.Context) (*models.MetricsSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := c.clock.Now()
	snapshot, err := c.gateway.FetchSnapshot(fctx, c.window)
	if err == nil && snapshot == nil {
		err = errors.New("gateway returned no snapshot")
	}
	c.metrics.ObserveFetch(c.gateway.Name(), c.clock.Since(start), err)
	if err != nil {
		return nil, &GatewayError{Source: c.gateway.Name(), Window: c.window, Err: err}
	}
	return snapshot, nil
}

func (c *Coordinator) processWorkload(ctx context.Context, snapshot *models.MetricsSnapshot, w models.EnabledWorkload, report *PassReport) {
	if ctx.Err() != nil {
		report.cancel(w.Identity)
		return
	}
	report.attempt()

	m, ok := snapshot.Lookup(w.Identity.Namespace)
	if !ok {
		c.recordFailure(report, KindCorrelation, w.Identity, &CorrelationError{Workload: w.Identity})
		return
	}

	var score float64
	if w.Settings != nil {
		score = w.Settings.Score
	}
	band := strategy.Classify(score)
	if band == strategy.Unclassified {
		c.recordFailure(report, KindClassification, w.Identity, &ClassificationError{Workload: w.Identity, Score: score})
		return
	}

	err := c.dispatch(ctx, band, w, m)
	report.dispatched(band, err)
	c.metrics.Dispatched(band.String(), err)
	if err != nil {
		c.recordFailure(report, KindStrategy, w.Identity, &StrategyError{Workload: w.Identity, Band: band, Err: err})
	}
}

// dispatch bounds the strategy call by the strategy timeout. A strategy that
// ignores its context is abandoned when the deadline passes.
func (c *Coordinator) dispatch(ctx context.Context, band strategy.Band, w models.EnabledWorkload, m models.AllocationMetrics) error {
	sctx, cancel := context.WithTimeout(ctx, c.strategyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.dispatcher.Dispatch(sctx, band, w.Identity, w.Settings, m)
	}()

	select {
	case err := <-done:
		return err
	case <-sctx.Done():
		select {
		case err := <-done:
			return err
		default:
			return sctx.Err()
		}
	}
}

func (c *Coordinator) recordFailure(report *PassReport, kind string, id models.WorkloadIdentity, err error) {
	logging.Log.Warnw("workload optimization failed",
		"pass", report.PassID,
		"workload", id.String(),
		"kind", kind,
		"error", err,
	)
	report.fail(WorkloadError{Workload: id, Kind: kind, Err: err})
	c.metrics.WorkloadFailed(kind)
}

func (c *Coordinator) finish(report *PassReport, outcome string) {
	report.FinishedAt = c.clock.Now()
	c.metrics.ObservePass(outcome, report.StartedAt, report.FinishedAt)
}

func identities(workloads []models.EnabledWorkload) []models.WorkloadIdentity {
	ids := make([]models.WorkloadIdentity, 0, len(workloads))
	for _, w := range workloads {
		ids = append(ids, w.Identity)
	}
	return ids
}
