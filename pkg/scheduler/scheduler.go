package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/optimizer"
)

// Runner executes one optimization pass
type Runner interface {
	ExecuteHourlyOptimization(ctx context.Context) (*optimizer.PassReport, error)
}

// Scheduler triggers a pass every interval and on demand. The interval is
// measured from the end of one pass to the start of the next, so scheduled
// passes never overlap. Failed passes are logged and left for the next tick.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	trigger  chan struct{}
	onReport func(*optimizer.PassReport, error)

	mu         sync.RWMutex
	lastReport *optimizer.PassReport
	lastErr    error
}

// New creates a scheduler for runner
func New(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// OnReport registers a callback invoked after every pass
func (s *Scheduler) OnReport(fn func(*optimizer.PassReport, error)) *Scheduler {
	s.onReport = fn
	return s
}

// RunNow queues a manual pass. It returns false if one is already queued.
func (s *Scheduler) RunNow() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is done. The first pass starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	logging.Log.Infow("scheduler started", "interval", s.interval.String())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.trigger:
				s.runPass(ctx, "manual")
			}
		}
	}()

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		s.runPass(ctx, "scheduled")
	}, s.interval)

	wg.Wait()
	logging.Log.Info("scheduler stopped")
}

// LastReport returns the report and error of the most recent pass
func (s *Scheduler) LastReport() (*optimizer.PassReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.lastErr
}

func (s *Scheduler) runPass(ctx context.Context, reason string) {
	report, err := s.runner.ExecuteHourlyOptimization(ctx)
	if errors.Is(err, optimizer.ErrPassInProgress) {
		logging.Log.Infow("pass skipped, another pass is running", "trigger", reason)
		return
	}
	if err != nil {
		logging.Log.Errorw("optimization pass failed", "trigger", reason, "error", err)
	}

	s.mu.Lock()
	s.lastReport = report
	s.lastErr = err
	s.mu.Unlock()

	if s.onReport != nil {
		s.onReport(report, err)
	}
}
