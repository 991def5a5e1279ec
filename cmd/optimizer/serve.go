package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opscart/k8s-workload-optimizer/pkg/datasource"
	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/metrics"
	"github.com/opscart/k8s-workload-optimizer/pkg/optimizer"
	"github.com/opscart/k8s-workload-optimizer/pkg/reporter"
	"github.com/opscart/k8s-workload-optimizer/pkg/scheduler"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hourly optimization loop and serve metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Duration("optimization-interval", time.Hour, "Time between the end of one pass and the start of the next")
	cmd.Flags().String("metrics-addr", ":9095", "Address for /metrics, /healthz, /status and /run")
	cmd.Flags().Int("workers", 4, "Workloads processed in parallel")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(registry)

	a, err := buildApp(rec)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("storage not reachable: %w", err)
	}
	if checker, ok := a.gateway.(datasource.AvailabilityChecker); ok && !checker.IsAvailable(ctx) {
		logging.Log.Warnw("metrics source not reachable, passes will abort until it recovers", "source", a.gateway.Name())
	}

	sched := scheduler.New(a.coordinator, cfg.Interval)

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           buildMux(registry, sched, a.coordinator),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Log.Infow("http server listening", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
		close(errCh)
	}()

	logging.Log.Infow("workload optimizer started",
		"source", cfg.MetricsSource,
		"storage", cfg.StorageBackend,
		"interval", cfg.Interval.String(),
		"workers", cfg.Workers,
	)
	sched.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}

func buildMux(registry *prometheus.Registry, sched *scheduler.Scheduler, coordinator *optimizer.Coordinator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "use POST", http.StatusMethodNotAllowed)
			return
		}
		if coordinator.Running() || !sched.RunNow() {
			http.Error(w, optimizer.ErrPassInProgress.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		report, err := sched.LastReport()
		if report == nil && err == nil {
			http.Error(w, "no pass has completed yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := reporter.New(reporter.FormatJSON).WritePass(w, reporter.NewPassSummary(report, err)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return mux
}
