package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opscart/k8s-workload-optimizer/pkg/config"
	"github.com/opscart/k8s-workload-optimizer/pkg/datasource"
	"github.com/opscart/k8s-workload-optimizer/pkg/logging"
	"github.com/opscart/k8s-workload-optimizer/pkg/metrics"
	"github.com/opscart/k8s-workload-optimizer/pkg/optimizer"
	"github.com/opscart/k8s-workload-optimizer/pkg/reporter"
	"github.com/opscart/k8s-workload-optimizer/pkg/scanner"
	"github.com/opscart/k8s-workload-optimizer/pkg/storage"
	"github.com/opscart/k8s-workload-optimizer/pkg/strategy"
)

var (
	// Global flags
	configFile string

	// Global config
	cfg *config.Config

	// Recommendations command vars
	historyLimit int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "workload-optimizer",
		Short: "Hourly Kubernetes workload optimization",
		Long: `Score workloads from user preferences, then once an hour fetch a cost
snapshot and hand each enabled workload to the strategy for its score band.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadWithFlags(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if _, err := logging.Init(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to a YAML config file")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.StringP("output-format", "o", "text", "Output format: text, json, yaml, csv, html")
	pf.String("storage-backend", config.BackendPostgres, "Settings storage: postgres or memory (memory is per-process and not accepted by serve)")
	pf.String("database-url", "", "PostgreSQL connection string")
	pf.String("kubeconfig", "", "Path to kubeconfig (default ~/.kube/config, then in-cluster)")
	pf.String("metrics-source", config.SourceKubecost, "Cost metrics source: kubecost or prometheus")
	pf.String("kubecost-url", "", "Kubecost cost-analyzer URL")
	pf.String("prometheus-url", "", "Prometheus URL with OpenCost metrics")

	recommendationsCmd := &cobra.Command{
		Use:   "recommendations [namespace]",
		Short: "View past recommendations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecommendations,
	}
	recommendationsCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of recommendations to show")

	runOnceCmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single optimization pass and print its report",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	}
	runOnceCmd.Flags().String("metrics-window", "1h", "Snapshot window")
	runOnceCmd.Flags().Int("workers", 4, "Workloads processed in parallel")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(runOnceCmd)
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(recommendationsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initStorage() (*storage.SettingsStore, error) {
	backend, err := storage.NewBackend(&storage.Config{
		Backend:     cfg.StorageBackend,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage.NewSettingsStore(backend), nil
}

func newReporter() (*reporter.Reporter, error) {
	format, err := reporter.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	return reporter.New(format), nil
}

// app bundles everything a pass needs
type app struct {
	store       *storage.SettingsStore
	gateway     datasource.MetricsGateway
	coordinator *optimizer.Coordinator
}

func buildApp(rec *metrics.Recorder) (*app, error) {
	store, err := initStorage()
	if err != nil {
		return nil, err
	}

	gateway, err := datasource.NewGateway(&datasource.Config{
		Source:        cfg.MetricsSource,
		KubecostURL:   cfg.KubecostURL,
		PrometheusURL: cfg.PrometheusURL,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize metrics gateway: %w", err)
	}

	clientset, err := scanner.NewClientset(cfg.Kubeconfig)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := strategy.DefaultRegistry(clientset, store.Backend())
	coordinator := optimizer.NewCoordinator(store, gateway, registry, optimizer.Options{
		Window:          cfg.MetricsWindow,
		FetchTimeout:    cfg.FetchTimeout,
		StrategyTimeout: cfg.StrategyTimeout,
		Workers:         cfg.Workers,
		Metrics:         rec,
	})

	return &app{store: store, gateway: gateway, coordinator: coordinator}, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	rep, err := newReporter()
	if err != nil {
		return err
	}

	a, err := buildApp(nil)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if cfg.OutputFormat == string(reporter.FormatText) {
		fmt.Printf("[INFO] Running optimization pass (source: %s, window: %s)\n", cfg.MetricsSource, cfg.MetricsWindow)
	}

	report, passErr := a.coordinator.ExecuteHourlyOptimization(cmd.Context())
	if err := rep.WritePass(os.Stdout, reporter.NewPassSummary(report, passErr)); err != nil {
		return err
	}
	return passErr
}

func runRecommendations(cmd *cobra.Command, args []string) error {
	namespace := ""
	if len(args) == 1 {
		namespace = args[0]
	}

	rep, err := newReporter()
	if err != nil {
		return err
	}

	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Backend().ListRecommendations(cmd.Context(), namespace, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to get recommendations: %w", err)
	}

	if rep.Format() == reporter.FormatText {
		scope := "all namespaces"
		if namespace != "" {
			scope = "namespace " + namespace
		}
		fmt.Printf("[INFO] Last %d recommendations for %s\n\n", len(recs), scope)
	}
	return rep.WriteRecommendations(os.Stdout, rep.Generate(recs, namespace))
}
