package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Metrics sources
const (
	SourceKubecost   = "kubecost"
	SourcePrometheus = "prometheus"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	// Metrics
	MetricsSource string
	KubecostURL   string
	PrometheusURL string
	MetricsWindow string // e.g. "1h"

	// Storage
	StorageBackend string
	DatabaseURL    string

	// Kubernetes
	Kubeconfig string

	// Optimization loop
	Interval        time.Duration
	FetchTimeout    time.Duration
	StrategyTimeout time.Duration
	Workers         int

	// Observability
	LogLevel    string
	MetricsAddr string

	// Output
	OutputFormat string // text, json, yaml, csv
}

var keys = []string{
	"metrics_source",
	"kubecost_url",
	"prometheus_url",
	"metrics_window",
	"storage_backend",
	"database_url",
	"kubeconfig",
	"optimization_interval",
	"fetch_timeout",
	"strategy_timeout",
	"workers",
	"log_level",
	"metrics_addr",
	"output_format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metrics_source", SourceKubecost)
	v.SetDefault("kubecost_url", "http://kubecost-cost-analyzer.kubecost:9090")
	v.SetDefault("prometheus_url", "http://localhost:9090")
	v.SetDefault("metrics_window", "1h")
	v.SetDefault("storage_backend", BackendPostgres)
	v.SetDefault("database_url", "host=localhost port=5432 user=optimizer password=devpassword dbname=optimizer sslmode=disable")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("optimization_interval", time.Hour)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("strategy_timeout", 30*time.Second)
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9095")
	v.SetDefault("output_format", "text")
}

// NewConfig creates a configuration from defaults and the environment
func NewConfig() *Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads defaults, then the optional config file at path, then the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command line flags layered on top. A flag named
// like a key with dashes ("storage-backend") overrides it when set.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range keys {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var readErr error
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			readErr = fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		MetricsSource:   strings.ToLower(v.GetString("metrics_source")),
		KubecostURL:     v.GetString("kubecost_url"),
		PrometheusURL:   v.GetString("prometheus_url"),
		MetricsWindow:   v.GetString("metrics_window"),
		StorageBackend:  strings.ToLower(v.GetString("storage_backend")),
		DatabaseURL:     v.GetString("database_url"),
		Kubeconfig:      v.GetString("kubeconfig"),
		Interval:        v.GetDuration("optimization_interval"),
		FetchTimeout:    v.GetDuration("fetch_timeout"),
		StrategyTimeout: v.GetDuration("strategy_timeout"),
		Workers:         v.GetInt("workers"),
		LogLevel:        v.GetString("log_level"),
		MetricsAddr:     v.GetString("metrics_addr"),
		OutputFormat:    v.GetString("output_format"),
	}

	return cfg, readErr
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.MetricsSource {
	case SourceKubecost:
		if c.KubecostURL == "" {
			return fmt.Errorf("KUBECOST_URL must be set when metrics source is kubecost")
		}
	case SourcePrometheus:
		if c.PrometheusURL == "" {
			return fmt.Errorf("PROMETHEUS_URL must be set when metrics source is prometheus")
		}
	default:
		return fmt.Errorf("unknown metrics source: %s", c.MetricsSource)
	}

	switch c.StorageBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when storage backend is postgres")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}

	if _, err := model.ParseDuration(c.MetricsWindow); err != nil {
		return fmt.Errorf("invalid metrics window %q: %w", c.MetricsWindow, err)
	}
	if c.Interval < time.Minute {
		return fmt.Errorf("optimization interval must be at least 1 minute")
	}
	if c.FetchTimeout <= 0 || c.StrategyTimeout <= 0 {
		return fmt.Errorf("fetch and strategy timeouts must be positive")
	}
	if c.FetchTimeout >= c.Interval || c.StrategyTimeout >= c.Interval {
		return fmt.Errorf("timeouts must be shorter than the optimization interval")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	return nil
}

// ValidateServe adds the checks for a long-running server. The memory backend
// lives in a single process, so settings written by other invocations would
// never reach the server and every pass would be empty.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StorageBackend == BackendMemory {
		return fmt.Errorf("storage backend %q cannot be shared with settings commands, use postgres for serve", BackendMemory)
	}
	return nil
}
