package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.MetricsSource != SourceKubecost {
		t.Errorf("Expected default metrics source kubecost, got %s", cfg.MetricsSource)
	}

	if cfg.MetricsWindow != "1h" {
		t.Errorf("Expected default window 1h, got %s", cfg.MetricsWindow)
	}

	if cfg.Interval != time.Hour {
		t.Errorf("Expected hourly interval, got %v", cfg.Interval)
	}

	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("PROMETHEUS_URL", "http://prometheus:9090")
	t.Setenv("METRICS_SOURCE", "Prometheus")
	t.Setenv("STRATEGY_TIMEOUT", "45s")
	t.Setenv("WORKERS", "8")

	cfg := NewConfig()

	if cfg.PrometheusURL != "http://prometheus:9090" {
		t.Errorf("Expected custom Prometheus URL, got %s", cfg.PrometheusURL)
	}

	if cfg.MetricsSource != SourcePrometheus {
		t.Errorf("Expected prometheus source from env, got %s", cfg.MetricsSource)
	}

	if cfg.StrategyTimeout != 45*time.Second {
		t.Errorf("Expected strategy timeout 45s from env, got %v", cfg.StrategyTimeout)
	}

	if cfg.Workers != 8 {
		t.Errorf("Expected 8 workers from env, got %d", cfg.Workers)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optimizer.yaml")
	content := "storage_backend: memory\nworkers: 2\nmetrics_window: 2h\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("WORKERS", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.StorageBackend != BackendMemory {
		t.Errorf("Expected memory backend from file, got %s", cfg.StorageBackend)
	}

	if cfg.MetricsWindow != "2h" {
		t.Errorf("Expected window 2h from file, got %s", cfg.MetricsWindow)
	}

	if cfg.Workers != 6 {
		t.Errorf("Environment should override file, got %d workers", cfg.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if cfg == nil || cfg.Interval != time.Hour {
		t.Error("Defaults should still be returned alongside the error")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid defaults",
			setupConfig: func(c *Config) {},
			expectError: false,
		},
		{
			name:          "unknown metrics source",
			setupConfig:   func(c *Config) { c.MetricsSource = "datadog" },
			expectError:   true,
			errorContains: "unknown metrics source",
		},
		{
			name:          "kubecost without url",
			setupConfig:   func(c *Config) { c.KubecostURL = "" },
			expectError:   true,
			errorContains: "KUBECOST_URL",
		},
		{
			name: "memory backend needs no database",
			setupConfig: func(c *Config) {
				c.StorageBackend = BackendMemory
				c.DatabaseURL = ""
			},
			expectError: false,
		},
		{
			name:          "postgres without database url",
			setupConfig:   func(c *Config) { c.DatabaseURL = "" },
			expectError:   true,
			errorContains: "DATABASE_URL",
		},
		{
			name:          "bad window",
			setupConfig:   func(c *Config) { c.MetricsWindow = "an hour" },
			expectError:   true,
			errorContains: "invalid metrics window",
		},
		{
			name:          "interval too short",
			setupConfig:   func(c *Config) { c.Interval = 10 * time.Second },
			expectError:   true,
			errorContains: "at least 1 minute",
		},
		{
			name:          "strategy timeout longer than interval",
			setupConfig:   func(c *Config) { c.StrategyTimeout = 2 * time.Hour },
			expectError:   true,
			errorContains: "shorter than the optimization interval",
		},
		{
			name:          "no workers",
			setupConfig:   func(c *Config) { c.Workers = 0 },
			expectError:   true,
			errorContains: "workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.setupConfig(cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("WORKERS", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("storage-backend", "postgres", "")
	flags.Int("workers", 4, "")
	flags.String("unrelated", "", "")
	if err := flags.Parse([]string{"--storage-backend=memory"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadWithFlags("", flags)
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.StorageBackend != BackendMemory {
		t.Errorf("Expected flag to win, got %s", cfg.StorageBackend)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected unset flag to defer to environment, got %d", cfg.Workers)
	}
}

func TestValidateServeRejectsMemoryBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.StorageBackend = BackendMemory
	cfg.DatabaseURL = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Memory backend should be valid for one-shot commands: %v", err)
	}
	err := cfg.ValidateServe()
	if err == nil {
		t.Fatal("Expected serve to reject the memory backend")
	}
	if !strings.Contains(err.Error(), "use postgres") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidateServeAcceptsPostgres(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("Expected default config to be valid for serve, got %v", err)
	}

	cfg.Workers = 0
	if err := cfg.ValidateServe(); err == nil {
		t.Error("Expected base validation errors to surface")
	}
}
