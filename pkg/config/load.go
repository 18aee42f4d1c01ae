package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ADPILOT_SECTION_FIELD (e.g., ADPILOT_LEDGER_PATH) and always
// take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format ADPILOT_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Ledger overrides
	if val := os.Getenv("ADPILOT_LEDGER_BACKEND"); val != "" {
		cfg.Ledger.Backend = val
	}
	if val := os.Getenv("ADPILOT_LEDGER_PATH"); val != "" {
		cfg.Ledger.Path = val
	}

	// Spend overrides
	if val := os.Getenv("ADPILOT_SPEND_PATH"); val != "" {
		cfg.Spend.Path = val
	}

	// Platform overrides
	if val := os.Getenv("ADPILOT_PLATFORM_ENDPOINT"); val != "" {
		cfg.Platform.Endpoint = val
	}
	if val := os.Getenv("ADPILOT_PLATFORM_API_KEY"); val != "" {
		cfg.Platform.APIKey = val
	}
	if val := os.Getenv("ADPILOT_PLATFORM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Platform.Timeout = d
		}
	}

	// Executor overrides
	if val := os.Getenv("ADPILOT_EXECUTOR_MAX_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Executor.MaxAttempts = i
		}
	}
	if val := os.Getenv("ADPILOT_EXECUTOR_ACCOUNT_CONCURRENCY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Executor.AccountConcurrency = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("ADPILOT_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ADPILOT_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ADPILOT_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
}
