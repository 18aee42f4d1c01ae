package main

import (
	"context"
	"fmt"
	"net/http"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/executor"
	"adpilot-hq/adpilot/pkg/guardrails"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/pipeline"
	"adpilot-hq/adpilot/pkg/platform"
	"adpilot-hq/adpilot/pkg/rules"
	"adpilot-hq/adpilot/pkg/spend"
	"adpilot-hq/adpilot/pkg/telemetry/logging"
	"adpilot-hq/adpilot/pkg/telemetry/metrics"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     ledger.Store
	tracker   *spend.Tracker
	collector *metrics.Collector
}

// newApp loads configuration and wires the shared components.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	store, err := openLedger(&cfg.Ledger)
	if err != nil {
		return nil, err
	}

	var spendStore spend.Store
	if cfg.Spend.Persist {
		spendStore, err = spend.NewSQLiteStore(cfg.Spend.Path)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	tracker := spend.NewTracker(spendStore, cfg.Spend.AlertThreshold, logger.Slog())
	for _, account := range cfg.Accounts {
		tracker.Configure(account.ID, spend.Caps{
			Daily:   account.Policy.DailySpendCap,
			Monthly: account.Policy.MonthlySpendCap,
		})
	}
	if err := tracker.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("load spend history: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		tracker:   tracker,
		collector: metrics.NewCollector(),
	}

	if cfg.Telemetry.Metrics.Enabled {
		go a.serveMetrics(cfg.Telemetry.Metrics.ListenAddress)
	}

	return a, nil
}

// applyConfig picks up reloaded spend caps. Other settings (cron
// schedule, ledger backend, rollback thresholds) still need a restart
// because running components hold them.
func (a *app) applyConfig(cfg *config.Config) {
	for _, account := range cfg.Accounts {
		a.tracker.Configure(account.ID, spend.Caps{
			Daily:   account.Policy.DailySpendCap,
			Monthly: account.Policy.MonthlySpendCap,
		})
	}
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("ledger close failed", "error", err)
	}
}

// openLedger creates the configured ledger backend.
func openLedger(cfg *config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Backend {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite", "":
		return ledger.NewSQLiteStore(&ledger.SQLiteConfig{
			Path:         cfg.Path,
			MaxOpenConns: cfg.MaxOpenConns,
			BusyTimeout:  cfg.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}
}

// guardrailEngine builds the guardrail engine for one account's policy.
func (a *app) guardrailEngine(policy *config.PolicyConfig) (*guardrails.Engine, error) {
	return guardrails.NewEngine(policy.GuardrailOrder, a.store, a.tracker, a.logger.Slog())
}

// executionEngine builds the execution engine for one account's policy,
// with the rate-limited platform client and guardrail pre-flight wired in.
func (a *app) executionEngine(policy *config.PolicyConfig) (*executor.Engine, error) {
	ge, err := a.guardrailEngine(policy)
	if err != nil {
		return nil, err
	}
	client := platform.NewRateLimitedClient(
		platform.NewHTTPClient(&a.cfg.Platform),
		a.cfg.Platform.RequestsPerSecond,
		a.cfg.Platform.Burst,
	)
	return executor.NewEngine(client, a.store, ge, &a.cfg.Executor, a.logger.Slog()), nil
}

// runner builds a pipeline runner for one account. withExecutor controls
// whether a platform client and execution engine are wired in.
func (a *app) runner(policy *config.PolicyConfig, withExecutor bool) (*pipeline.Runner, error) {
	ge, err := a.guardrailEngine(policy)
	if err != nil {
		return nil, err
	}

	evaluator := rules.NewEvaluator(rules.DefaultRegistry(), 0, a.logger.Slog())

	var exec *executor.Engine
	if withExecutor {
		exec, err = a.executionEngine(policy)
		if err != nil {
			return nil, err
		}
	}

	return pipeline.NewRunner(evaluator, ge, exec, a.tracker, a.collector, a.logger.Slog()), nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	a.logger.Info("metrics endpoint listening", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.logger.Error("metrics endpoint failed", "error", err)
	}
}
