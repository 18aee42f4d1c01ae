package config

import "time"

// Default values applied to unset configuration fields.
const (
	DefaultCooldownDays         = 7
	DefaultOneLeverWindowDays   = 7
	DefaultMinClicks7d          = 30
	DefaultMinConversions30d    = 15
	DefaultConfidenceThreshold  = 0.5
	DefaultPacingBlockThreshold = 1.05
)

// DefaultChangeCaps is the built-in change magnitude cap table (percent).
var DefaultChangeCaps = ChangeCapConfig{
	Conservative: 5,
	Balanced:     10,
	Aggressive:   15,
	AbsoluteMax:  20,
}

// DefaultLeverPriority resolves same-pass proposals on multiple levers for
// one entity. Status changes (pause) win over budget, budget over bid.
var DefaultLeverPriority = []string{"status", "budget", "bid"}

// ApplyDefaults fills unset configuration fields with default values.
// It is called by LoadConfig before validation.
func ApplyDefaults(cfg *Config) {
	for i := range cfg.Accounts {
		applyPolicyDefaults(&cfg.Accounts[i].Policy)
	}

	// Ledger defaults
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "sqlite"
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data/ledger.db"
	}
	if cfg.Ledger.MaxOpenConns == 0 {
		cfg.Ledger.MaxOpenConns = 10
	}
	if cfg.Ledger.BusyTimeout == 0 {
		cfg.Ledger.BusyTimeout = 5 * time.Second
	}

	// Spend defaults
	if cfg.Spend.Path == "" {
		cfg.Spend.Path = "data/spend.db"
	}
	if cfg.Spend.AlertThreshold == 0 {
		cfg.Spend.AlertThreshold = 0.8
	}

	// Platform defaults
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 30 * time.Second
	}
	if cfg.Platform.RequestsPerSecond == 0 {
		cfg.Platform.RequestsPerSecond = 2
	}
	if cfg.Platform.Burst == 0 {
		cfg.Platform.Burst = 1
	}

	// Executor defaults
	if cfg.Executor.MaxAttempts == 0 {
		cfg.Executor.MaxAttempts = 3
	}
	if cfg.Executor.InitialBackoff == 0 {
		cfg.Executor.InitialBackoff = time.Second
	}
	if cfg.Executor.MaxBackoff == 0 {
		cfg.Executor.MaxBackoff = 30 * time.Second
	}
	if cfg.Executor.AccountConcurrency == 0 {
		cfg.Executor.AccountConcurrency = 4
	}

	// Rollback defaults
	if cfg.Rollback.KPI == "" {
		cfg.Rollback.KPI = "cpa"
	}
	if cfg.Rollback.DegradationPct == 0 {
		cfg.Rollback.DegradationPct = 20
	}
	if cfg.Rollback.MinAgeDays == 0 {
		cfg.Rollback.MinAgeDays = 3
	}
	if cfg.Rollback.MaxAgeDays == 0 {
		cfg.Rollback.MaxAgeDays = 14
	}
	if cfg.Rollback.Schedule == "" {
		cfg.Rollback.Schedule = "0 6 * * *"
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9090"
	}
}

// applyPolicyDefaults fills unset policy fields for one account.
func applyPolicyDefaults(p *PolicyConfig) {
	if p.RiskTolerance == "" {
		p.RiskTolerance = RiskConservative
	}
	if p.ChangeCaps.Conservative == 0 {
		p.ChangeCaps.Conservative = DefaultChangeCaps.Conservative
	}
	if p.ChangeCaps.Balanced == 0 {
		p.ChangeCaps.Balanced = DefaultChangeCaps.Balanced
	}
	if p.ChangeCaps.Aggressive == 0 {
		p.ChangeCaps.Aggressive = DefaultChangeCaps.Aggressive
	}
	if p.ChangeCaps.AbsoluteMax == 0 {
		p.ChangeCaps.AbsoluteMax = DefaultChangeCaps.AbsoluteMax
	}
	if p.CooldownDays == 0 {
		p.CooldownDays = DefaultCooldownDays
	}
	if p.OneLeverWindowDays == 0 {
		p.OneLeverWindowDays = DefaultOneLeverWindowDays
	}
	if p.PacingBlockThreshold == 0 {
		p.PacingBlockThreshold = DefaultPacingBlockThreshold
	}
	if p.MinClicks7d == 0 {
		p.MinClicks7d = DefaultMinClicks7d
	}
	if p.MinConversions30d == 0 {
		p.MinConversions30d = DefaultMinConversions30d
	}
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if p.AutomationMode == "" {
		p.AutomationMode = ModeSuggest
	}
	if len(p.LeverPriority) == 0 {
		p.LeverPriority = append([]string(nil), DefaultLeverPriority...)
	}
}
