package config

import "time"

// Config is the root configuration structure for Adpilot.
// It contains all configuration sections for the accounts under management,
// the change ledger, the platform client, execution, rollback monitoring,
// and telemetry.
type Config struct {
	// Accounts contains the advertising accounts managed by this instance.
	// Each account carries its own policy ("Constitution") settings.
	Accounts []AccountConfig `yaml:"accounts"`

	// Ledger contains configuration for the append-only change ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Spend contains configuration for account spend/pacing tracking.
	Spend SpendConfig `yaml:"spend"`

	// Platform contains configuration for the external advertising
	// platform client.
	Platform PlatformConfig `yaml:"platform"`

	// Executor contains configuration for the execution engine.
	Executor ExecutorConfig `yaml:"executor"`

	// Rollback contains configuration for the rollback monitor.
	Rollback RollbackConfig `yaml:"rollback"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AccountConfig describes one managed advertising account.
type AccountConfig struct {
	// ID is the platform account identifier.
	ID string `yaml:"id"`

	// Name is a human-readable account label used in reports and logs.
	Name string `yaml:"name"`

	// Policy contains the account's policy settings. Every guardrail
	// decision for the account is derived from this block.
	Policy PolicyConfig `yaml:"policy"`
}

// RiskTolerance selects how aggressive recommended changes may be.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskBalanced     RiskTolerance = "balanced"
	RiskAggressive   RiskTolerance = "aggressive"
)

// AutomationMode controls whether recommendations may be executed live
// without a human in the loop.
type AutomationMode string

const (
	// ModeInsights produces reports only; execution is never permitted.
	ModeInsights AutomationMode = "insights"

	// ModeSuggest produces reports for human approval; live execution
	// requires an explicit confirmation flag.
	ModeSuggest AutomationMode = "suggest"

	// ModeAutoLowRisk permits unattended live execution of low-risk
	// recommendations only.
	ModeAutoLowRisk AutomationMode = "auto_low_risk"

	// ModeAutoExpanded permits unattended live execution of all
	// non-blocked recommendations.
	ModeAutoExpanded AutomationMode = "auto_expanded"
)

// AllowsUnattended reports whether the mode permits live execution without
// an explicit confirmation.
func (m AutomationMode) AllowsUnattended() bool {
	return m == ModeAutoLowRisk || m == ModeAutoExpanded
}

// ChangeCapConfig is the per-tolerance change magnitude cap table.
// All values are percentages (5 means ±5%).
type ChangeCapConfig struct {
	// Conservative is the cap applied under conservative risk tolerance.
	// Default: 5
	Conservative float64 `yaml:"conservative"`

	// Balanced is the cap applied under balanced risk tolerance.
	// Default: 10
	Balanced float64 `yaml:"balanced"`

	// Aggressive is the cap applied under aggressive risk tolerance.
	// Default: 15
	Aggressive float64 `yaml:"aggressive"`

	// AbsoluteMax is the hard cap applied regardless of tolerance.
	// Default: 20
	AbsoluteMax float64 `yaml:"absolute_max"`
}

// PolicyConfig contains the per-account policy settings consulted by the
// rule catalog and the guardrail engine.
type PolicyConfig struct {
	// RiskTolerance selects the change-cap row and rule step size.
	// Default: "conservative"
	RiskTolerance RiskTolerance `yaml:"risk_tolerance"`

	// ChangeCaps is the change magnitude cap table.
	ChangeCaps ChangeCapConfig `yaml:"change_caps"`

	// CooldownDays is the minimum number of days between two live changes
	// on the same (entity, lever).
	// Default: 7
	CooldownDays int `yaml:"cooldown_days"`

	// OneLeverWindowDays is the window within which a live change on one
	// lever forbids changes on an opposing lever.
	// Default: 7
	OneLeverWindowDays int `yaml:"one_lever_window_days"`

	// DailySpendCap is the account daily spend cap in account currency.
	// Zero means no cap.
	DailySpendCap float64 `yaml:"daily_spend_cap"`

	// MonthlySpendCap is the account monthly spend cap in account currency.
	// Zero means no cap.
	MonthlySpendCap float64 `yaml:"monthly_spend_cap"`

	// PacingBlockThreshold blocks budget increases when monthly pacing
	// exceeds this fraction of the monthly cap.
	// Default: 1.05
	PacingBlockThreshold float64 `yaml:"pacing_block_threshold"`

	// ProtectedEntities lists entity IDs that must never be changed.
	// Brand entities are protected implicitly.
	ProtectedEntities []string `yaml:"protected_entities"`

	// MinClicks7d is the minimum 7-day click volume required before any
	// change may be recommended for an entity.
	// Default: 30
	MinClicks7d float64 `yaml:"min_clicks_7d"`

	// MinConversions30d is the minimum 30-day conversion volume required
	// before bid-lever changes may be recommended.
	// Default: 15
	MinConversions30d float64 `yaml:"min_conversions_30d"`

	// ConfidenceThreshold is the minimum recommendation confidence.
	// Default: 0.5
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// AutomationMode controls unattended live execution.
	// Default: "suggest"
	AutomationMode AutomationMode `yaml:"automation_mode"`

	// LeverPriority orders levers when a single evaluation pass proposes
	// changes on more than one lever for the same entity. Earlier levers
	// win; later proposals are superseded.
	// Default: ["status", "budget", "bid"]
	LeverPriority []string `yaml:"lever_priority"`

	// GuardrailOrder overrides the guardrail check precedence. Empty means
	// the built-in order. Checks not listed here never run.
	GuardrailOrder []string `yaml:"guardrail_order"`
}

// Cap returns the change magnitude cap (in percent) for the configured
// risk tolerance.
func (p *PolicyConfig) Cap() float64 {
	switch p.RiskTolerance {
	case RiskBalanced:
		return p.ChangeCaps.Balanced
	case RiskAggressive:
		return p.ChangeCaps.Aggressive
	default:
		return p.ChangeCaps.Conservative
	}
}

// Step returns the rule step size (as a fraction) for the configured risk
// tolerance. A conservative account proposes ±5% steps, so Step is 0.05.
func (p *PolicyConfig) Step() float64 {
	return p.Cap() / 100
}

// IsProtected reports whether the entity ID is on the protect list.
func (p *PolicyConfig) IsProtected(entityID string) bool {
	for _, id := range p.ProtectedEntities {
		if id == entityID {
			return true
		}
	}
	return false
}

// LedgerConfig contains configuration for the change ledger backend.
type LedgerConfig struct {
	// Backend selects the storage backend ("sqlite" or "memory").
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	// Default: "data/ledger.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SpendConfig contains configuration for spend/pacing tracking.
type SpendConfig struct {
	// Persist enables SQLite persistence of spend events so pacing state
	// survives restarts.
	// Default: true
	Persist bool `yaml:"persist"`

	// Path is the spend database file path.
	// Default: "data/spend.db"
	Path string `yaml:"path"`

	// AlertThreshold triggers a pacing alert at this fraction of a cap.
	// Default: 0.8
	AlertThreshold float64 `yaml:"alert_threshold"`
}

// PlatformConfig contains configuration for the advertising platform client.
type PlatformConfig struct {
	// Endpoint is the platform API base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the platform API.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-call timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond limits the per-account call rate.
	// Default: 2
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the per-account rate limiter burst size.
	// Default: 1
	Burst int `yaml:"burst"`
}

// ExecutorConfig contains configuration for the execution engine.
type ExecutorConfig struct {
	// MaxAttempts bounds retries for transient platform failures.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the first retry delay.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the retry delay.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// AccountConcurrency bounds how many accounts execute in parallel.
	// Execution within one account is always serialized.
	// Default: 4
	AccountConcurrency int `yaml:"account_concurrency"`
}

// RollbackConfig contains configuration for the rollback monitor.
type RollbackConfig struct {
	// Enabled controls whether the monitor runs.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// KPI selects the metric compared against baseline ("cpa" or "roas").
	// Default: "cpa"
	KPI string `yaml:"kpi"`

	// DegradationPct is the percentage degradation of the KPI beyond which
	// a reversal is proposed.
	// Default: 20
	DegradationPct float64 `yaml:"degradation_pct"`

	// MinAgeDays is the minimum age of a live change before it is checked.
	// Default: 3
	MinAgeDays int `yaml:"min_age_days"`

	// MaxAgeDays is the maximum age of a live change still checked.
	// Default: 14
	MaxAgeDays int `yaml:"max_age_days"`

	// Schedule is the cron expression for scheduled scans.
	// Default: "0 6 * * *" (daily at 6 AM)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format ("json" or "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`
}

// Account returns the account configuration for the given ID, or nil.
func (c *Config) Account(id string) *AccountConfig {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i]
		}
	}
	return nil
}
