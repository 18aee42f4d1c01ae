package ledger

import "time"

// Lever identifies which control surface of an entity a change touches.
type Lever string

const (
	// LeverBudget is the entity's daily budget.
	LeverBudget Lever = "budget"

	// LeverBid is the entity's bid or bid modifier.
	LeverBid Lever = "bid"

	// LeverStatus is the entity's enabled/paused status.
	LeverStatus Lever = "status"
)

// ExecutionMode distinguishes simulated changes from real ones.
type ExecutionMode string

const (
	// ModeDryRun marks entries written by simulated executions. Cooldown
	// and one-lever checks never treat these as real changes.
	ModeDryRun ExecutionMode = "dry_run"

	// ModeLive marks entries written after a confirmed platform change.
	ModeLive ExecutionMode = "live"
)

// Status is the terminal outcome of an execution attempt.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ChangeLogEntry is one immutable row in the append-only change ledger.
// Entries are created only by the execution engine after a confirmed (or,
// for dry runs, simulated) outcome, and are never updated or deleted. The
// ledger is the sole source of truth for cooldown and one-lever checks.
type ChangeLogEntry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// AccountID is the platform account the entity belongs to.
	AccountID string `json:"account_id"`

	// EntityID is the changed entity.
	EntityID string `json:"entity_id"`

	// Lever is the control surface that was changed.
	Lever Lever `json:"lever"`

	// ChangeDate is the snapshot date the change was generated for,
	// truncated to day granularity.
	ChangeDate time.Time `json:"change_date"`

	// OldValue is the value before the change, as confirmed by the platform.
	OldValue float64 `json:"old_value"`

	// NewValue is the value after the change.
	NewValue float64 `json:"new_value"`

	// ChangePct is the signed percentage change.
	ChangePct float64 `json:"change_pct"`

	// RuleID identifies the rule that produced the change.
	RuleID string `json:"rule_id"`

	// RiskTier is the recommendation's risk classification.
	RiskTier string `json:"risk_tier"`

	// ExecutionMode records whether the change was simulated or live.
	ExecutionMode ExecutionMode `json:"execution_mode"`

	// Status records whether the execution succeeded or failed.
	Status Status `json:"status"`

	// ExecutedAt is when the execution reached its terminal state.
	ExecutedAt time.Time `json:"executed_at"`

	// Baseline captures pre-change KPI values (e.g. cpa_w7, roas_w7) used
	// by the rollback monitor to detect post-change degradation.
	Baseline map[string]float64 `json:"baseline,omitempty"`
}

// Key returns the logical identity of the entry used for idempotent writes.
// Recording the same (entity, lever, change date, rule, mode) twice must not
// create a second row. Mode is part of the key so a dry run on the same day
// never masks the subsequent live entry.
func (e *ChangeLogEntry) Key() string {
	return e.EntityID + "|" + string(e.Lever) + "|" + e.ChangeDate.Format(DateLayout) + "|" + e.RuleID + "|" + string(e.ExecutionMode)
}

// DateLayout is the day-granularity layout used for change dates.
const DateLayout = "2006-01-02"

// Query contains filters for reading the change ledger.
type Query struct {
	// AccountID filters by account.
	AccountID string

	// EntityID filters by entity.
	EntityID string

	// Lever filters by lever.
	Lever Lever

	// Mode filters by execution mode.
	Mode ExecutionMode

	// Status filters by terminal status.
	Status Status

	// RuleID filters by originating rule.
	RuleID string

	// Since filters entries with ChangeDate on or after this time.
	Since time.Time

	// Until filters entries with ChangeDate on or before this time.
	Until time.Time

	// Limit caps the number of returned entries. Zero means the backend
	// default (100).
	Limit int

	// Offset skips the first N matching entries.
	Offset int
}
