package executor

import (
	"time"

	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

// State is an execution item's lifecycle state. Items move
// Pending -> Validating -> (Blocked | Executing) -> (Succeeded | Failed).
type State string

const (
	StatePending    State = "pending"
	StateValidating State = "validating"
	StateBlocked    State = "blocked"
	StateExecuting  State = "executing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Item is one recommendation queued for execution, paired with the
// snapshot it was generated from so pre-flight guardrail checks can re-run
// against current ledger state.
type Item struct {
	Rec     *rules.Recommendation
	Feature *rules.FeatureContext
}

// ItemResult is the terminal outcome of one execution item.
type ItemResult struct {
	// Rec is the executed recommendation.
	Rec *rules.Recommendation `json:"recommendation"`

	// State is the terminal state.
	State State `json:"state"`

	// BlockReason is set when State is Blocked.
	BlockReason string `json:"block_reason,omitempty"`

	// Error describes the failure when State is Failed.
	Error string `json:"error,omitempty"`

	// Attempts is how many platform calls were made.
	Attempts int `json:"attempts"`

	// OldValue is the platform-confirmed pre-change value.
	OldValue float64 `json:"old_value"`

	// NewValue is the platform-confirmed post-change value.
	NewValue float64 `json:"new_value"`

	// Entry is the ledger entry written for the item, if any.
	Entry *ledger.ChangeLogEntry `json:"-"`
}

// BatchResult summarizes one account's execution batch.
type BatchResult struct {
	// AccountID is the executed account.
	AccountID string `json:"account_id"`

	// Mode is the execution mode the batch ran under.
	Mode ledger.ExecutionMode `json:"mode"`

	// StartedAt and FinishedAt bound the batch.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Total is the number of items in the batch.
	Total int `json:"total"`

	// Successful, Failed, and Blocked count terminal states.
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Blocked    int `json:"blocked"`

	// Results holds per-item outcomes in batch order.
	Results []*ItemResult `json:"results"`
}

// HasFailures reports whether any non-blocked item failed.
func (b *BatchResult) HasFailures() bool {
	return b.Failed > 0
}
