package rules

import (
	"crypto/sha256"
	"encoding/hex"

	"adpilot-hq/adpilot/pkg/ledger"
)

// ActionType is the kind of change a recommendation proposes.
type ActionType string

const (
	ActionBudgetIncrease ActionType = "budget_increase"
	ActionBudgetDecrease ActionType = "budget_decrease"
	ActionBidIncrease    ActionType = "bid_increase"
	ActionBidDecrease    ActionType = "bid_decrease"
	ActionPause          ActionType = "pause"
	ActionResume         ActionType = "resume"
	ActionReview         ActionType = "review"
	ActionNoAction       ActionType = "no_action"
)

// Lever returns the control surface the action changes. Review and
// no-action recommendations are informational and have no lever.
func (a ActionType) Lever() ledger.Lever {
	switch a {
	case ActionBudgetIncrease, ActionBudgetDecrease:
		return ledger.LeverBudget
	case ActionBidIncrease, ActionBidDecrease:
		return ledger.LeverBid
	case ActionPause, ActionResume:
		return ledger.LeverStatus
	default:
		return ""
	}
}

// IsIncrease reports whether the action raises spend exposure.
func (a ActionType) IsIncrease() bool {
	return a == ActionBudgetIncrease || a == ActionBidIncrease
}

// RiskTier classifies a recommendation's potential impact.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Recommendation is one proposed change for one entity, produced by a
// single rule. It is mutated only by the guardrail engine (Blocked,
// BlockReason) and the conflict resolver (superseding), and never after
// execution begins.
type Recommendation struct {
	// ID is a deterministic identifier derived from the account, entity,
	// rule, and snapshot date, so identical inputs produce identical
	// recommendation lists.
	ID string `json:"id"`

	// RuleID identifies the producing rule.
	RuleID string `json:"rule_id"`

	// AccountID is the owning platform account.
	AccountID string `json:"account_id"`

	// EntityType is the target entity kind.
	EntityType string `json:"entity_type"`

	// EntityID is the target entity.
	EntityID string `json:"entity_id"`

	// ActionType is the proposed change kind.
	ActionType ActionType `json:"action_type"`

	// Lever is the control surface the change touches; empty for
	// informational recommendations.
	Lever ledger.Lever `json:"lever,omitempty"`

	// CurrentValue is the value before the proposed change.
	CurrentValue float64 `json:"current_value"`

	// RecommendedValue is the proposed value.
	RecommendedValue float64 `json:"recommended_value"`

	// ChangePct is the signed percentage change for value levers; zero
	// for status and informational actions.
	ChangePct float64 `json:"change_pct"`

	// Confidence is the rule's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// RiskTier classifies the potential impact.
	RiskTier RiskTier `json:"risk_tier"`

	// Rationale is a human-readable explanation.
	Rationale string `json:"rationale"`

	// Evidence holds the metric values the rule triggered on.
	Evidence map[string]any `json:"evidence,omitempty"`

	// Blocked is set by the guardrail engine or conflict resolver.
	Blocked bool `json:"blocked"`

	// BlockReason is the first violated policy, or the superseding reason.
	BlockReason string `json:"block_reason,omitempty"`

	// Priority ranks urgency; lower is more urgent.
	Priority int `json:"priority"`
}

// Block marks the recommendation blocked with the given reason. The first
// reason sticks; later calls are ignored so BlockReason always names the
// first violated policy.
func (r *Recommendation) Block(reason string) {
	if r.Blocked {
		return
	}
	r.Blocked = true
	r.BlockReason = reason
}

// Actionable reports whether the recommendation proposes an executable
// change: it has a lever and has not been blocked.
func (r *Recommendation) Actionable() bool {
	return !r.Blocked && r.Lever != ""
}

// recommendationID derives the deterministic recommendation ID.
func recommendationID(fc *FeatureContext, ruleID string) string {
	h := sha256.New()
	h.Write([]byte(fc.AccountID))
	h.Write([]byte{0})
	h.Write([]byte(fc.EntityID))
	h.Write([]byte{0})
	h.Write([]byte(ruleID))
	h.Write([]byte{0})
	h.Write([]byte(fc.SnapshotDate.UTC().Format(ledger.DateLayout)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
