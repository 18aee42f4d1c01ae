package guardrails

import (
	"context"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

// Stable block reasons surfaced in reports. Each names the first violated
// policy; tests and the approval UI match on these strings.
const (
	ReasonInsufficientData = "insufficient data"
	ReasonProtectedEntity  = "protected entity"
	ReasonLowConfidence    = "low confidence"
	ReasonCooldown         = "cooldown"
	ReasonOneLever         = "one-lever"
	ReasonChangeCap        = "change cap exceeded"
	ReasonPacingOverCap    = "pacing over cap"
)

// Built-in check IDs, in default precedence order.
const (
	CheckDataSufficiency = "data_sufficiency"
	CheckProtectedEntity = "protected_entity"
	CheckConfidence      = "confidence"
	CheckCooldown        = "cooldown"
	CheckOneLever        = "one_lever"
	CheckChangeMagnitude = "change_magnitude"
	CheckSpendPacing     = "spend_pacing"
)

// DefaultOrder is the built-in check precedence.
var DefaultOrder = []string{
	CheckDataSufficiency,
	CheckProtectedEntity,
	CheckConfidence,
	CheckCooldown,
	CheckOneLever,
	CheckChangeMagnitude,
	CheckSpendPacing,
}

// PacingSource reports account-level monthly pacing as a fraction of the
// monthly spend cap (1.0 = exactly on cap). Implemented by spend.Tracker.
type PacingSource interface {
	Pacing(accountID string) float64
}

// CheckContext carries everything a single check may consult. Checks are
// pure functions of this context plus the current ledger state.
type CheckContext struct {
	// Rec is the recommendation under review.
	Rec *rules.Recommendation

	// Feature is the snapshot the recommendation was generated from.
	Feature *rules.FeatureContext

	// Policy is the owning account's policy.
	Policy *config.PolicyConfig

	// Ledger is the change ledger; reads reflect the latest committed
	// state, never a cached view.
	Ledger ledger.Store

	// Pacing reports account spend pacing; nil disables the pacing check.
	Pacing PacingSource

	// Now is the evaluation timestamp; cooldown and one-lever window
	// cutoffs derive from it.
	Now time.Time
}

// Violation describes one failed policy check.
type Violation struct {
	// CheckID is the failed check.
	CheckID string

	// Reason is the stable human-readable block reason.
	Reason string
}

// Check is one composable policy check in the guardrail pipeline.
type Check struct {
	// ID identifies the check in precedence configuration.
	ID string

	// Name is a human-readable label.
	Name string

	// Fn returns a Violation if the check fails, nil otherwise. An error
	// indicates the check could not run (e.g. ledger unavailable); the
	// engine fails closed in that case.
	Fn func(ctx context.Context, cc *CheckContext) (*Violation, error)
}

// builtinChecks returns the built-in check set keyed by ID.
func builtinChecks() map[string]*Check {
	checks := []*Check{
		{
			ID:   CheckDataSufficiency,
			Name: "Minimum data volume",
			Fn:   checkDataSufficiency,
		},
		{
			ID:   CheckProtectedEntity,
			Name: "Protected entity",
			Fn:   checkProtectedEntity,
		},
		{
			ID:   CheckConfidence,
			Name: "Confidence threshold",
			Fn:   checkConfidence,
		},
		{
			ID:   CheckCooldown,
			Name: "Change cooldown",
			Fn:   checkCooldown,
		},
		{
			ID:   CheckOneLever,
			Name: "One lever at a time",
			Fn:   checkOneLever,
		},
		{
			ID:   CheckChangeMagnitude,
			Name: "Change magnitude cap",
			Fn:   checkChangeMagnitude,
		},
		{
			ID:   CheckSpendPacing,
			Name: "Spend pacing cap",
			Fn:   checkSpendPacing,
		},
	}

	byID := make(map[string]*Check, len(checks))
	for _, c := range checks {
		byID[c.ID] = c
	}
	return byID
}

// checkDataSufficiency requires minimum click volume for every
// recommendation, informational ones included, and minimum conversion
// volume for bid-lever changes. A review or no-action finding on an
// entity below the click floor is noise, not signal.
func checkDataSufficiency(ctx context.Context, cc *CheckContext) (*Violation, error) {
	clicks, ok := cc.Feature.Metric(rules.MetricClicks7d)
	if !ok || clicks < cc.Policy.MinClicks7d {
		return &Violation{CheckID: CheckDataSufficiency, Reason: ReasonInsufficientData}, nil
	}

	if cc.Rec.Lever == ledger.LeverBid {
		conversions, ok := cc.Feature.Metric(rules.MetricConversions30d)
		if !ok || conversions < cc.Policy.MinConversions30d {
			return &Violation{CheckID: CheckDataSufficiency, Reason: ReasonInsufficientData}, nil
		}
	}

	return nil, nil
}

// checkProtectedEntity blocks changes to brand entities and the explicit
// protect list, regardless of any other factor.
func checkProtectedEntity(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.Lever == "" {
		return nil, nil
	}
	if cc.Feature.IsBrand || cc.Policy.IsProtected(cc.Rec.EntityID) {
		return &Violation{CheckID: CheckProtectedEntity, Reason: ReasonProtectedEntity}, nil
	}
	return nil, nil
}

// checkConfidence requires the recommendation to clear the account's
// confidence threshold.
func checkConfidence(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.Lever == "" {
		return nil, nil
	}
	if cc.Rec.Confidence < cc.Policy.ConfidenceThreshold {
		return &Violation{CheckID: CheckConfidence, Reason: ReasonLowConfidence}, nil
	}
	return nil, nil
}

// checkCooldown blocks a change if a live entry exists for the same
// (entity, lever) within the cooldown window.
func checkCooldown(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.Lever == "" {
		return nil, nil
	}
	since := ledger.WindowCutoff(cc.Now, cc.Policy.CooldownDays)
	last, err := cc.Ledger.LastChange(ctx, cc.Rec.AccountID, cc.Rec.EntityID, cc.Rec.Lever, since)
	if err != nil {
		return nil, err
	}
	if last != nil {
		return &Violation{CheckID: CheckCooldown, Reason: ReasonCooldown}, nil
	}
	return nil, nil
}

// checkOneLever blocks a change if a live entry exists for the entity on a
// different lever within the one-lever window.
func checkOneLever(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.Lever == "" {
		return nil, nil
	}
	since := ledger.WindowCutoff(cc.Now, cc.Policy.OneLeverWindowDays)
	opposing, err := cc.Ledger.HasOpposingLeverChange(ctx, cc.Rec.AccountID, cc.Rec.EntityID, cc.Rec.Lever, since)
	if err != nil {
		return nil, err
	}
	if opposing {
		return &Violation{CheckID: CheckOneLever, Reason: ReasonOneLever}, nil
	}
	return nil, nil
}

// checkChangeMagnitude enforces the tolerance cap and the absolute max on
// value levers. Status changes have no magnitude.
func checkChangeMagnitude(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.Lever != ledger.LeverBudget && cc.Rec.Lever != ledger.LeverBid {
		return nil, nil
	}
	magnitude := cc.Rec.ChangePct
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude > cc.Policy.Cap() || magnitude > cc.Policy.ChangeCaps.AbsoluteMax {
		return &Violation{CheckID: CheckChangeMagnitude, Reason: ReasonChangeCap}, nil
	}
	return nil, nil
}

// checkSpendPacing rejects budget increases when account-level monthly
// pacing already exceeds the configured threshold of the cap.
func checkSpendPacing(ctx context.Context, cc *CheckContext) (*Violation, error) {
	if cc.Rec.ActionType != rules.ActionBudgetIncrease || cc.Pacing == nil {
		return nil, nil
	}
	if cc.Policy.MonthlySpendCap <= 0 {
		return nil, nil
	}
	if cc.Pacing.Pacing(cc.Rec.AccountID) > cc.Policy.PacingBlockThreshold {
		return &Violation{CheckID: CheckSpendPacing, Reason: ReasonPacingOverCap}, nil
	}
	return nil, nil
}
