package guardrails

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

// Decision is the outcome of running the guardrail pipeline against one
// recommendation.
type Decision struct {
	// Allowed reports whether every check passed.
	Allowed bool

	// CheckID is the first failed check; empty when allowed.
	CheckID string

	// Reason is the first violated policy; empty when allowed.
	Reason string
}

// Engine runs policy checks in a fixed precedence order, short-circuiting
// on the first failure so the block reason is always the first violated
// policy, deterministic regardless of how many policies would have failed.
//
// Precedence is configuration, not code structure: the order is a slice of
// check IDs, so new checks can be inserted without reordering existing ones.
type Engine struct {
	checks []*Check
	ledger ledger.Store
	pacing PacingSource
	logger *slog.Logger

	// now supplies the evaluation timestamp; overridable in tests.
	now func() time.Time
}

// NewEngine creates a guardrail engine. order lists check IDs in precedence
// order; empty means DefaultOrder. Unknown check IDs are a configuration
// error.
func NewEngine(order []string, store ledger.Store, pacing PacingSource, logger *slog.Logger) (*Engine, error) {
	if len(order) == 0 {
		order = DefaultOrder
	}
	if logger == nil {
		logger = slog.Default()
	}

	available := builtinChecks()
	checks := make([]*Check, 0, len(order))
	for _, id := range order {
		check, ok := available[id]
		if !ok {
			return nil, fmt.Errorf("unknown guardrail check %q", id)
		}
		checks = append(checks, check)
	}

	return &Engine{
		checks: checks,
		ledger: store,
		pacing: pacing,
		logger: logger.With("component", "guardrails.engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Check runs the pipeline against one recommendation and returns the
// decision without mutating the recommendation. Checks consult the latest
// committed ledger state, so the same engine serves both report generation
// and execution-time pre-flight validation.
//
// A check that cannot run (e.g. ledger unavailable) fails closed: the
// recommendation is blocked rather than waved through on unknown state.
func (e *Engine) Check(ctx context.Context, rec *rules.Recommendation, feature *rules.FeatureContext, policy *config.PolicyConfig) Decision {
	cc := &CheckContext{
		Rec:     rec,
		Feature: feature,
		Policy:  policy,
		Ledger:  e.ledger,
		Pacing:  e.pacing,
		Now:     e.now(),
	}

	for _, check := range e.checks {
		violation, err := check.Fn(ctx, cc)
		if err != nil {
			e.logger.Error("guardrail check failed to run, blocking recommendation",
				"check", check.ID,
				"entity_id", rec.EntityID,
				"rule_id", rec.RuleID,
				"error", err,
			)
			return Decision{Allowed: false, CheckID: check.ID, Reason: "guardrail unavailable: " + check.ID}
		}
		if violation != nil {
			return Decision{Allowed: false, CheckID: violation.CheckID, Reason: violation.Reason}
		}
	}

	return Decision{Allowed: true}
}

// Item pairs a recommendation with the snapshot it was generated from.
type Item struct {
	Rec     *rules.Recommendation
	Feature *rules.FeatureContext
}

// Apply runs the pipeline over a batch, marking failing recommendations
// blocked in place. Already-blocked recommendations are left untouched so
// earlier stages' reasons stick.
func (e *Engine) Apply(ctx context.Context, items []Item, policy *config.PolicyConfig) {
	for _, item := range items {
		if item.Rec.Blocked {
			continue
		}
		decision := e.Check(ctx, item.Rec, item.Feature, policy)
		if !decision.Allowed {
			item.Rec.Block(decision.Reason)
		}
	}
}
