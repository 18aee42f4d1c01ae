package rules

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// noActionRuleID is the catalog rule that represents "nothing triggered".
// The evaluator emits it only when no other rule produced a recommendation
// for the entity, so a healthy entity is explicitly represented in the
// output rather than silently omitted.
const noActionRuleID = "healthy_no_action"

// Evaluator runs the rule registry against entity snapshots.
//
// Evaluation across entities is embarrassingly parallel: each
// FeatureContext is independent and read-only, so EvaluateAll fans out over
// a bounded worker pool with no shared mutable state. Output ordering is
// deterministic regardless of worker scheduling.
type Evaluator struct {
	registry *Registry
	workers  int
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator over the given registry. workers bounds
// the per-call parallelism; values below 1 mean a default of 8.
func NewEvaluator(registry *Registry, workers int, logger *slog.Logger) *Evaluator {
	if workers < 1 {
		workers = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		registry: registry,
		workers:  workers,
		logger:   logger.With("component", "rules.evaluator"),
	}
}

// Evaluate runs every rule against one entity snapshot and returns the
// produced recommendations in registration order. It is a pure function of
// the snapshot: no rule observes another rule's output, and missing metrics
// mean a rule does not trigger.
func (e *Evaluator) Evaluate(fc *FeatureContext) []*Recommendation {
	if fc == nil || fc.Policy == nil {
		return nil
	}

	var recs []*Recommendation
	var noAction *Recommendation

	for _, rule := range e.registry.Rules() {
		if !rule.Predicate(fc) {
			continue
		}

		current, recommended, ok := rule.Action(fc)
		if !ok {
			continue
		}

		rec := &Recommendation{
			ID:               recommendationID(fc, rule.ID),
			RuleID:           rule.ID,
			AccountID:        fc.AccountID,
			EntityType:       fc.EntityType,
			EntityID:         fc.EntityID,
			ActionType:       rule.ActionType,
			Lever:            rule.ActionType.Lever(),
			CurrentValue:     current,
			RecommendedValue: recommended,
			ChangePct:        changePct(rule.ActionType, current, recommended),
			RiskTier:         rule.RiskTier,
			Rationale:        rule.Rationale(fc, current, recommended),
			Priority:         rule.Priority,
		}

		if rule.Confidence != nil {
			rec.Confidence = rule.Confidence(fc)
		} else {
			rec.Confidence = volumeConfidence(fc)
		}
		if rule.Evidence != nil {
			rec.Evidence = rule.Evidence(fc)
		}

		if rule.ID == noActionRuleID {
			noAction = rec
			continue
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 && noAction != nil {
		recs = append(recs, noAction)
	}

	return recs
}

// EvaluateAll evaluates every snapshot, fanning out across a bounded worker
// pool. Results preserve input order, so the output is deterministic for a
// given input slice.
func (e *Evaluator) EvaluateAll(ctx context.Context, snapshots []*FeatureContext) ([]*Recommendation, error) {
	results := make([][]*Recommendation, len(snapshots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, fc := range snapshots {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = e.Evaluate(fc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rule evaluation: %w", err)
	}

	var all []*Recommendation
	for _, recs := range results {
		all = append(all, recs...)
	}

	e.logger.Debug("evaluation complete",
		"entities", len(snapshots),
		"recommendations", len(all),
	)

	return all, nil
}

// changePct computes the signed percentage change for value levers. Status
// and informational actions have no magnitude.
func changePct(action ActionType, current, recommended float64) float64 {
	switch action {
	case ActionBudgetIncrease, ActionBudgetDecrease, ActionBidIncrease, ActionBidDecrease:
		if current == 0 {
			return 0
		}
		return (recommended - current) / current * 100
	default:
		return 0
	}
}
