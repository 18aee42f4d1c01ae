package rules

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testPolicy() *config.PolicyConfig {
	return &config.PolicyConfig{
		RiskTolerance: config.RiskConservative,
		ChangeCaps: config.ChangeCapConfig{
			Conservative: 5,
			Balanced:     10,
			Aggressive:   15,
			AbsoluteMax:  20,
		},
		CooldownDays:         7,
		OneLeverWindowDays:   7,
		MinClicks7d:          30,
		MinConversions30d:    15,
		ConfidenceThreshold:  0.5,
		PacingBlockThreshold: 1.05,
		AutomationMode:       config.ModeSuggest,
	}
}

func testSnapshot(entityID string, metrics map[string]float64) *FeatureContext {
	return &FeatureContext{
		AccountID:     "acc-1",
		EntityID:      entityID,
		EntityType:    "campaign",
		EntityName:    entityID,
		SnapshotDate:  time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		CurrentBudget: 100,
		CurrentBid:    2,
		Enabled:       true,
		Metrics:       metrics,
		Policy:        testPolicy(),
	}
}

func findRec(recs []*Recommendation, ruleID string) *Recommendation {
	for _, rec := range recs {
		if rec.RuleID == ruleID {
			return rec
		}
	}
	return nil
}

// =============================================================================
// Catalog Rule Tests
// =============================================================================

func TestBudgetScaleUpOnStrongROAS(t *testing.T) {
	// ROAS 20% above target with healthy click volume.
	fc := testSnapshot("cmp-1", map[string]float64{
		MetricROAS7d:     2.4,
		MetricTargetROAS: 2.0,
		MetricClicks7d:   40,
	})

	evaluator := NewEvaluator(DefaultRegistry(), 0, nil)
	recs := evaluator.Evaluate(fc)

	rec := findRec(recs, "budget_scale_up")
	if rec == nil {
		t.Fatalf("expected budget_scale_up recommendation, got %d recs", len(recs))
	}
	if rec.Lever != ledger.LeverBudget {
		t.Errorf("lever = %q, want budget", rec.Lever)
	}
	if rec.CurrentValue != 100 {
		t.Errorf("current = %v, want 100", rec.CurrentValue)
	}
	if rec.RecommendedValue != 105 {
		t.Errorf("recommended = %v, want 105 (conservative +5%%)", rec.RecommendedValue)
	}
	if rec.ChangePct != 5 {
		t.Errorf("change pct = %v, want 5", rec.ChangePct)
	}
	// 0.3 + 40/100 = 0.7
	if rec.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", rec.Confidence)
	}
	if rec.ActionType != ActionBudgetIncrease {
		t.Errorf("action = %q, want budget_increase", rec.ActionType)
	}
}

func TestBudgetScaleUpBelowBandDoesNotTrigger(t *testing.T) {
	fc := testSnapshot("cmp-1", map[string]float64{
		MetricROAS7d:     2.3, // 1.15x target, below the 1.2x band
		MetricTargetROAS: 2.0,
		MetricClicks7d:   40,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	if rec := findRec(recs, "budget_scale_up"); rec != nil {
		t.Errorf("budget_scale_up triggered at ROAS 1.15x target")
	}
}

func TestBudgetScaleDownOnWeakROAS(t *testing.T) {
	fc := testSnapshot("cmp-2", map[string]float64{
		MetricROAS7d:     1.2, // 0.6x target
		MetricTargetROAS: 2.0,
		MetricCost7d:     300,
		MetricClicks7d:   50,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	rec := findRec(recs, "budget_scale_down")
	if rec == nil {
		t.Fatal("expected budget_scale_down recommendation")
	}
	if rec.RecommendedValue != 95 {
		t.Errorf("recommended = %v, want 95", rec.RecommendedValue)
	}
	if rec.ChangePct != -5 {
		t.Errorf("change pct = %v, want -5", rec.ChangePct)
	}
}

func TestPauseBleeder(t *testing.T) {
	fc := testSnapshot("cmp-3", map[string]float64{
		MetricConversions30d: 0,
		MetricCost30d:        200,
		MetricTargetCPA:      50,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	rec := findRec(recs, "pause_bleeder")
	if rec == nil {
		t.Fatal("expected pause_bleeder recommendation")
	}
	if rec.Lever != ledger.LeverStatus {
		t.Errorf("lever = %q, want status", rec.Lever)
	}
	if rec.ChangePct != 0 {
		t.Errorf("status changes must carry zero magnitude, got %v", rec.ChangePct)
	}
	if rec.RiskTier != RiskHigh {
		t.Errorf("risk tier = %q, want high", rec.RiskTier)
	}
	if rec.CurrentValue != 1 || rec.RecommendedValue != 0 {
		t.Errorf("values = %v -> %v, want 1 -> 0", rec.CurrentValue, rec.RecommendedValue)
	}
}

func TestPauseBleederSkipsPausedEntity(t *testing.T) {
	fc := testSnapshot("cmp-3", map[string]float64{
		MetricConversions30d: 0,
		MetricCost30d:        200,
		MetricTargetCPA:      50,
	})
	fc.Enabled = false

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	if rec := findRec(recs, "pause_bleeder"); rec != nil {
		t.Error("pause_bleeder triggered on an already-paused entity")
	}
}

func TestBidRulesRequireConversionSignal(t *testing.T) {
	// Efficient CPA but zero conversions: raise must not trigger.
	fc := testSnapshot("cmp-4", map[string]float64{
		MetricCPA30d:         10,
		MetricTargetCPA:      20,
		MetricConversions30d: 0,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	if rec := findRec(recs, "bid_raise"); rec != nil {
		t.Error("bid_raise triggered with zero conversions")
	}
}

func TestBidLowerOnHighCPA(t *testing.T) {
	fc := testSnapshot("cmp-5", map[string]float64{
		MetricCPA30d:         30, // 1.5x target
		MetricTargetCPA:      20,
		MetricConversions30d: 20,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	rec := findRec(recs, "bid_lower")
	if rec == nil {
		t.Fatal("expected bid_lower recommendation")
	}
	if rec.RecommendedValue != 1.9 {
		t.Errorf("recommended = %v, want 1.90", rec.RecommendedValue)
	}
	// 0.3 + 20/50 = 0.7
	if rec.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", rec.Confidence)
	}
}

func TestReviewCTRDropIsInformational(t *testing.T) {
	fc := testSnapshot("cmp-6", map[string]float64{})
	fc.Flags = map[string]bool{FlagCTRDrop: true}

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	rec := findRec(recs, "review_ctr_drop")
	if rec == nil {
		t.Fatal("expected review_ctr_drop recommendation")
	}
	if rec.Lever != "" {
		t.Errorf("review recommendations must carry no lever, got %q", rec.Lever)
	}
	if rec.Actionable() {
		t.Error("informational recommendation reported as actionable")
	}
}

func TestMissingMetricsDoNotTrigger(t *testing.T) {
	// An empty metric map must never be read as zeros.
	fc := testSnapshot("cmp-7", map[string]float64{})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(fc)
	if len(recs) != 1 || recs[0].RuleID != "healthy_no_action" {
		t.Fatalf("expected only healthy_no_action, got %d recs", len(recs))
	}
}

// =============================================================================
// No-Action Semantics
// =============================================================================

func TestNoActionOnlyWhenNothingTriggered(t *testing.T) {
	healthy := testSnapshot("cmp-8", map[string]float64{
		MetricROAS7d:     2.0, // exactly on target, inside both bands
		MetricTargetROAS: 2.0,
		MetricClicks7d:   100,
	})

	recs := NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(healthy)
	if len(recs) != 1 {
		t.Fatalf("healthy entity produced %d recs, want 1", len(recs))
	}
	if recs[0].RuleID != "healthy_no_action" {
		t.Errorf("rule = %q, want healthy_no_action", recs[0].RuleID)
	}

	triggered := testSnapshot("cmp-9", map[string]float64{
		MetricROAS7d:     2.4,
		MetricTargetROAS: 2.0,
		MetricClicks7d:   100,
	})
	recs = NewEvaluator(DefaultRegistry(), 0, nil).Evaluate(triggered)
	if findRec(recs, "healthy_no_action") != nil {
		t.Error("healthy_no_action emitted alongside a triggered rule")
	}
}

// =============================================================================
// Determinism and Parallel Evaluation
// =============================================================================

func TestEvaluateAllDeterministic(t *testing.T) {
	snapshots := []*FeatureContext{
		testSnapshot("cmp-a", map[string]float64{
			MetricROAS7d: 2.4, MetricTargetROAS: 2.0, MetricClicks7d: 40,
		}),
		testSnapshot("cmp-b", map[string]float64{
			MetricROAS7d: 1.2, MetricTargetROAS: 2.0, MetricCost7d: 100, MetricClicks7d: 60,
		}),
		testSnapshot("cmp-c", map[string]float64{}),
		testSnapshot("cmp-d", map[string]float64{
			MetricConversions30d: 0, MetricCost30d: 500, MetricTargetCPA: 40,
		}),
	}

	evaluator := NewEvaluator(DefaultRegistry(), 4, nil)

	first, err := evaluator.EvaluateAll(context.Background(), snapshots)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := evaluator.EvaluateAll(context.Background(), snapshots)
		if err != nil {
			t.Fatalf("EvaluateAll (run %d): %v", i, err)
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(again)
		if string(a) != string(b) {
			t.Fatalf("run %d produced a different recommendation list", i)
		}
	}
}

func TestRecommendationIDsStable(t *testing.T) {
	fc := testSnapshot("cmp-a", map[string]float64{
		MetricROAS7d: 2.4, MetricTargetROAS: 2.0, MetricClicks7d: 40,
	})

	evaluator := NewEvaluator(DefaultRegistry(), 0, nil)
	first := evaluator.Evaluate(fc)
	second := evaluator.Evaluate(fc)

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("unexpected rec counts: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("rec %d: IDs differ across identical inputs: %s vs %s",
				i, first[i].ID, second[i].ID)
		}
		if first[i].ID == "" {
			t.Errorf("rec %d: empty ID", i)
		}
	}
}

func TestEvaluateAllCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshots := make([]*FeatureContext, 100)
	for i := range snapshots {
		snapshots[i] = testSnapshot("cmp", map[string]float64{})
	}

	_, err := NewEvaluator(DefaultRegistry(), 1, nil).EvaluateAll(ctx, snapshots)
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	r := NewRegistry()
	rule := &Rule{
		ID:         "dup",
		ActionType: ActionReview,
		Predicate:  func(*FeatureContext) bool { return false },
		Action:     func(*FeatureContext) (float64, float64, bool) { return 0, 0, false },
		Rationale:  func(*FeatureContext, float64, float64) string { return "" },
	}
	if err := r.Register(rule); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(rule); err == nil {
		t.Error("duplicate Register succeeded")
	}
}

func TestDefaultRegistryCatalog(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []string{
		"pause_bleeder", "budget_scale_down", "bid_lower",
		"budget_scale_up", "bid_raise", "review_ctr_drop", "healthy_no_action",
	} {
		if r.Get(id) == nil {
			t.Errorf("catalog missing rule %q", id)
		}
	}
}
