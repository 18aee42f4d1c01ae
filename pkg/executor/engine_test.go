package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/guardrails"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/platform"
	"adpilot-hq/adpilot/pkg/rules"
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
		CooldownDays:        7,
		OneLeverWindowDays:  7,
		MinClicks7d:         30,
		MinConversions30d:   15,
		ConfidenceThreshold: 0.5,
		AutomationMode:      config.ModeSuggest,
	}
}

func testExecutorConfig() *config.ExecutorConfig {
	return &config.ExecutorConfig{
		MaxAttempts:        3,
		InitialBackoff:     time.Millisecond,
		MaxBackoff:         5 * time.Millisecond,
		AccountConcurrency: 2,
	}
}

func testItem(entityID string) Item {
	return Item{
		Rec: &rules.Recommendation{
			ID:               uuid.NewString(),
			RuleID:           "budget_scale_up",
			AccountID:        "acc-1",
			EntityID:         entityID,
			ActionType:       rules.ActionBudgetIncrease,
			Lever:            ledger.LeverBudget,
			CurrentValue:     100,
			RecommendedValue: 105,
			ChangePct:        5,
			Confidence:       0.8,
			RiskTier:         rules.RiskMedium,
			Priority:         30,
		},
		Feature: &rules.FeatureContext{
			AccountID:    "acc-1",
			EntityID:     entityID,
			EntityType:   "campaign",
			SnapshotDate: time.Now().UTC().Truncate(24 * time.Hour),
			Enabled:      true,
			Metrics: map[string]float64{
				rules.MetricClicks7d:       100,
				rules.MetricConversions30d: 40,
				rules.MetricCPA7d:          12.5,
				rules.MetricROAS7d:         3.0,
			},
		},
	}
}

func newTestEngine(t *testing.T, client platform.Client, store ledger.Store) *Engine {
	t.Helper()
	ge, err := guardrails.NewEngine(nil, store, nil, nil)
	if err != nil {
		t.Fatalf("guardrails.NewEngine: %v", err)
	}
	return NewEngine(client, store, ge, testExecutorConfig(), nil)
}

// =============================================================================
// Dry-Run Semantics
// =============================================================================

func TestDryRunNeverCallsPlatform(t *testing.T) {
	mock := platform.NewMockClient()
	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeDryRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if batch.Successful != 1 {
		t.Errorf("successful = %d, want 1", batch.Successful)
	}
	if len(mock.Calls()) != 0 {
		t.Errorf("dry run made %d platform calls", len(mock.Calls()))
	}

	entries, err := store.Query(context.Background(), &ledger.Query{EntityID: "cmp-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].ExecutionMode != ledger.ModeDryRun {
		t.Errorf("entry mode = %q, want dry_run", entries[0].ExecutionMode)
	}
}

func TestDryRunEntriesDoNotTripCooldown(t *testing.T) {
	mock := platform.NewMockClient()
	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)
	ctx := context.Background()

	if _, err := engine.Execute(ctx, "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeDryRun}); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	// A later live run of the same recommendation must still pass
	// pre-flight: the dry-run entry is not a real change.
	batch, err := engine.Execute(ctx, "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive, Confirmed: true})
	if err != nil {
		t.Fatalf("live run: %v", err)
	}
	if batch.Successful != 1 {
		t.Errorf("successful = %d, want 1 (result: %+v)", batch.Successful, batch.Results[0])
	}
}

// =============================================================================
// Retry and Ledger Semantics
// =============================================================================

func TestTransientFailureRetriedThenRecordedOnce(t *testing.T) {
	mock := platform.NewMockClient()
	mock.SetOldValue("cmp-1", 100)
	mock.ScriptError("cmp-1", platform.NewTransientError(errors.New("rate limited"), 0))
	mock.ScriptError("cmp-1", platform.NewTransientError(errors.New("upstream timeout"), 0))

	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive, Confirmed: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if batch.Successful != 1 {
		t.Fatalf("successful = %d, want 1 (result: %+v)", batch.Successful, batch.Results[0])
	}
	res := batch.Results[0]
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if res.OldValue != 100 || res.NewValue != 105 {
		t.Errorf("values = %v -> %v, want platform-confirmed 100 -> 105", res.OldValue, res.NewValue)
	}

	count, err := store.Count(context.Background(), &ledger.Query{EntityID: "cmp-1"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("ledger entries = %d, want exactly 1 despite the retry", count)
	}
}

func TestPermanentFailureNotRetriedNotRecorded(t *testing.T) {
	mock := platform.NewMockClient()
	mock.ScriptError("cmp-1", platform.NewPermanentError("400", "unknown entity"))

	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive, Confirmed: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if batch.Failed != 1 {
		t.Fatalf("failed = %d, want 1", batch.Failed)
	}
	if batch.Results[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent errors)", batch.Results[0].Attempts)
	}

	count, _ := store.Count(context.Background(), &ledger.Query{EntityID: "cmp-1"})
	if count != 0 {
		t.Errorf("ledger entries = %d, want 0 for a failed execution", count)
	}
}

func TestRetriesExhaustedFails(t *testing.T) {
	mock := platform.NewMockClient()
	for i := 0; i < 5; i++ {
		mock.ScriptError("cmp-1", platform.NewTransientError(errors.New("still down"), 0))
	}

	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive, Confirmed: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if batch.Failed != 1 {
		t.Fatalf("failed = %d, want 1 after retries exhausted", batch.Failed)
	}
	if got := batch.Results[0].Attempts; got != 3 {
		t.Errorf("attempts = %d, want the configured max of 3", got)
	}
}

// =============================================================================
// Pre-Flight and Gating
// =============================================================================

func TestPreflightBlocksStaleApproval(t *testing.T) {
	store := ledger.NewMemoryStore()

	// A live change landed between report approval and execution.
	err := store.Record(context.Background(), &ledger.ChangeLogEntry{
		ID: uuid.NewString(), AccountID: "acc-1", EntityID: "cmp-1",
		Lever: ledger.LeverBudget, ChangeDate: time.Now().UTC().Truncate(24 * time.Hour),
		RuleID: "other_rule", ExecutionMode: ledger.ModeLive,
		Status: ledger.StatusSucceeded, ExecutedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	mock := platform.NewMockClient()
	engine := newTestEngine(t, mock, store)

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive, Confirmed: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if batch.Blocked != 1 {
		t.Fatalf("blocked = %d, want 1", batch.Blocked)
	}
	if batch.Results[0].BlockReason != guardrails.ReasonCooldown {
		t.Errorf("reason = %q, want cooldown", batch.Results[0].BlockReason)
	}
	if len(mock.Calls()) != 0 {
		t.Error("platform called for a pre-flight-blocked item")
	}
}

func TestLiveRequiresConfirmationInSuggestMode(t *testing.T) {
	engine := newTestEngine(t, platform.NewMockClient(), ledger.NewMemoryStore())

	_, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		testPolicy(), Options{Mode: ledger.ModeLive})
	if err == nil {
		t.Error("live execution ran in suggest mode without confirmation")
	}
}

func TestInsightsModeNeverExecutesLive(t *testing.T) {
	engine := newTestEngine(t, platform.NewMockClient(), ledger.NewMemoryStore())

	policy := testPolicy()
	policy.AutomationMode = config.ModeInsights

	_, err := engine.Execute(context.Background(), "acc-1", []Item{testItem("cmp-1")},
		policy, Options{Mode: ledger.ModeLive, Confirmed: true})
	if err == nil {
		t.Error("live execution ran in insights mode")
	}
}

func TestAutoLowRiskBlocksHigherTiers(t *testing.T) {
	mock := platform.NewMockClient()
	engine := newTestEngine(t, mock, ledger.NewMemoryStore())

	policy := testPolicy()
	policy.AutomationMode = config.ModeAutoLowRisk

	low := testItem("cmp-low")
	low.Rec.RiskTier = rules.RiskLow
	medium := testItem("cmp-med") // medium tier

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{low, medium},
		policy, Options{Mode: ledger.ModeLive})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if batch.Successful != 1 || batch.Blocked != 1 {
		t.Fatalf("successful=%d blocked=%d, want 1/1", batch.Successful, batch.Blocked)
	}
	if batch.Results[1].BlockReason != "requires approval" {
		t.Errorf("reason = %q, want requires approval", batch.Results[1].BlockReason)
	}
	if mock.CallCount("cmp-med") != 0 {
		t.Error("medium-risk item reached the platform unattended")
	}
}

func TestBlockedRecommendationsSkipped(t *testing.T) {
	mock := platform.NewMockClient()
	engine := newTestEngine(t, mock, ledger.NewMemoryStore())

	item := testItem("cmp-1")
	item.Rec.Block("superseded")

	batch, err := engine.Execute(context.Background(), "acc-1", []Item{item},
		testPolicy(), Options{Mode: ledger.ModeDryRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if batch.Blocked != 1 {
		t.Errorf("blocked = %d, want 1", batch.Blocked)
	}
	if batch.Results[0].BlockReason != "superseded" {
		t.Errorf("reason = %q, want the original block reason", batch.Results[0].BlockReason)
	}
}

func TestCancellationStopsBeforeNextItem(t *testing.T) {
	engine := newTestEngine(t, platform.NewMockClient(), ledger.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := engine.Execute(ctx, "acc-1", []Item{testItem("cmp-1"), testItem("cmp-2")},
		testPolicy(), Options{Mode: ledger.ModeDryRun})
	if err == nil {
		t.Error("cancelled batch returned no error")
	}
	if len(batch.Results) != 0 {
		t.Errorf("results = %d, want 0 with pre-start cancellation", len(batch.Results))
	}
}

// =============================================================================
// Multi-Account Fan-Out
// =============================================================================

func TestExecuteAccounts(t *testing.T) {
	mock := platform.NewMockClient()
	store := ledger.NewMemoryStore()
	engine := newTestEngine(t, mock, store)

	itemB := testItem("cmp-b")
	itemB.Rec.AccountID = "acc-2"
	itemB.Feature.AccountID = "acc-2"

	batches := []AccountBatch{
		{AccountID: "acc-1", Items: []Item{testItem("cmp-a")}, Policy: testPolicy()},
		{AccountID: "acc-2", Items: []Item{itemB}, Policy: testPolicy()},
	}

	results, err := engine.ExecuteAccounts(context.Background(), batches,
		Options{Mode: ledger.ModeDryRun})
	if err != nil {
		t.Fatalf("ExecuteAccounts: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for i, res := range results {
		if res == nil || res.Successful != 1 {
			t.Errorf("batch %d = %+v, want 1 success", i, res)
		}
	}
}
