package conflict

import (
	"testing"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

func testPolicy() *config.PolicyConfig {
	return &config.PolicyConfig{
		LeverPriority: []string{"status", "budget", "bid"},
	}
}

func rec(ruleID, entityID string, lever ledger.Lever, priority int) *rules.Recommendation {
	return &rules.Recommendation{
		ID:       ruleID + "-" + entityID,
		RuleID:   ruleID,
		EntityID: entityID,
		Lever:    lever,
		Priority: priority,
	}
}

func TestSameLeverKeepsLowestPriority(t *testing.T) {
	urgent := rec("budget_scale_down", "cmp-1", ledger.LeverBudget, 20)
	later := rec("budget_scale_up", "cmp-1", ledger.LeverBudget, 30)

	report := Resolve([]*rules.Recommendation{later, urgent}, testPolicy())

	if urgent.Blocked {
		t.Errorf("lower-priority-value rec blocked: %s", urgent.BlockReason)
	}
	if !later.Blocked || later.BlockReason != ReasonSuperseded {
		t.Errorf("loser = blocked=%v reason=%q, want superseded", later.Blocked, later.BlockReason)
	}
	if report.Executable != 1 {
		t.Errorf("executable = %d, want 1", report.Executable)
	}
}

func TestPriorityTieBrokenByRuleID(t *testing.T) {
	a := rec("aaa_rule", "cmp-1", ledger.LeverBudget, 20)
	b := rec("bbb_rule", "cmp-1", ledger.LeverBudget, 20)

	Resolve([]*rules.Recommendation{b, a}, testPolicy())

	if a.Blocked {
		t.Error("lexically-first rule lost the tie")
	}
	if !b.Blocked {
		t.Error("lexically-second rule won the tie")
	}
}

func TestCrossLeverArbitrationFollowsPolicy(t *testing.T) {
	pause := rec("pause_bleeder", "cmp-1", ledger.LeverStatus, 10)
	budget := rec("budget_scale_down", "cmp-1", ledger.LeverBudget, 20)

	Resolve([]*rules.Recommendation{budget, pause}, testPolicy())

	if pause.Blocked {
		t.Errorf("status lever lost despite priority order: %s", pause.BlockReason)
	}
	if !budget.Blocked || budget.BlockReason != ReasonLeverPriority {
		t.Errorf("budget = blocked=%v reason=%q, want lever priority", budget.Blocked, budget.BlockReason)
	}
}

func TestCustomLeverPriority(t *testing.T) {
	policy := &config.PolicyConfig{LeverPriority: []string{"bid", "budget", "status"}}

	budget := rec("budget_scale_up", "cmp-1", ledger.LeverBudget, 30)
	bid := rec("bid_raise", "cmp-1", ledger.LeverBid, 35)

	Resolve([]*rules.Recommendation{budget, bid}, policy)

	if bid.Blocked {
		t.Errorf("bid lever lost under bid-first policy: %s", bid.BlockReason)
	}
	if !budget.Blocked {
		t.Error("budget lever won under bid-first policy")
	}
}

func TestDifferentEntitiesDoNotConflict(t *testing.T) {
	a := rec("budget_scale_up", "cmp-1", ledger.LeverBudget, 30)
	b := rec("budget_scale_up", "cmp-2", ledger.LeverBudget, 30)

	report := Resolve([]*rules.Recommendation{a, b}, testPolicy())

	if a.Blocked || b.Blocked {
		t.Error("recommendations on different entities conflicted")
	}
	if report.Executable != 2 {
		t.Errorf("executable = %d, want 2", report.Executable)
	}
}

func TestAlreadyBlockedRecsAreIgnored(t *testing.T) {
	blocked := rec("budget_scale_down", "cmp-1", ledger.LeverBudget, 20)
	blocked.Block("cooldown")
	open := rec("budget_scale_up", "cmp-1", ledger.LeverBudget, 30)

	Resolve([]*rules.Recommendation{blocked, open}, testPolicy())

	if open.Blocked {
		t.Errorf("open rec superseded by an already-blocked rec: %s", open.BlockReason)
	}
	if blocked.BlockReason != "cooldown" {
		t.Errorf("earlier block reason overwritten: %q", blocked.BlockReason)
	}
}

func TestReportRankingAndCounts(t *testing.T) {
	pause := rec("pause_bleeder", "cmp-2", ledger.LeverStatus, 10)
	pause.RiskTier = rules.RiskHigh
	up := rec("budget_scale_up", "cmp-1", ledger.LeverBudget, 30)
	up.RiskTier = rules.RiskMedium
	blocked := rec("bid_lower", "cmp-3", ledger.LeverBid, 25)
	blocked.Block("low confidence")
	info := &rules.Recommendation{RuleID: "review_ctr_drop", EntityID: "cmp-4", Priority: 40}

	report := Resolve([]*rules.Recommendation{up, blocked, info, pause}, testPolicy())

	if report.Total != 4 {
		t.Errorf("total = %d, want 4", report.Total)
	}
	if report.Executable != 2 {
		t.Errorf("executable = %d, want 2 (info recs are not executable)", report.Executable)
	}
	if report.BlockedByReason["low confidence"] != 1 {
		t.Errorf("blocked by low confidence = %d, want 1", report.BlockedByReason["low confidence"])
	}
	if report.ByRiskTier[rules.RiskHigh] != 1 || report.ByRiskTier[rules.RiskMedium] != 1 {
		t.Errorf("risk tier counts = %v", report.ByRiskTier)
	}

	// Non-blocked first, ordered by priority.
	if report.Recommendations[0].RuleID != "pause_bleeder" {
		t.Errorf("first ranked = %s, want pause_bleeder", report.Recommendations[0].RuleID)
	}
	last := report.Recommendations[len(report.Recommendations)-1]
	if !last.Blocked {
		t.Errorf("last ranked = %s, want a blocked rec", last.RuleID)
	}

	execs := report.Executables()
	if len(execs) != 2 {
		t.Errorf("Executables() = %d, want 2", len(execs))
	}
}
