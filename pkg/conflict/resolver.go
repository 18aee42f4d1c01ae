package conflict

import (
	"sort"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

// Superseding reasons set by the resolver.
const (
	ReasonSuperseded    = "superseded"
	ReasonLeverPriority = "lever priority"
)

// Resolve deduplicates competing recommendations and builds the ranked
// report.
//
// Within one (entity, lever) group exactly one recommendation survives: the
// one with the lowest priority value (lower = more urgent), ties broken by
// lexical rule ID. The rest are blocked with reason "superseded".
//
// Across levers for the same entity, the account's lever priority policy
// decides: the first configured lever with a surviving proposal wins and
// proposals on later levers are blocked with reason "lever priority".
// Temporal exclusivity against history is the one-lever guardrail's job;
// this stage only arbitrates proposals born in the same pass.
func Resolve(recs []*rules.Recommendation, policy *config.PolicyConfig) *Report {
	// Per-(entity, lever) dedupe.
	type groupKey struct {
		entityID string
		lever    ledger.Lever
	}
	groups := make(map[groupKey][]*rules.Recommendation)
	for _, rec := range recs {
		if !rec.Actionable() {
			continue
		}
		key := groupKey{rec.EntityID, rec.Lever}
		groups[key] = append(groups[key], rec)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		winner := group[0]
		for _, rec := range group[1:] {
			if rec.Priority < winner.Priority ||
				(rec.Priority == winner.Priority && rec.RuleID < winner.RuleID) {
				winner = rec
			}
		}
		for _, rec := range group {
			if rec != winner {
				rec.Block(ReasonSuperseded)
			}
		}
	}

	// Cross-lever arbitration per entity.
	byEntity := make(map[string][]*rules.Recommendation)
	for _, rec := range recs {
		if !rec.Actionable() {
			continue
		}
		byEntity[rec.EntityID] = append(byEntity[rec.EntityID], rec)
	}

	for _, proposals := range byEntity {
		if len(proposals) < 2 {
			continue
		}
		winner := proposals[0]
		for _, rec := range proposals[1:] {
			if leverRank(policy, rec.Lever) < leverRank(policy, winner.Lever) {
				winner = rec
			}
		}
		for _, rec := range proposals {
			if rec != winner {
				rec.Block(ReasonLeverPriority)
			}
		}
	}

	return buildReport(recs)
}

// leverRank returns the lever's position in the account's priority list.
// Unlisted levers rank last.
func leverRank(policy *config.PolicyConfig, lever ledger.Lever) int {
	priority := policy.LeverPriority
	if len(priority) == 0 {
		priority = config.DefaultLeverPriority
	}
	for i, l := range priority {
		if l == string(lever) {
			return i
		}
	}
	return len(priority)
}

// buildReport ranks the full recommendation set and computes summary counts.
func buildReport(recs []*rules.Recommendation) *Report {
	sorted := make([]*rules.Recommendation, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Blocked != b.Blocked {
			return !a.Blocked
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.RuleID < b.RuleID
	})

	report := &Report{
		Total:           len(sorted),
		ByRiskTier:      make(map[rules.RiskTier]int),
		BlockedByReason: make(map[string]int),
		Recommendations: sorted,
	}

	for _, rec := range sorted {
		if rec.Blocked {
			report.BlockedByReason[rec.BlockReason]++
			continue
		}
		if rec.Lever != "" {
			report.Executable++
			report.ByRiskTier[rec.RiskTier]++
		}
	}

	return report
}
