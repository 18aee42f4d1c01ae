package rules

import (
	"fmt"
	"math"
)

// Trigger thresholds for the built-in catalog. ROAS and CPA triggers use a
// ±20% band around the account target.
const (
	roasUpperBand = 1.2
	roasLowerBand = 0.8
	cpaUpperBand  = 1.2
	cpaLowerBand  = 0.8

	// bleederCostMultiple pauses an entity once its 30-day spend exceeds
	// this multiple of the target CPA with zero conversions to show for it.
	bleederCostMultiple = 2.0
)

// DefaultRegistry builds the built-in rule catalog. The catalog is
// constructed statically so every rule is type-checked at compile time.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(&Rule{
		ID:         "pause_bleeder",
		Name:       "Pause zero-conversion spender",
		ActionType: ActionPause,
		RiskTier:   RiskHigh,
		Priority:   10,
		Predicate: func(fc *FeatureContext) bool {
			if !fc.Enabled {
				return false
			}
			conversions, ok := fc.Metric(MetricConversions30d)
			if !ok || conversions > 0 {
				return false
			}
			cost, ok := fc.Metric(MetricCost30d)
			if !ok {
				return false
			}
			targetCPA, ok := fc.Metric(MetricTargetCPA)
			if !ok || targetCPA <= 0 {
				return false
			}
			return cost >= bleederCostMultiple*targetCPA
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			// Status lever: 1 = enabled, 0 = paused.
			return 1, 0, true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			cost, _ := fc.Metric(MetricCost30d)
			return fmt.Sprintf("spent %.2f over 30 days with zero conversions; pause to stop the bleed", cost)
		},
		Confidence: func(fc *FeatureContext) float64 {
			// Zero conversions on meaningful spend is strong evidence.
			cost, _ := fc.Metric(MetricCost30d)
			targetCPA, _ := fc.Metric(MetricTargetCPA)
			if targetCPA <= 0 {
				return 0
			}
			return clamp01(0.5 + cost/(10*targetCPA))
		},
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricCost30d, MetricConversions30d, MetricTargetCPA)
		},
	})

	r.MustRegister(&Rule{
		ID:         "budget_scale_down",
		Name:       "Scale down underperforming budget",
		ActionType: ActionBudgetDecrease,
		RiskTier:   RiskMedium,
		Priority:   20,
		Predicate: func(fc *FeatureContext) bool {
			if fc.CurrentBudget <= 0 {
				return false
			}
			roas, ok := fc.Metric(MetricROAS7d)
			if !ok {
				return false
			}
			target, ok := fc.Metric(MetricTargetROAS)
			if !ok || target <= 0 {
				return false
			}
			cost, ok := fc.Metric(MetricCost7d)
			if !ok || cost <= 0 {
				return false
			}
			return roas < roasLowerBand*target
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return fc.CurrentBudget, round2(fc.CurrentBudget * (1 - fc.Policy.Step())), true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			roas, _ := fc.Metric(MetricROAS7d)
			target, _ := fc.Metric(MetricTargetROAS)
			return fmt.Sprintf("7-day ROAS %.2f is below %.0f%% of target %.2f; reduce budget %.2f -> %.2f",
				roas, roasLowerBand*100, target, current, recommended)
		},
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricROAS7d, MetricTargetROAS, MetricCost7d, MetricClicks7d)
		},
	})

	r.MustRegister(&Rule{
		ID:         "bid_lower",
		Name:       "Lower bid on high CPA",
		ActionType: ActionBidDecrease,
		RiskTier:   RiskLow,
		Priority:   25,
		Predicate: func(fc *FeatureContext) bool {
			if fc.CurrentBid <= 0 {
				return false
			}
			cpa, ok := fc.Metric(MetricCPA30d)
			if !ok {
				return false
			}
			target, ok := fc.Metric(MetricTargetCPA)
			if !ok || target <= 0 {
				return false
			}
			return cpa >= cpaUpperBand*target
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return fc.CurrentBid, round2(fc.CurrentBid * (1 - fc.Policy.Step())), true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			cpa, _ := fc.Metric(MetricCPA30d)
			target, _ := fc.Metric(MetricTargetCPA)
			return fmt.Sprintf("30-day CPA %.2f is at least %.0f%% above target %.2f; lower bid %.2f -> %.2f",
				cpa, (cpaUpperBand-1)*100, target, current, recommended)
		},
		Confidence: conversionConfidence,
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricCPA30d, MetricTargetCPA, MetricConversions30d)
		},
	})

	r.MustRegister(&Rule{
		ID:         "budget_scale_up",
		Name:       "Scale up outperforming budget",
		ActionType: ActionBudgetIncrease,
		RiskTier:   RiskMedium,
		Priority:   30,
		Predicate: func(fc *FeatureContext) bool {
			if fc.CurrentBudget <= 0 {
				return false
			}
			roas, ok := fc.Metric(MetricROAS7d)
			if !ok {
				return false
			}
			target, ok := fc.Metric(MetricTargetROAS)
			if !ok || target <= 0 {
				return false
			}
			return roas >= roasUpperBand*target
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return fc.CurrentBudget, round2(fc.CurrentBudget * (1 + fc.Policy.Step())), true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			roas, _ := fc.Metric(MetricROAS7d)
			target, _ := fc.Metric(MetricTargetROAS)
			return fmt.Sprintf("7-day ROAS %.2f is at least %.0f%% of target %.2f; increase budget %.2f -> %.2f",
				roas, roasUpperBand*100, target, current, recommended)
		},
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricROAS7d, MetricTargetROAS, MetricClicks7d, MetricConversions7d)
		},
	})

	r.MustRegister(&Rule{
		ID:         "bid_raise",
		Name:       "Raise bid on efficient CPA",
		ActionType: ActionBidIncrease,
		RiskTier:   RiskMedium,
		Priority:   35,
		Predicate: func(fc *FeatureContext) bool {
			if fc.CurrentBid <= 0 {
				return false
			}
			cpa, ok := fc.Metric(MetricCPA30d)
			if !ok {
				return false
			}
			target, ok := fc.Metric(MetricTargetCPA)
			if !ok || target <= 0 {
				return false
			}
			conversions, ok := fc.Metric(MetricConversions30d)
			if !ok || conversions <= 0 {
				return false
			}
			return cpa <= cpaLowerBand*target
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return fc.CurrentBid, round2(fc.CurrentBid * (1 + fc.Policy.Step())), true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			cpa, _ := fc.Metric(MetricCPA30d)
			target, _ := fc.Metric(MetricTargetCPA)
			return fmt.Sprintf("30-day CPA %.2f is at most %.0f%% of target %.2f; raise bid %.2f -> %.2f",
				cpa, cpaLowerBand*100, target, current, recommended)
		},
		Confidence: conversionConfidence,
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricCPA30d, MetricTargetCPA, MetricConversions30d)
		},
	})

	r.MustRegister(&Rule{
		ID:         "review_ctr_drop",
		Name:       "Review CTR drop",
		ActionType: ActionReview,
		RiskTier:   RiskLow,
		Priority:   40,
		Predicate: func(fc *FeatureContext) bool {
			return fc.Flag(FlagCTRDrop)
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return 0, 0, true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			return "click-through rate dropped sharply versus the trailing window; review creatives and search terms"
		},
		Confidence: func(fc *FeatureContext) float64 { return 1 },
		Evidence: func(fc *FeatureContext) map[string]any {
			return metricEvidence(fc, MetricCTR7d, MetricClicks7d, MetricImpressions7d)
		},
	})

	r.MustRegister(&Rule{
		ID:         "healthy_no_action",
		Name:       "Healthy, no action",
		ActionType: ActionNoAction,
		RiskTier:   RiskLow,
		Priority:   100,
		Predicate: func(fc *FeatureContext) bool {
			return true
		},
		Action: func(fc *FeatureContext) (float64, float64, bool) {
			return 0, 0, true
		},
		Rationale: func(fc *FeatureContext, current, recommended float64) string {
			return "no rule triggered; entity is performing within its configured bands"
		},
		Confidence: func(fc *FeatureContext) float64 { return 1 },
	})

	return r
}

// volumeConfidence is the default confidence model: click volume over the
// trailing week, floored so that entities near the data-sufficiency
// threshold still clear a 0.5 confidence bar.
func volumeConfidence(fc *FeatureContext) float64 {
	clicks, ok := fc.Metric(MetricClicks7d)
	if !ok {
		return 0
	}
	return clamp01(0.3 + clicks/100)
}

// conversionConfidence scales confidence with 30-day conversion volume,
// used by bid rules which key off CPA.
func conversionConfidence(fc *FeatureContext) float64 {
	conversions, ok := fc.Metric(MetricConversions30d)
	if !ok {
		return 0
	}
	return clamp01(0.3 + conversions/50)
}

// metricEvidence collects the named metrics that are present.
func metricEvidence(fc *FeatureContext, names ...string) map[string]any {
	ev := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := fc.Metric(name); ok {
			ev[name] = v
		}
	}
	return ev
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round2 rounds to two decimal places, the platform's value granularity.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
