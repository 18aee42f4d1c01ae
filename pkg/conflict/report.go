package conflict

import (
	"time"

	"adpilot-hq/adpilot/pkg/rules"
)

// Report is the ranked recommendation report for one account run. It
// includes blocked recommendations with their reasons so the approval UI
// can show why a candidate was rejected, not just that it was.
type Report struct {
	// AccountID is the account the run evaluated.
	AccountID string `json:"account_id"`

	// SnapshotDate is the metric snapshot date.
	SnapshotDate time.Time `json:"snapshot_date"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// RunID identifies the pipeline run that produced the report.
	RunID string `json:"run_id"`

	// Total is the number of recommendations, blocked included.
	Total int `json:"total"`

	// Executable is the number of non-blocked, value-changing
	// recommendations ready for execution.
	Executable int `json:"executable"`

	// ByRiskTier counts executable recommendations per risk tier.
	ByRiskTier map[rules.RiskTier]int `json:"by_risk_tier"`

	// BlockedByReason counts blocked recommendations per reason.
	BlockedByReason map[string]int `json:"blocked_by_reason"`

	// Recommendations is the ranked list: executable first (by priority,
	// entity, rule), then blocked.
	Recommendations []*rules.Recommendation `json:"recommendations"`
}

// Executables returns the non-blocked, value-changing recommendations in
// ranked order.
func (r *Report) Executables() []*rules.Recommendation {
	var out []*rules.Recommendation
	for _, rec := range r.Recommendations {
		if rec.Actionable() {
			out = append(out, rec)
		}
	}
	return out
}
