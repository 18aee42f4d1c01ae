package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/rules"
)

// SnapshotSource provides the current metric snapshot for an entity, or
// nil when no snapshot is available.
type SnapshotSource interface {
	Snapshot(ctx context.Context, accountID, entityID string) (*rules.FeatureContext, error)
}

// Monitor scans recent live changes for post-change KPI degradation and
// proposes reversals. A reversal is a regular recommendation restoring the
// entry's old value; it flows through guardrails and execution like any
// other change, so cooldown and caps still apply.
type Monitor struct {
	store  ledger.Store
	source SnapshotSource
	cfg    *config.RollbackConfig
	logger *slog.Logger
}

// NewMonitor creates a rollback monitor.
func NewMonitor(store ledger.Store, source SnapshotSource, cfg *config.RollbackConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:  store,
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "rollback.monitor"),
	}
}

// Scan examines the account's live succeeded changes aged between
// MinAgeDays and MaxAgeDays and returns reversal recommendations for
// entries whose KPI degraded beyond DegradationPct against the baseline
// captured at execution time. Entries without a baseline or without a
// current snapshot are skipped.
func (m *Monitor) Scan(ctx context.Context, accountID string) ([]*rules.Recommendation, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -m.cfg.MaxAgeDays)
	until := now.AddDate(0, 0, -m.cfg.MinAgeDays)

	entries, err := m.store.Query(ctx, &ledger.Query{
		AccountID: accountID,
		Mode:      ledger.ModeLive,
		Status:    ledger.StatusSucceeded,
		Since:     since,
		Until:     until,
		Limit:     500,
	})
	if err != nil {
		return nil, fmt.Errorf("query recent changes: %w", err)
	}

	var reversals []*rules.Recommendation
	seen := make(map[string]bool)

	for _, entry := range entries {
		// One reversal per (entity, lever); the most recent entry wins
		// since Query returns newest first.
		key := entry.EntityID + "|" + string(entry.Lever)
		if seen[key] {
			continue
		}
		seen[key] = true

		if len(entry.Baseline) == 0 {
			continue
		}
		// Already-reversed changes would flag themselves forever.
		if entry.RuleID == reversalRuleID(entry.Lever) {
			continue
		}

		fc, err := m.source.Snapshot(ctx, accountID, entry.EntityID)
		if err != nil {
			m.logger.Warn("snapshot unavailable, skipping entity",
				"entity_id", entry.EntityID, "error", err)
			continue
		}
		if fc == nil {
			continue
		}

		degraded, detail := m.degraded(entry, fc)
		if !degraded {
			continue
		}

		m.logger.Info("post-change degradation detected",
			"entity_id", entry.EntityID,
			"lever", string(entry.Lever),
			"rule_id", entry.RuleID,
			"detail", detail,
		)
		reversals = append(reversals, m.reversal(entry, fc, detail))
	}

	return reversals, nil
}

// degraded compares the configured KPI against the entry's baseline.
func (m *Monitor) degraded(entry *ledger.ChangeLogEntry, fc *rules.FeatureContext) (bool, string) {
	threshold := m.cfg.DegradationPct / 100

	switch m.cfg.KPI {
	case "roas":
		base, ok := entry.Baseline[rules.MetricROAS7d]
		if !ok || base <= 0 {
			return false, ""
		}
		current, ok := fc.Metric(rules.MetricROAS7d)
		if !ok {
			return false, ""
		}
		// ROAS degrades downward.
		if current < base*(1-threshold) {
			return true, fmt.Sprintf("roas %.2f fell more than %.0f%% below baseline %.2f",
				current, m.cfg.DegradationPct, base)
		}
	default: // cpa
		base, ok := entry.Baseline[rules.MetricCPA7d]
		if !ok || base <= 0 {
			return false, ""
		}
		current, ok := fc.Metric(rules.MetricCPA7d)
		if !ok {
			return false, ""
		}
		// CPA degrades upward.
		if current > base*(1+threshold) {
			return true, fmt.Sprintf("cpa %.2f rose more than %.0f%% above baseline %.2f",
				current, m.cfg.DegradationPct, base)
		}
	}
	return false, ""
}

// reversal builds the recommendation restoring the entry's old value.
func (m *Monitor) reversal(entry *ledger.ChangeLogEntry, fc *rules.FeatureContext, detail string) *rules.Recommendation {
	var changePct float64
	if entry.Lever != ledger.LeverStatus && entry.NewValue != 0 {
		changePct = (entry.OldValue - entry.NewValue) / entry.NewValue * 100
	}

	return &rules.Recommendation{
		ID:               fmt.Sprintf("rb-%s", entry.ID),
		RuleID:           reversalRuleID(entry.Lever),
		AccountID:        entry.AccountID,
		EntityType:       fc.EntityType,
		EntityID:         entry.EntityID,
		ActionType:       reversalAction(entry),
		Lever:            entry.Lever,
		CurrentValue:     entry.NewValue,
		RecommendedValue: entry.OldValue,
		ChangePct:        changePct,
		Confidence:       0.9,
		RiskTier:         rules.RiskMedium,
		Rationale:        "revert recent change: " + detail,
		Evidence: map[string]any{
			"original_rule":   entry.RuleID,
			"original_change": entry.ChangeDate.Format(ledger.DateLayout),
			"kpi":             m.cfg.KPI,
		},
		Priority: 5,
	}
}

func reversalRuleID(lever ledger.Lever) string {
	return "rollback_" + string(lever)
}

func reversalAction(entry *ledger.ChangeLogEntry) rules.ActionType {
	switch entry.Lever {
	case ledger.LeverBudget:
		if entry.OldValue > entry.NewValue {
			return rules.ActionBudgetIncrease
		}
		return rules.ActionBudgetDecrease
	case ledger.LeverBid:
		if entry.OldValue > entry.NewValue {
			return rules.ActionBidIncrease
		}
		return rules.ActionBidDecrease
	default:
		// Restoring a nonzero status re-enables the entity.
		if entry.OldValue > 0 {
			return rules.ActionResume
		}
		return rules.ActionPause
	}
}
