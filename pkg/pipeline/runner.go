package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"adpilot-hq/adpilot/pkg/conflict"
	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/executor"
	"adpilot-hq/adpilot/pkg/guardrails"
	"adpilot-hq/adpilot/pkg/rules"
	"adpilot-hq/adpilot/pkg/spend"
	"adpilot-hq/adpilot/pkg/telemetry/metrics"
)

// Runner wires the evaluation stages into one pass:
// evaluate -> guardrails -> conflict resolution -> report, and optionally
// hands the report's executables to the execution engine.
type Runner struct {
	evaluator  *rules.Evaluator
	guardrails *guardrails.Engine
	exec       *executor.Engine
	tracker    *spend.Tracker
	collector  *metrics.Collector
	logger     *slog.Logger
}

// NewRunner creates a pipeline runner. exec may be nil for report-only
// runs; collector may be nil to disable metrics.
func NewRunner(evaluator *rules.Evaluator, ge *guardrails.Engine, exec *executor.Engine, tracker *spend.Tracker, collector *metrics.Collector, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		evaluator:  evaluator,
		guardrails: ge,
		exec:       exec,
		tracker:    tracker,
		collector:  collector,
		logger:     logger.With("component", "pipeline.runner"),
	}
}

// Run produces one account's recommendation report from its snapshots.
// Snapshots must all belong to the given account.
func (r *Runner) Run(ctx context.Context, account *config.AccountConfig, snapshots []*rules.FeatureContext) (*conflict.Report, error) {
	started := time.Now()
	runID := uuid.NewString()

	for _, fc := range snapshots {
		if fc.AccountID != account.ID {
			return nil, fmt.Errorf("snapshot for entity %s belongs to account %s, not %s",
				fc.EntityID, fc.AccountID, account.ID)
		}
	}

	// Feed observed spend into the pacing tracker before guardrails run so
	// the spend-pacing check sees today's spend. Observations are
	// idempotent per (entity, day), so re-running on the same snapshots
	// does not move pacing.
	if r.tracker != nil {
		r.tracker.Configure(account.ID, spend.Caps{
			Daily:   account.Policy.DailySpendCap,
			Monthly: account.Policy.MonthlySpendCap,
		})
		for _, fc := range snapshots {
			if cost, ok := fc.Metric(rules.MetricCost1d); ok && cost > 0 {
				if err := r.tracker.Record(ctx, account.ID, fc.EntityID, cost, fc.SnapshotDate); err != nil {
					r.logger.Warn("spend record failed", "entity_id", fc.EntityID, "error", err)
				}
			}
		}
	}

	recs, err := r.evaluator.EvaluateAll(ctx, snapshots)
	if err != nil {
		return nil, err
	}

	items := make([]guardrails.Item, 0, len(recs))
	features := indexFeatures(snapshots)
	for _, rec := range recs {
		items = append(items, guardrails.Item{Rec: rec, Feature: features[rec.EntityID]})
	}
	r.guardrails.Apply(ctx, items, &account.Policy)

	report := conflict.Resolve(recs, &account.Policy)
	report.AccountID = account.ID
	report.RunID = runID
	report.GeneratedAt = time.Now().UTC()
	if len(snapshots) > 0 {
		report.SnapshotDate = snapshots[0].SnapshotDate
	}

	r.observe(report, started)
	r.logger.Info("pipeline run complete",
		"account_id", account.ID,
		"run_id", runID,
		"entities", len(snapshots),
		"recommendations", report.Total,
		"executable", report.Executable,
	)
	return report, nil
}

// RunAndExecute produces the report and executes its executables under the
// given options. The account's automation mode still gates live execution.
func (r *Runner) RunAndExecute(ctx context.Context, account *config.AccountConfig, snapshots []*rules.FeatureContext, opts executor.Options) (*conflict.Report, *executor.BatchResult, error) {
	if r.exec == nil {
		return nil, nil, fmt.Errorf("runner has no execution engine")
	}

	report, err := r.Run(ctx, account, snapshots)
	if err != nil {
		return nil, nil, err
	}

	features := indexFeatures(snapshots)
	var items []executor.Item
	for _, rec := range report.Executables() {
		items = append(items, executor.Item{Rec: rec, Feature: features[rec.EntityID]})
	}

	batch, err := r.exec.Execute(ctx, account.ID, items, &account.Policy, opts)
	if err != nil {
		return report, batch, err
	}

	if r.collector != nil && batch != nil {
		for _, res := range batch.Results {
			r.collector.RecordExecution(string(batch.Mode), string(res.State))
			if res.Attempts > 1 {
				r.collector.RecordRetries(res.Attempts - 1)
			}
			if res.Entry != nil {
				r.collector.RecordLedgerWrite(string(res.Entry.ExecutionMode))
			}
		}
	}

	return report, batch, nil
}

func (r *Runner) observe(report *conflict.Report, started time.Time) {
	if r.collector == nil {
		return
	}
	for _, rec := range report.Recommendations {
		r.collector.RecordRecommendation(rec.RuleID, string(rec.ActionType))
		if rec.Blocked {
			r.collector.RecordBlocked(rec.BlockReason)
		}
	}
	r.collector.ObserveRunDuration(time.Since(started))
}

// indexFeatures maps entity ID to snapshot. One snapshot per entity per
// run is an ingestion invariant.
func indexFeatures(snapshots []*rules.FeatureContext) map[string]*rules.FeatureContext {
	m := make(map[string]*rules.FeatureContext, len(snapshots))
	for _, fc := range snapshots {
		m[fc.EntityID] = fc
	}
	return m
}
