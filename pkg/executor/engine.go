package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/guardrails"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/platform"
	"adpilot-hq/adpilot/pkg/rules"
)

// Options controls one execution batch.
type Options struct {
	// Mode selects dry-run simulation or live execution.
	Mode ledger.ExecutionMode

	// Confirmed marks that a human explicitly approved live execution.
	// Required for live mode on accounts whose automation mode does not
	// allow unattended execution.
	Confirmed bool
}

// Engine executes approved recommendations against the platform, with
// pre-flight guardrail revalidation, bounded retries on transient
// failures, and an append-only ledger write after each confirmed outcome.
//
// Items within one account execute sequentially so each item's guardrail
// pre-flight sees the ledger entries written by the items before it.
type Engine struct {
	client     platform.Client
	store      ledger.Store
	guardrails *guardrails.Engine
	cfg        *config.ExecutorConfig
	logger     *slog.Logger
}

// NewEngine creates an execution engine.
func NewEngine(client platform.Client, store ledger.Store, ge *guardrails.Engine, cfg *config.ExecutorConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:     client,
		store:      store,
		guardrails: ge,
		cfg:        cfg,
		logger:     logger.With("component", "executor.engine"),
	}
}

// Execute runs one account's batch. Blocked recommendations are skipped
// with their reason preserved; the rest are revalidated, then applied (or
// simulated in dry-run mode). Context cancellation stops the batch before
// the next item; an item already executing always runs to its terminal
// state so no platform change goes unrecorded.
func (e *Engine) Execute(ctx context.Context, accountID string, items []Item, policy *config.PolicyConfig, opts Options) (*BatchResult, error) {
	batch := &BatchResult{
		AccountID: accountID,
		Mode:      opts.Mode,
		StartedAt: time.Now().UTC(),
		Total:     len(items),
	}

	if opts.Mode == ledger.ModeLive && !policy.AutomationMode.AllowsUnattended() && !opts.Confirmed {
		return nil, fmt.Errorf("account %s: automation mode %q requires explicit confirmation for live execution",
			accountID, policy.AutomationMode)
	}
	if opts.Mode == ledger.ModeLive && policy.AutomationMode == config.ModeInsights {
		return nil, fmt.Errorf("account %s: automation mode %q never permits live execution",
			accountID, policy.AutomationMode)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			batch.FinishedAt = time.Now().UTC()
			return batch, err
		}
		result := e.executeItem(ctx, item, policy, opts)
		batch.Results = append(batch.Results, result)
		switch result.State {
		case StateSucceeded:
			batch.Successful++
		case StateBlocked:
			batch.Blocked++
		case StateFailed:
			batch.Failed++
		}
	}

	batch.FinishedAt = time.Now().UTC()
	e.logger.Info("execution batch finished",
		"account_id", accountID,
		"mode", string(opts.Mode),
		"total", batch.Total,
		"successful", batch.Successful,
		"failed", batch.Failed,
		"blocked", batch.Blocked,
	)
	return batch, nil
}

// executeItem drives one item to its terminal state.
func (e *Engine) executeItem(ctx context.Context, item Item, policy *config.PolicyConfig, opts Options) *ItemResult {
	rec := item.Rec
	result := &ItemResult{Rec: rec, State: StatePending}

	if rec.Blocked {
		result.State = StateBlocked
		result.BlockReason = rec.BlockReason
		return result
	}
	if rec.Lever == "" {
		result.State = StateBlocked
		result.BlockReason = "informational recommendation"
		return result
	}

	// Pre-flight: guardrails against the latest ledger state. Report-time
	// approval can be stale by the time execution runs.
	result.State = StateValidating
	decision := e.guardrails.Check(ctx, rec, item.Feature, policy)
	if !decision.Allowed {
		result.State = StateBlocked
		result.BlockReason = decision.Reason
		e.logger.Info("recommendation blocked at pre-flight",
			"entity_id", rec.EntityID,
			"rule_id", rec.RuleID,
			"reason", decision.Reason,
		)
		return result
	}

	if opts.Mode == ledger.ModeLive && policy.AutomationMode == config.ModeAutoLowRisk &&
		!opts.Confirmed && rec.RiskTier != rules.RiskLow {
		result.State = StateBlocked
		result.BlockReason = "requires approval"
		return result
	}

	if opts.Mode == ledger.ModeDryRun {
		return e.simulate(ctx, item, result)
	}
	return e.apply(ctx, item, result)
}

// simulate synthesizes a successful outcome without calling the platform
// and records a dry_run ledger entry for audit.
func (e *Engine) simulate(ctx context.Context, item Item, result *ItemResult) *ItemResult {
	rec := item.Rec
	result.State = StateSucceeded
	result.OldValue = rec.CurrentValue
	result.NewValue = rec.RecommendedValue

	entry := e.buildEntry(item, rec.CurrentValue, rec.RecommendedValue, ledger.ModeDryRun, ledger.StatusSucceeded)
	if err := e.store.Record(ctx, entry); err != nil {
		e.logger.Error("dry-run ledger write failed",
			"entity_id", rec.EntityID,
			"rule_id", rec.RuleID,
			"error", err,
		)
		result.State = StateFailed
		result.Error = err.Error()
		return result
	}
	result.Entry = entry
	return result
}

// apply submits the change to the platform with bounded retries, then
// records the confirmed outcome.
func (e *Engine) apply(ctx context.Context, item Item, result *ItemResult) *ItemResult {
	rec := item.Rec
	result.State = StateExecuting

	req := &platform.ChangeRequest{
		AccountID: rec.AccountID,
		EntityID:  rec.EntityID,
		Lever:     rec.Lever,
		NewValue:  rec.RecommendedValue,
	}

	operation := func() (*platform.ChangeResult, error) {
		result.Attempts++
		res, err := e.client.Apply(ctx, req)
		if err != nil {
			if platform.IsPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			e.logger.Warn("platform call failed, will retry",
				"entity_id", rec.EntityID,
				"attempt", result.Attempts,
				"error", err,
			)
			return nil, err
		}
		return res, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.cfg.InitialBackoff
	expo.MaxInterval = e.cfg.MaxBackoff

	maxAttempts := e.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(maxAttempts)),
	)
	if err != nil {
		result.State = StateFailed
		result.Error = err.Error()
		e.logger.Error("execution failed",
			"entity_id", rec.EntityID,
			"rule_id", rec.RuleID,
			"attempts", result.Attempts,
			"error", err,
		)
		// Failed attempts never reach the platform's committed state, so
		// nothing is written to the ledger.
		return result
	}

	result.State = StateSucceeded
	result.OldValue = res.OldValue
	result.NewValue = res.NewValue

	entry := e.buildEntry(item, res.OldValue, res.NewValue, ledger.ModeLive, ledger.StatusSucceeded)
	if err := e.store.Record(ctx, entry); err != nil {
		// The platform change is committed; surface the audit gap loudly
		// but keep the success state.
		e.logger.Error("ledger write failed after confirmed platform change",
			"entity_id", rec.EntityID,
			"rule_id", rec.RuleID,
			"error", err,
		)
		result.Error = fmt.Sprintf("change applied but ledger write failed: %v", err)
		return result
	}
	result.Entry = entry

	e.logger.Info("change applied",
		"entity_id", rec.EntityID,
		"rule_id", rec.RuleID,
		"lever", string(rec.Lever),
		"old_value", res.OldValue,
		"new_value", res.NewValue,
		"attempts", result.Attempts,
	)
	return result
}

// buildEntry constructs the ledger entry for a terminal outcome.
func (e *Engine) buildEntry(item Item, oldValue, newValue float64, mode ledger.ExecutionMode, status ledger.Status) *ledger.ChangeLogEntry {
	rec := item.Rec

	baseline := map[string]float64{}
	if item.Feature != nil {
		for _, metric := range []string{rules.MetricCPA7d, rules.MetricROAS7d} {
			if v, ok := item.Feature.Metrics[metric]; ok {
				baseline[metric] = v
			}
		}
	}
	if len(baseline) == 0 {
		baseline = nil
	}

	changeDate := time.Now().UTC().Truncate(24 * time.Hour)
	if item.Feature != nil && !item.Feature.SnapshotDate.IsZero() {
		changeDate = item.Feature.SnapshotDate.UTC().Truncate(24 * time.Hour)
	}

	return &ledger.ChangeLogEntry{
		ID:            uuid.NewString(),
		AccountID:     rec.AccountID,
		EntityID:      rec.EntityID,
		Lever:         rec.Lever,
		ChangeDate:    changeDate,
		OldValue:      oldValue,
		NewValue:      newValue,
		ChangePct:     rec.ChangePct,
		RuleID:        rec.RuleID,
		RiskTier:      string(rec.RiskTier),
		ExecutionMode: mode,
		Status:        status,
		ExecutedAt:    time.Now().UTC(),
		Baseline:      baseline,
	}
}

// AccountBatch is one account's items with its policy.
type AccountBatch struct {
	AccountID string
	Items     []Item
	Policy    *config.PolicyConfig
}

// ExecuteAccounts runs batches for multiple accounts concurrently, bounded
// by AccountConcurrency. Items within each account remain sequential.
func (e *Engine) ExecuteAccounts(ctx context.Context, batches []AccountBatch, opts Options) ([]*BatchResult, error) {
	results := make([]*BatchResult, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	concurrency := e.cfg.AccountConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			res, err := e.Execute(ctx, batch.AccountID, batch.Items, batch.Policy, opts)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
