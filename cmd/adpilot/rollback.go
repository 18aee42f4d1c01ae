package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/executor"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/pipeline"
	"adpilot-hq/adpilot/pkg/rollback"
	"adpilot-hq/adpilot/pkg/rules"
)

var rollbackFlags struct {
	snapshots string
	account   string
	dryRun    bool
	live      bool
	yes       bool
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Monitor executed changes for degradation",
	Long: `Scan recent live changes against their execution-time KPI baselines
and propose reversals where performance degraded.

Reversals are recommendations like any other. With --dry-run or --live
they are handed to the execution engine, where the guardrail pre-flight
revalidates each one against the current ledger state; without either
flag the scan only reports.

Examples:
  adpilot rollback scan --snapshots snapshots.json
  adpilot rollback scan --snapshots snapshots.json --dry-run
  adpilot rollback scan --snapshots snapshots.json --live --yes
  adpilot rollback watch --snapshots snapshots.json`,
}

var rollbackScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for degraded changes",
	RunE:  runRollbackScan,
}

var rollbackWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled scans until interrupted",
	Long: `Run the rollback monitor on its configured cron schedule. The snapshot
file is re-read when it changes, and configuration edits are picked up
without a restart. Stop with SIGINT or SIGTERM.`,
	RunE: runRollbackWatch,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.AddCommand(rollbackScanCmd)
	rollbackCmd.AddCommand(rollbackWatchCmd)

	for _, cmd := range []*cobra.Command{rollbackScanCmd, rollbackWatchCmd} {
		cmd.Flags().StringVar(&rollbackFlags.snapshots, "snapshots", "", "snapshot file with current metrics")
		cmd.MarkFlagRequired("snapshots")
	}
	rollbackScanCmd.Flags().StringVar(&rollbackFlags.account, "account", "", "restrict to one account ID")
	rollbackScanCmd.Flags().BoolVar(&rollbackFlags.dryRun, "dry-run", false, "simulate the reversals without calling the platform")
	rollbackScanCmd.Flags().BoolVar(&rollbackFlags.live, "live", false, "apply the reversals for real")
	rollbackScanCmd.Flags().BoolVar(&rollbackFlags.yes, "yes", false, "confirm live execution")
	rollbackScanCmd.MarkFlagsMutuallyExclusive("dry-run", "live")
}

func runRollbackScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Rollback.Enabled {
		fmt.Println("Rollback monitoring is disabled in the configuration.")
		return nil
	}

	snapshots, err := pipeline.LoadSnapshots(rollbackFlags.snapshots, a.cfg)
	if err != nil {
		return err
	}
	index := pipeline.NewSnapshotIndex(snapshots)
	monitor := rollback.NewMonitor(a.store, index, &a.cfg.Rollback, a.logger.Slog())

	opts := executor.Options{Mode: ledger.ModeDryRun, Confirmed: rollbackFlags.yes}
	if rollbackFlags.live {
		opts.Mode = ledger.ModeLive
	}
	executing := rollbackFlags.dryRun || rollbackFlags.live

	total := 0
	failures := 0
	for _, account := range a.cfg.Accounts {
		if rollbackFlags.account != "" && account.ID != rollbackFlags.account {
			continue
		}

		reversals, err := monitor.Scan(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}
		if len(reversals) == 0 {
			continue
		}

		fmt.Printf("Account %s: %d reversal(s) proposed\n", account.ID, len(reversals))
		for _, rec := range reversals {
			fmt.Printf("  %-16s %-7s %.2f -> %.2f\n",
				rec.EntityID, rec.Lever, rec.CurrentValue, rec.RecommendedValue)
			fmt.Printf("      %s\n", rec.Rationale)
		}
		total += len(reversals)

		if executing {
			exec, err := a.executionEngine(&account.Policy)
			if err != nil {
				return err
			}
			items := make([]executor.Item, 0, len(reversals))
			for _, rec := range reversals {
				fc, err := index.Snapshot(ctx, account.ID, rec.EntityID)
				if err != nil {
					return fmt.Errorf("account %s: %w", account.ID, err)
				}
				items = append(items, executor.Item{Rec: rec, Feature: fc})
			}

			batch, err := exec.Execute(ctx, account.ID, items, &account.Policy, opts)
			if err != nil {
				return fmt.Errorf("account %s: %w", account.ID, err)
			}
			fmt.Printf("  executed (%s): %d succeeded, %d failed, %d blocked\n",
				opts.Mode, batch.Successful, batch.Failed, batch.Blocked)
			for _, res := range batch.Results {
				switch res.State {
				case executor.StateSucceeded:
					fmt.Printf("  ok      %-20s %-16s %.2f -> %.2f (attempts: %d)\n",
						res.Rec.RuleID, res.Rec.EntityID, res.OldValue, res.NewValue, res.Attempts)
				case executor.StateBlocked:
					fmt.Printf("  blocked %-20s %-16s %s\n",
						res.Rec.RuleID, res.Rec.EntityID, res.BlockReason)
				case executor.StateFailed:
					fmt.Printf("  FAILED  %-20s %-16s %s\n",
						res.Rec.RuleID, res.Rec.EntityID, res.Error)
				}
			}
			failures += batch.Failed
		}
		fmt.Println()
	}

	if total == 0 {
		fmt.Println("No degraded changes found.")
	}
	if failures > 0 {
		return fmt.Errorf("%d reversal execution(s) failed", failures)
	}
	return nil
}

func runRollbackWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Rollback.Enabled {
		return fmt.Errorf("rollback monitoring is disabled in the configuration")
	}

	source := pipeline.NewFileSource(rollbackFlags.snapshots, a.cfg)
	monitor := rollback.NewMonitor(a.store, source, &a.cfg.Rollback, a.logger.Slog())

	accounts := make([]string, 0, len(a.cfg.Accounts))
	for _, account := range a.cfg.Accounts {
		accounts = append(accounts, account.ID)
	}

	handler := func(ctx context.Context, accountID string, reversals []*rules.Recommendation) {
		for _, rec := range reversals {
			a.logger.Warn("reversal proposed",
				"account_id", accountID,
				"entity_id", rec.EntityID,
				"lever", rec.Lever,
				"current", rec.CurrentValue,
				"restore", rec.RecommendedValue,
			)
		}
	}

	scheduler, err := rollback.NewScheduler(monitor, accounts, handler, a.logger.Slog())
	if err != nil {
		return fmt.Errorf("schedule %q: %w", a.cfg.Rollback.Schedule, err)
	}

	// Pick up policy edits (spend caps in particular) without a restart.
	watcher, err := config.NewWatcher(cfgFile, func(cfg *config.Config) {
		a.applyConfig(cfg)
	}, a.logger.Slog())
	if err != nil {
		return err
	}
	defer watcher.Close()

	scheduler.Start()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}
