package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adpilot-hq/adpilot/pkg/executor"
	"adpilot-hq/adpilot/pkg/ledger"
	"adpilot-hq/adpilot/pkg/pipeline"
)

var executeFlags struct {
	snapshots string
	account   string
	dryRun    bool
	live      bool
	yes       bool
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute approved recommendations",
	Long: `Run the full pipeline and execute the resulting non-blocked
recommendations.

Dry-run mode simulates every change and records dry_run ledger entries
without touching the platform. Live mode applies changes for real; on
accounts whose automation mode is "insights" or "suggest" it additionally
requires --yes as the explicit human approval.

Examples:
  # Simulate
  adpilot execute --snapshots snapshots.json --dry-run

  # Live, explicitly approved
  adpilot execute --snapshots snapshots.json --live --yes`,
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringVar(&executeFlags.snapshots, "snapshots", "", "snapshot file (JSON array of entity snapshots)")
	executeCmd.Flags().StringVar(&executeFlags.account, "account", "", "restrict to one account ID")
	executeCmd.Flags().BoolVar(&executeFlags.dryRun, "dry-run", false, "simulate without calling the platform")
	executeCmd.Flags().BoolVar(&executeFlags.live, "live", false, "apply changes for real")
	executeCmd.Flags().BoolVar(&executeFlags.yes, "yes", false, "confirm live execution")
	executeCmd.MarkFlagRequired("snapshots")
	executeCmd.MarkFlagsMutuallyExclusive("dry-run", "live")
}

func runExecute(cmd *cobra.Command, args []string) error {
	if !executeFlags.dryRun && !executeFlags.live {
		return fmt.Errorf("one of --dry-run or --live is required")
	}

	opts := executor.Options{Mode: ledger.ModeDryRun, Confirmed: executeFlags.yes}
	if executeFlags.live {
		opts.Mode = ledger.ModeLive
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snapshots, err := pipeline.LoadSnapshots(executeFlags.snapshots, a.cfg)
	if err != nil {
		return err
	}
	byAccount := groupByAccount(snapshots)

	failures := 0
	for _, account := range a.cfg.Accounts {
		if executeFlags.account != "" && account.ID != executeFlags.account {
			continue
		}
		accountSnapshots := byAccount[account.ID]
		if len(accountSnapshots) == 0 {
			continue
		}

		runner, err := a.runner(&account.Policy, true)
		if err != nil {
			return err
		}
		report, batch, err := runner.RunAndExecute(ctx, &account, accountSnapshots, opts)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}

		fmt.Printf("Account %s (run %s, %s)\n", account.ID, report.RunID, opts.Mode)
		fmt.Printf("  executed: %d succeeded, %d failed, %d blocked\n",
			batch.Successful, batch.Failed, batch.Blocked)
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
		fmt.Println()

		failures += batch.Failed
	}

	if failures > 0 {
		return fmt.Errorf("%d execution(s) failed", failures)
	}
	return nil
}
