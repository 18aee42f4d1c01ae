package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adpilot-hq/adpilot/pkg/conflict"
	"adpilot-hq/adpilot/pkg/pipeline"
	"adpilot-hq/adpilot/pkg/rules"
)

var evaluateFlags struct {
	snapshots string
	account   string
	format    string
	output    string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Generate recommendation reports",
	Long: `Run rule evaluation, guardrail enforcement, and conflict resolution
over a snapshot file and print the ranked per-account reports. No changes
are made and nothing is written to the ledger.

Examples:
  # Evaluate all configured accounts
  adpilot evaluate --snapshots snapshots.json

  # One account, JSON output
  adpilot evaluate --snapshots snapshots.json --account acc-1 --format json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateFlags.snapshots, "snapshots", "", "snapshot file (JSON array of entity snapshots)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.account, "account", "", "restrict to one account ID")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.output, "output", "o", "", "output file (default: stdout)")
	evaluateCmd.MarkFlagRequired("snapshots")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snapshots, err := pipeline.LoadSnapshots(evaluateFlags.snapshots, a.cfg)
	if err != nil {
		return err
	}
	byAccount := groupByAccount(snapshots)

	var reports []*conflict.Report
	for _, account := range a.cfg.Accounts {
		if evaluateFlags.account != "" && account.ID != evaluateFlags.account {
			continue
		}
		accountSnapshots := byAccount[account.ID]
		if len(accountSnapshots) == 0 {
			continue
		}

		runner, err := a.runner(&account.Policy, false)
		if err != nil {
			return err
		}
		report, err := runner.Run(ctx, &account, accountSnapshots)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		fmt.Println("No snapshots matched the configured accounts.")
		return nil
	}
	return writeReports(reports, evaluateFlags.format, evaluateFlags.output)
}

// groupByAccount splits snapshots per account, preserving input order.
func groupByAccount(snapshots []*rules.FeatureContext) map[string][]*rules.FeatureContext {
	m := make(map[string][]*rules.FeatureContext)
	for _, fc := range snapshots {
		m[fc.AccountID] = append(m[fc.AccountID], fc)
	}
	return m
}

// writeReports renders reports as text or JSON.
func writeReports(reports []*conflict.Report, format, output string) error {
	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, report := range reports {
		fmt.Fprintf(out, "Account %s (run %s)\n", report.AccountID, report.RunID)
		fmt.Fprintf(out, "  %d recommendations, %d executable\n", report.Total, report.Executable)
		for reason, n := range report.BlockedByReason {
			fmt.Fprintf(out, "  blocked (%s): %d\n", reason, n)
		}
		fmt.Fprintln(out)
		for _, rec := range report.Recommendations {
			status := "ready"
			if rec.Blocked {
				status = "blocked: " + rec.BlockReason
			}
			fmt.Fprintf(out, "  [%s] %-20s %-16s %s\n", rec.RiskTier, rec.RuleID, rec.EntityID, status)
			if rec.Lever != "" {
				fmt.Fprintf(out, "      %s: %.2f -> %.2f (%+.1f%%), confidence %.2f\n",
					rec.Lever, rec.CurrentValue, rec.RecommendedValue, rec.ChangePct, rec.Confidence)
			}
			fmt.Fprintf(out, "      %s\n", rec.Rationale)
		}
		fmt.Fprintln(out)
	}
	return nil
}
