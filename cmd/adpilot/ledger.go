package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"adpilot-hq/adpilot/pkg/ledger"
)

var ledgerFlags struct {
	account string
	entity  string
	lever   string
	mode    string
	rule    string
	since   string
	until   string
	limit   int
	offset  int
	format  string
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the change ledger",
	Long: `Query the append-only change ledger for audit and debugging.

Examples:
  # Recent changes for one account
  adpilot ledger query --account acc-1 --limit 50

  # Live budget changes for one entity
  adpilot ledger query --entity cmp-42 --lever budget --mode live

  # Changes in a date range, as JSON
  adpilot ledger query --since 2026-08-01 --until 2026-08-30 --format json`,
}

var ledgerQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query change ledger entries",
	RunE:  runLedgerQuery,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerQueryCmd)

	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.account, "account", "", "filter by account ID")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.entity, "entity", "", "filter by entity ID")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.lever, "lever", "", "filter by lever: budget, bid, status")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.mode, "mode", "", "filter by execution mode: dry_run, live")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.rule, "rule", "", "filter by rule ID")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.since, "since", "", "start date (YYYY-MM-DD)")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.until, "until", "", "end date (YYYY-MM-DD)")
	ledgerQueryCmd.Flags().IntVar(&ledgerFlags.limit, "limit", 100, "max results")
	ledgerQueryCmd.Flags().IntVar(&ledgerFlags.offset, "offset", 0, "pagination offset")
	ledgerQueryCmd.Flags().StringVar(&ledgerFlags.format, "format", "text", "output format: text, json")
}

func runLedgerQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	query := &ledger.Query{
		AccountID: ledgerFlags.account,
		EntityID:  ledgerFlags.entity,
		Lever:     ledger.Lever(ledgerFlags.lever),
		Mode:      ledger.ExecutionMode(ledgerFlags.mode),
		RuleID:    ledgerFlags.rule,
		Limit:     ledgerFlags.limit,
		Offset:    ledgerFlags.offset,
	}

	if ledgerFlags.since != "" {
		t, err := time.Parse(ledger.DateLayout, ledgerFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since date: %w", err)
		}
		query.Since = t
	}
	if ledgerFlags.until != "" {
		t, err := time.Parse(ledger.DateLayout, ledgerFlags.until)
		if err != nil {
			return fmt.Errorf("invalid --until date: %w", err)
		}
		query.Until = t
	}

	entries, err := a.store.Query(ctx, query)
	if err != nil {
		return err
	}

	if ledgerFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No ledger entries found.")
		return nil
	}

	fmt.Printf("%-10s  %-10s  %-14s  %-7s  %-8s  %-9s  %-20s  %s\n",
		"DATE", "ACCOUNT", "ENTITY", "LEVER", "MODE", "STATUS", "RULE", "CHANGE")
	for _, e := range entries {
		fmt.Printf("%-10s  %-10s  %-14s  %-7s  %-8s  %-9s  %-20s  %.2f -> %.2f\n",
			e.ChangeDate.Format(ledger.DateLayout), e.AccountID, e.EntityID,
			e.Lever, e.ExecutionMode, e.Status, e.RuleID, e.OldValue, e.NewValue)
	}
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}
