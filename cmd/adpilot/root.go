package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "adpilot",
	Short: "Adpilot - policy-gated ad campaign automation",
	Long: `Adpilot turns daily metric snapshots into vetted, auditable account
changes. Each pass runs rule evaluation, guardrail enforcement, and
conflict resolution to produce a ranked recommendation report, and can
execute approved changes with retry handling and an append-only ledger.

Every change is gated by the account's policy: change caps, cooldowns,
one-lever exclusivity, protected entities, spend pacing, and confidence
thresholds.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
