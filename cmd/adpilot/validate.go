package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"adpilot-hq/adpilot/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults, and report every
validation problem found.

Examples:
  # Validate the default config file
  adpilot validate

  # Validate a specific file
  adpilot validate --config /etc/adpilot/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, err := config.LoadConfig(cfgFile)
	if err == nil {
		fmt.Printf("Configuration valid: %s\n", cfgFile)
		return nil
	}

	var verr config.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("Configuration invalid: %s\n\n", cfgFile)
		for _, fe := range verr.Errors {
			fmt.Printf("  %s: %s\n", fe.Field, fe.Message)
		}
		return fmt.Errorf("%d validation error(s)", len(verr.Errors))
	}
	return err
}
