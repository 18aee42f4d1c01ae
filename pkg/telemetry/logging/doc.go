// Package logging provides structured logging for Adpilot.
//
// The Logger wraps log/slog with configurable level and output format.
// Components that log take a *slog.Logger (via Logger.Slog) so they can be
// tested with slog.Default() or a discard handler; the CLI constructs the
// root logger from telemetry configuration.
//
// Usage:
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	logger.Info("run started", "account", accountID, "mode", mode)
package logging
