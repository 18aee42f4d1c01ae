package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "accounts[0].policy.cooldown_days").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// A ValidationError is fatal: no evaluation or execution may begin with an
// invalid configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if len(cfg.Accounts) == 0 {
		errs = append(errs, FieldError{
			Field:   "accounts",
			Message: "at least one account must be configured",
		})
	}

	seen := map[string]bool{}
	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		prefix := fmt.Sprintf("accounts[%d]", i)

		if acct.ID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".id",
				Message: "account id must not be empty",
			})
		} else if seen[acct.ID] {
			errs = append(errs, FieldError{
				Field:   prefix + ".id",
				Message: fmt.Sprintf("duplicate account id %q", acct.ID),
			})
		}
		seen[acct.ID] = true

		errs = append(errs, validatePolicy(prefix+".policy", &acct.Policy)...)
	}

	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateExecutor(&cfg.Executor)...)
	errs = append(errs, validateRollback(&cfg.Rollback)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validatePolicy validates one account's policy block.
func validatePolicy(prefix string, p *PolicyConfig) []FieldError {
	var errs []FieldError

	switch p.RiskTolerance {
	case RiskConservative, RiskBalanced, RiskAggressive:
	default:
		errs = append(errs, FieldError{
			Field:   prefix + ".risk_tolerance",
			Message: fmt.Sprintf("unknown risk tolerance %q", p.RiskTolerance),
		})
	}

	switch p.AutomationMode {
	case ModeInsights, ModeSuggest, ModeAutoLowRisk, ModeAutoExpanded:
	default:
		errs = append(errs, FieldError{
			Field:   prefix + ".automation_mode",
			Message: fmt.Sprintf("unknown automation mode %q", p.AutomationMode),
		})
	}

	if p.ChangeCaps.AbsoluteMax <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".change_caps.absolute_max",
			Message: "absolute max cap must be positive",
		})
	}
	if cap := p.Cap(); cap > p.ChangeCaps.AbsoluteMax {
		errs = append(errs, FieldError{
			Field:   prefix + ".change_caps",
			Message: fmt.Sprintf("tolerance cap %.1f%% exceeds absolute max %.1f%%", cap, p.ChangeCaps.AbsoluteMax),
		})
	}

	if p.CooldownDays < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".cooldown_days",
			Message: "cooldown days must not be negative",
		})
	}
	if p.OneLeverWindowDays < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".one_lever_window_days",
			Message: "one-lever window days must not be negative",
		})
	}

	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".confidence_threshold",
			Message: "confidence threshold must be in [0, 1]",
		})
	}

	for j, lever := range p.LeverPriority {
		switch lever {
		case "budget", "bid", "status":
		default:
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s.lever_priority[%d]", prefix, j),
				Message: fmt.Sprintf("unknown lever %q", lever),
			})
		}
	}

	return errs
}

// validateLedger validates the ledger section.
func validateLedger(l *LedgerConfig) []FieldError {
	var errs []FieldError

	switch l.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", l.Backend),
		})
	}
	if l.Backend == "sqlite" && l.Path == "" {
		errs = append(errs, FieldError{
			Field:   "ledger.path",
			Message: "path must be set for sqlite backend",
		})
	}

	return errs
}

// validateExecutor validates the executor section.
func validateExecutor(e *ExecutorConfig) []FieldError {
	var errs []FieldError

	if e.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "executor.max_attempts",
			Message: "max attempts must be at least 1",
		})
	}
	if e.AccountConcurrency < 1 {
		errs = append(errs, FieldError{
			Field:   "executor.account_concurrency",
			Message: "account concurrency must be at least 1",
		})
	}

	return errs
}

// validateRollback validates the rollback section.
func validateRollback(r *RollbackConfig) []FieldError {
	var errs []FieldError

	switch r.KPI {
	case "cpa", "roas":
	default:
		errs = append(errs, FieldError{
			Field:   "rollback.kpi",
			Message: fmt.Sprintf("unknown kpi %q (expected cpa or roas)", r.KPI),
		})
	}
	if r.MinAgeDays > r.MaxAgeDays {
		errs = append(errs, FieldError{
			Field:   "rollback.min_age_days",
			Message: fmt.Sprintf("min age %d exceeds max age %d", r.MinAgeDays, r.MaxAgeDays),
		})
	}

	return errs
}
