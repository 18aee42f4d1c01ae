// Package config provides configuration loading, validation, and hot reload
// for Adpilot.
//
// # Structure
//
// Configuration is a single YAML file with sections for managed accounts,
// the change ledger, the platform client, execution, rollback monitoring,
// and telemetry. Each account carries a PolicyConfig block (the account's
// "Constitution") from which every guardrail decision is derived:
//
//	accounts:
//	  - id: "acct-1001"
//	    name: "Acme Search"
//	    policy:
//	      risk_tolerance: conservative
//	      cooldown_days: 7
//	      monthly_spend_cap: 25000
//	      automation_mode: suggest
//	ledger:
//	  backend: sqlite
//	  path: data/ledger.db
//
// # Loading
//
// LoadConfig reads the file, applies defaults, and validates. A
// ValidationError is fatal: callers must not start evaluation or execution
// with an invalid configuration. LoadConfigWithEnvOverrides additionally
// applies ADPILOT_* environment variables.
//
// # Hot reload
//
// Watcher reloads the file on change (fsnotify) so policy settings can be
// tuned between runs in long-lived processes. A failed reload keeps the
// previous configuration in effect.
package config
