// Adpilot is a policy-gated automation pipeline for paid advertising
// accounts.
//
// It evaluates entity metric snapshots against a rule catalog, enforces
// per-account policy guardrails, resolves conflicting proposals, and
// executes approved changes against the advertising platform with an
// append-only audit ledger.
//
// Usage:
//
//	# Validate configuration
//	adpilot validate --config config.yaml
//
//	# Generate recommendation reports from a snapshot file
//	adpilot evaluate --snapshots snapshots.json
//
//	# Simulate execution without touching the platform
//	adpilot execute --snapshots snapshots.json --dry-run
//
//	# Execute live with explicit approval
//	adpilot execute --snapshots snapshots.json --live --yes
//
//	# Query the change ledger
//	adpilot ledger query --account acc-1 --limit 50
//
//	# Scan recent changes for KPI degradation
//	adpilot rollback scan --snapshots snapshots.json
package main

func main() {
	Execute()
}
