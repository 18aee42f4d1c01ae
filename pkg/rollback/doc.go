// Package rollback watches recently executed live changes for KPI
// degradation against the baseline captured at execution time.
//
// Degraded changes produce reversal recommendations (restore the old
// value) rather than direct platform writes; reversals go through the
// same guardrail and execution pipeline as any other change. A cron
// scheduler runs scans on the configured schedule.
package rollback
