// Package pipeline orchestrates one automation pass per account: rule
// evaluation over metric snapshots, guardrail enforcement, conflict
// resolution into a ranked report, and optional execution of the report's
// non-blocked recommendations.
package pipeline
