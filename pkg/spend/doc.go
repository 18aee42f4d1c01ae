// Package spend tracks per-account spend against daily and monthly caps.
//
// A Tracker holds rolling windows fed from metric snapshots. Pacing
// (monthly spend over monthly cap) is what the spend-pacing guardrail
// consults before allowing budget increases. Observations are keyed by
// (account, entity, day), so replaying the same snapshots never
// double-counts. An optional SQLite store persists events so windows and
// observation keys can be rebuilt after a restart.
package spend
