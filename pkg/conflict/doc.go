// Package conflict resolves competing recommendations and produces the
// ranked per-account report.
//
// For each (entity, lever) group exactly one non-blocked recommendation
// survives; losers are marked superseded. Proposals on multiple levers for
// the same entity in a single pass are arbitrated by the account's
// configured lever priority (default: status before budget before bid).
package conflict
