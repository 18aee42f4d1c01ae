// Package guardrails provides the policy ("Constitution") layer: a pipeline
// of independent checks that annotate each recommendation as allowed or
// blocked with a reason.
//
// # Precedence
//
// Checks run in a fixed order and short-circuit on the first failure, so
// the block reason is always the first violated policy regardless of how
// many would have failed. The order is configuration (a slice of check
// IDs), not code structure; accounts may override it and new checks slot in
// without touching existing ones.
//
// Default order:
//
//  1. data_sufficiency: minimum click/conversion volume
//  2. protected_entity: brand or explicit protect-list, always blocked
//  3. confidence:       recommendation confidence threshold
//  4. cooldown:         no recent live change on the same lever
//  5. one_lever:        no recent live change on an opposing lever
//  6. change_magnitude: tolerance cap and absolute max
//  7. spend_pacing:     budget increases vs monthly pacing
//
// Cooldown and one-lever consult only live ledger entries; dry-run entries
// never count. All checks are pure functions of the CheckContext and the
// latest committed ledger state, so the engine is safe to re-run at
// execution time as a pre-flight validation with zero side effects.
package guardrails
