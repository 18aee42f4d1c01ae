// Package rules provides the rule evaluator: pure functions mapping an
// entity's metric snapshot and account policy to change recommendations.
//
// # Rule Registry
//
// Rules live in a statically constructed, ordered Registry. Each rule is a
// declarative triple of trigger predicate, action formula, and static
// metadata (risk tier, priority, rationale). There is no runtime discovery;
// the catalog is built at startup and fully type-checked.
//
// # Totality
//
// Rules are total and side-effect-free. A metric absent from the snapshot
// means the rule does not trigger; rules never panic on missing data. No
// rule observes another rule's output, so evaluation order affects only the
// ordering of the produced list.
//
// # The no-action rule
//
// The catalog contains an explicit "healthy, no action" rule so that an
// entity for which nothing triggered is represented in the output rather
// than silently omitted.
//
// # Parallelism
//
// Snapshots are independent and read-only, so Evaluator.EvaluateAll fans
// out across a bounded worker pool. Recommendation IDs are deterministic
// (derived from account, entity, rule, and snapshot date) so identical
// inputs produce identical output lists.
package rules
