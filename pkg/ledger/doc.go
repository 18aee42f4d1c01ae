// Package ledger provides the append-only change ledger: the audit store of
// executed changes and the sole source of truth for cooldown and one-lever
// guardrail checks.
//
// # Invariants
//
// Entries are created only by the execution engine after a confirmed (or
// simulated) outcome and are never updated or deleted. Writes are
// idempotent on the logical key (entity, lever, change date, rule, mode), so a
// retried write after a confirmed platform change cannot duplicate a row.
// Cooldown and one-lever reads consider only live entries; dry-run entries
// exist for reporting and are never treated as real changes.
//
// # Backends
//
//   - MemoryStore: in-memory, for tests and development
//   - SQLiteStore: durable, WAL mode, schema-versioned
//
// # Usage
//
//	store, err := ledger.NewSQLiteStore(&ledger.SQLiteConfig{
//	    Path: "data/ledger.db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	since := ledger.WindowCutoff(time.Now(), 7)
//	last, err := store.LastChange(ctx, acctID, entityID, ledger.LeverBudget, since)
//	if last != nil {
//	    // entity is in cooldown for the budget lever
//	}
package ledger
