// Package executor applies approved recommendations to the platform.
//
// Every item passes a guardrail pre-flight against the latest ledger state
// before its platform call. Transient platform errors are retried with
// exponential backoff up to the configured attempt cap; permanent
// rejections fail immediately. A ledger entry is written only after the
// platform confirms the change (dry runs write dry_run entries that the
// guardrail history checks ignore). Accounts execute concurrently, items
// within an account sequentially.
package executor
