package ledger

import (
	"context"
	"time"
)

// Store is the change ledger interface.
//
// Writes are append-only and idempotent: recording the same logical entry
// (entity, lever, change date, rule, mode) twice must not create a duplicate row,
// so a retried write after a confirmed platform change is always safe.
// Reads always reflect the latest committed state; callers must not cache
// results across a write.
type Store interface {
	// Record appends an entry to the ledger. Re-recording an entry with
	// the same logical key is a no-op.
	Record(ctx context.Context, entry *ChangeLogEntry) error

	// LastChange returns the most recent live entry for (account, entity,
	// lever) whose change date is on or after since, or nil if there is
	// none. Dry-run entries are never returned. Callers derive since from
	// their evaluation timestamp (see WindowCutoff) so window checks are a
	// pure function of that timestamp.
	LastChange(ctx context.Context, accountID, entityID string, lever Lever, since time.Time) (*ChangeLogEntry, error)

	// HasOpposingLeverChange reports whether any live entry exists for the
	// entity on a lever other than excludeLever with a change date on or
	// after since.
	HasOpposingLeverChange(ctx context.Context, accountID, entityID string, excludeLever Lever, since time.Time) (bool, error)

	// Query returns entries matching the filters, most recent first.
	Query(ctx context.Context, q *Query) ([]*ChangeLogEntry, error)

	// Count returns the number of entries matching the filters.
	Count(ctx context.Context, q *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}

// WindowCutoff computes the earliest change date inside a lookback window
// ending at now. Change dates are day-granular, so the cutoff is truncated
// to the day.
func WindowCutoff(now time.Time, windowDays int) time.Time {
	return now.UTC().AddDate(0, 0, -windowDays).Truncate(24 * time.Hour)
}
