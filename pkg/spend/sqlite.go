package spend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one persisted spend observation: an entity's spend for one day.
// (AccountID, EntityID, Day) is the logical key; re-appending the same
// observation is a no-op, so replays and repeated pipeline runs never
// double-count.
type Event struct {
	AccountID  string
	EntityID   string
	Amount     float64
	RecordedAt time.Time
}

// Day returns the observation's logical day key.
func (e Event) Day() string {
	return e.RecordedAt.UTC().Format(dayLayout)
}

const dayLayout = "2006-01-02"

// Store persists spend events so rolling windows survive restarts.
type Store interface {
	// Append records one spend event. Appending an event with the same
	// (account, entity, day) key again is a no-op.
	Append(ctx context.Context, ev Event) error

	// Events returns events for the account since the given time, oldest
	// first.
	Events(ctx context.Context, accountID string, since time.Time) ([]Event, error)

	// Accounts returns the distinct account IDs with persisted events.
	Accounts(ctx context.Context) ([]string, error)

	// Close releases the store.
	Close() error
}

const spendSchema = `
CREATE TABLE IF NOT EXISTS spend_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id  TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    day         TEXT NOT NULL,
    amount      REAL NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    UNIQUE (account_id, entity_id, day)
);

CREATE INDEX IF NOT EXISTS idx_spend_account_time
    ON spend_events (account_id, recorded_at);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the spend event database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open spend store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(spendSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create spend schema: %w", err)
	}

	logger := slog.Default().With("component", "spend.sqlite")
	logger.Info("spend storage initialized", "path", path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Append records one spend event. The unique (account, entity, day) key
// makes re-appends no-ops.
func (s *SQLiteStore) Append(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spend_events (account_id, entity_id, day, amount, recorded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, entity_id, day) DO NOTHING`,
		ev.AccountID, ev.EntityID, ev.Day(), ev.Amount, ev.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append spend event: %w", err)
	}
	return nil
}

// Events returns the account's events since the given time, oldest first.
func (s *SQLiteStore) Events(ctx context.Context, accountID string, since time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, entity_id, amount, recorded_at
		 FROM spend_events
		 WHERE account_id = ? AND recorded_at >= ?
		 ORDER BY recorded_at ASC`,
		accountID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query spend events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.AccountID, &ev.EntityID, &ev.Amount, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan spend event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query spend events: %w", err)
	}
	return events, nil
}

// Accounts returns the distinct account IDs with persisted events.
func (s *SQLiteStore) Accounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT account_id FROM spend_events")
	if err != nil {
		return nil, fmt.Errorf("query spend accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan spend account: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query spend accounts: %w", err)
	}
	return ids, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
