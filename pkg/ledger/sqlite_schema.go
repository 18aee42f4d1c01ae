package ledger

// SchemaVersion is the current ledger schema version.
const SchemaVersion = 1

// Schema creates the ledger tables and indexes.
//
// The UNIQUE constraint on (entity_id, lever, change_date, rule_id,
// execution_mode) is what makes Record idempotent: a retried write of the
// same logical entry hits the conflict clause instead of inserting a second
// row. Execution mode is included so a same-day dry run never masks the
// live entry.
const Schema = `
CREATE TABLE IF NOT EXISTS changes (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	lever          TEXT NOT NULL,
	change_date    TEXT NOT NULL,
	old_value      REAL NOT NULL,
	new_value      REAL NOT NULL,
	change_pct     REAL NOT NULL,
	rule_id        TEXT NOT NULL,
	risk_tier      TEXT NOT NULL,
	execution_mode TEXT NOT NULL,
	status         TEXT NOT NULL,
	executed_at    TIMESTAMP NOT NULL,
	baseline       TEXT,
	UNIQUE (entity_id, lever, change_date, rule_id, execution_mode)
);

CREATE INDEX IF NOT EXISTS idx_changes_entity_lever
	ON changes (account_id, entity_id, lever, execution_mode, change_date);

CREATE INDEX IF NOT EXISTS idx_changes_account_date
	ON changes (account_id, change_date);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version (idempotent).
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion reads the current schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`
