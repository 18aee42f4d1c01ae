package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// DisableWAL turns off Write-Ahead Logging. WAL is on by default for
	// better concurrency.
	DisableWAL bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

// applyDefaults fills zero-valued fields so partially specified configs
// still get the documented defaults.
func (c *SQLiteConfig) applyDefaults() {
	def := DefaultSQLiteConfig()
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = def.BusyTimeout
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite ledger backend. It initializes the
// schema and enables WAL mode unless disabled. Zero-valued config fields
// take the documented defaults.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	config.applyDefaults()

	logger := slog.Default().With("component", "ledger.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("ledger storage initialized",
		"path", config.Path,
		"wal_mode", !config.DisableWAL,
	)

	return s, nil
}

// initialize sets up the schema and database pragmas.
func (s *SQLiteStore) initialize() error {
	if !s.config.DisableWAL {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Record appends an entry. The ON CONFLICT DO NOTHING clause on the logical
// key makes retried writes safe after a confirmed platform change.
func (s *SQLiteStore) Record(ctx context.Context, entry *ChangeLogEntry) error {
	var baseline interface{}
	if len(entry.Baseline) > 0 {
		data, err := json.Marshal(entry.Baseline)
		if err != nil {
			return NewStorageError("sqlite", "marshal_baseline", err)
		}
		baseline = string(data)
	}

	query := `
		INSERT INTO changes (
			id, account_id, entity_id, lever, change_date,
			old_value, new_value, change_pct,
			rule_id, risk_tier, execution_mode, status, executed_at, baseline
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, lever, change_date, rule_id, execution_mode) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.EntityID, string(entry.Lever),
		entry.ChangeDate.UTC().Format(DateLayout),
		entry.OldValue, entry.NewValue, entry.ChangePct,
		entry.RuleID, entry.RiskTier, string(entry.ExecutionMode), string(entry.Status),
		entry.ExecutedAt.UTC(), baseline,
	)
	if err != nil {
		return NewStorageError("sqlite", "record", err)
	}

	return nil
}

// LastChange returns the most recent live entry since the cutoff, or nil.
func (s *SQLiteStore) LastChange(ctx context.Context, accountID, entityID string, lever Lever, since time.Time) (*ChangeLogEntry, error) {
	query := `
		SELECT id, account_id, entity_id, lever, change_date,
		       old_value, new_value, change_pct,
		       rule_id, risk_tier, execution_mode, status, executed_at, baseline
		FROM changes
		WHERE account_id = ? AND entity_id = ? AND lever = ?
		  AND execution_mode = 'live'
		  AND change_date >= ?
		ORDER BY change_date DESC, executed_at DESC
		LIMIT 1
	`

	cutoff := since.UTC().Format(DateLayout)
	row := s.db.QueryRowContext(ctx, query, accountID, entityID, string(lever), cutoff)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "last_change", err)
	}
	return entry, nil
}

// HasOpposingLeverChange reports whether a live entry exists on another lever
// since the cutoff.
func (s *SQLiteStore) HasOpposingLeverChange(ctx context.Context, accountID, entityID string, excludeLever Lever, since time.Time) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM changes
		WHERE account_id = ? AND entity_id = ? AND lever != ?
		  AND execution_mode = 'live'
		  AND change_date >= ?
	`

	cutoff := since.UTC().Format(DateLayout)

	var count int64
	err := s.db.QueryRowContext(ctx, query, accountID, entityID, string(excludeLever), cutoff).Scan(&count)
	if err != nil {
		return false, NewStorageError("sqlite", "has_opposing_lever_change", err)
	}
	return count > 0, nil
}

// Query returns matching entries, most recent change date first.
func (s *SQLiteStore) Query(ctx context.Context, q *Query) ([]*ChangeLogEntry, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := `
		SELECT id, account_id, entity_id, lever, change_date,
		       old_value, new_value, change_pct,
		       rule_id, risk_tier, execution_mode, status, executed_at, baseline
		FROM changes
	`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY change_date DESC, executed_at DESC"

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	entries := []*ChangeLogEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	return entries, nil
}

// Count returns the number of entries matching the filters.
func (s *SQLiteStore) Count(ctx context.Context, q *Query) (int64, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM changes"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("ledger storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
func buildWhereClause(q *Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, q.AccountID)
	}
	if q.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, q.EntityID)
	}
	if q.Lever != "" {
		conditions = append(conditions, "lever = ?")
		args = append(args, string(q.Lever))
	}
	if q.Mode != "" {
		conditions = append(conditions, "execution_mode = ?")
		args = append(args, string(q.Mode))
	}
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.RuleID != "" {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, q.RuleID)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "change_date >= ?")
		args = append(args, q.Since.UTC().Format(DateLayout))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "change_date <= ?")
		args = append(args, q.Until.UTC().Format(DateLayout))
	}

	return strings.Join(conditions, " AND "), args
}

// scanner abstracts sql.Row and sql.Rows for scanEntry.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans a database row into a ChangeLogEntry.
func scanEntry(row scanner) (*ChangeLogEntry, error) {
	var entry ChangeLogEntry
	var lever, mode, status, changeDate string
	var baseline sql.NullString

	err := row.Scan(
		&entry.ID, &entry.AccountID, &entry.EntityID, &lever, &changeDate,
		&entry.OldValue, &entry.NewValue, &entry.ChangePct,
		&entry.RuleID, &entry.RiskTier, &mode, &status, &entry.ExecutedAt, &baseline,
	)
	if err != nil {
		return nil, err
	}

	entry.Lever = Lever(lever)
	entry.ExecutionMode = ExecutionMode(mode)
	entry.Status = Status(status)

	parsed, err := time.Parse(DateLayout, changeDate)
	if err != nil {
		return nil, fmt.Errorf("invalid change_date %q: %w", changeDate, err)
	}
	entry.ChangeDate = parsed

	if baseline.Valid && baseline.String != "" {
		if err := json.Unmarshal([]byte(baseline.String), &entry.Baseline); err != nil {
			return nil, fmt.Errorf("invalid baseline: %w", err)
		}
	}

	return &entry, nil
}
