package db

import (
	"database/sql"
	"fmt"

	"github.com/SyfSchydea/osrs-flip/internal/logger"
	_ "modernc.org/sqlite"
)

// memoryDSN keeps every table in process memory. The pool is pinned to one
// connection because each new :memory: connection opens an empty database.
const memoryDSN = ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DB wraps an in-memory SQLite database.
type DB struct {
	sql *sql.DB
}

// Open creates the in-memory database and runs migrations.
func Open() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", "Opened in-memory store")
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS render_history (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp      TEXT NOT NULL,
				price_period   TEXT NOT NULL,
				holding_period TEXT NOT NULL,
				cash_budget    INTEGER NOT NULL,
				candidates     INTEGER NOT NULL,
				count          INTEGER NOT NULL,
				top_profit     INTEGER NOT NULL,
				total_profit   INTEGER NOT NULL,
				duration_ms    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_render_history_ts ON render_history(timestamp);

			CREATE TABLE IF NOT EXISTS flip_results (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				render_id       INTEGER NOT NULL REFERENCES render_history(id) ON DELETE CASCADE,
				rank            INTEGER NOT NULL,
				item_id         INTEGER NOT NULL,
				name            TEXT NOT NULL,
				link            TEXT NOT NULL,
				buy_limit       INTEGER,
				low             INTEGER,
				high            INTEGER,
				margin          INTEGER,
				low_volume      INTEGER,
				high_volume     INTEGER,
				quantity        INTEGER,
				limiting_factor TEXT,
				profit          INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_flip_render ON flip_results(render_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Debug("DB", "Applied migration v1")
	}
	return nil
}
