package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"craftdesk/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding the workshop state document.
type DB struct {
	sql *sql.DB
}

func defaultPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "craftdesk.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "craftdesk.db")
}

// Open opens (or creates) the SQLite database and runs migrations.
// An empty path uses the default location next to the working directory.
func Open(path string) (*DB, error) {
	if path == "" {
		path = defaultPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS settings (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS items (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				category   TEXT NOT NULL,
				icon       TEXT NOT NULL DEFAULT '',
				notes      TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS recipes (
				id              TEXT PRIMARY KEY,
				output_item_id  TEXT NOT NULL UNIQUE REFERENCES items(id),
				output_quantity INTEGER NOT NULL,
				created_at      TEXT NOT NULL,
				updated_at      TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS recipe_inputs (
				recipe_id TEXT NOT NULL REFERENCES recipes(id),
				item_id   TEXT NOT NULL REFERENCES items(id),
				quantity  INTEGER NOT NULL,
				PRIMARY KEY (recipe_id, item_id)
			);

			CREATE TABLE IF NOT EXISTS price_snapshots (
				id          INTEGER PRIMARY KEY,
				item_id     TEXT NOT NULL REFERENCES items(id),
				unit_price  INTEGER NOT NULL,
				captured_at TEXT NOT NULL,
				source      TEXT NOT NULL,
				note        TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_snapshots_item ON price_snapshots(item_id, captured_at);

			CREATE TABLE IF NOT EXISTS inventory (
				item_id    TEXT PRIMARY KEY REFERENCES items(id),
				quantity   INTEGER NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS signal_rule (
				id            INTEGER PRIMARY KEY CHECK (id = 1),
				enabled       INTEGER NOT NULL,
				lookback_days INTEGER NOT NULL,
				drop_ratio    REAL NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for tests.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
