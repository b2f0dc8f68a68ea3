// Package storage persists change-detection snapshots in a SQLite
// database under the project's .intermap directory.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DBFileName is the database file inside the .intermap directory.
const DBFileName = "intermap.db"

// DB is a database handle with the intermap schema applied.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at <repoRoot>/.intermap/intermap.db.
func Open(repoRoot string, logger *slog.Logger) (*DB, error) {
	dir := filepath.Join(repoRoot, ".intermap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create .intermap directory: %w", err)
	}
	return OpenPath(filepath.Join(dir, DBFileName), logger)
}

// OpenPath opens or creates a database at an explicit path.
func OpenPath(path string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	project TEXT NOT NULL,
	baseline TEXT NOT NULL,
	mode TEXT NOT NULL,
	created_at TEXT NOT NULL,
	total_files INTEGER NOT NULL,
	total_symbols INTEGER NOT NULL,
	result_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project, created_at DESC);
`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }
