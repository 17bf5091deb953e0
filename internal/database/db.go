// Package database provides the engine's SQLite connection and schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection used for price history and peer preferences.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration
type Config struct {
	Path string
}

// New opens (and if needed creates) the engine database and applies the schema.
func New(cfg Config) (*DB, error) {
	// file: URIs are used for in-memory databases in tests; skip filepath
	// resolution for those.
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: cfg.Path}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// buildConnectionString creates the SQLite connection string with the PRAGMAs
// appropriate for a single-writer, read-mostly engine database.
func buildConnectionString(path string) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
	connStr += "&_pragma=temp_store(MEMORY)"
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=cache_size(-64000)"
	return connStr
}

// initSchema creates the engine tables when missing.
func (db *DB) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS daily_prices (
	ticker TEXT NOT NULL,
	date   INTEGER NOT NULL,
	close  REAL NOT NULL,
	PRIMARY KEY (ticker, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_ticker ON daily_prices(ticker);

CREATE TABLE IF NOT EXISTS peer_preferences (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	risk_tolerance     INTEGER NOT NULL,
	investment_horizon INTEGER NOT NULL,
	goal               INTEGER NOT NULL,
	experience         INTEGER NOT NULL,
	loss_aversion      INTEGER NOT NULL,
	theme_preference   INTEGER NOT NULL,
	preferred_etfs     TEXT NOT NULL
);
`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Conn exposes the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the filesystem path of the database.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}
