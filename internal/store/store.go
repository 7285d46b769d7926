package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite only supports one writer at a time; the player goroutines and
	// the web handlers share this single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expiry DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT (datetime('now', 'localtime')),
			username TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			ip TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			volume REAL NOT NULL,
			default_effect TEXT NOT NULL,
			ui_scale REAL NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT (datetime('now', 'localtime'))
		);
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT UNIQUE NOT NULL,
			ts DATETIME NOT NULL,
			track TEXT NOT NULL,
			source TEXT NOT NULL,
			primary_color TEXT NOT NULL,
			secondary_color TEXT NOT NULL,
			intensity REAL NOT NULL,
			effect TEXT NOT NULL,
			speed INTEGER NOT NULL,
			effect_intensity INTEGER NOT NULL,
			fx INTEGER NOT NULL,
			bri INTEGER NOT NULL,
			device TEXT NOT NULL,
			device_error TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_history_ts ON history(id DESC);
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
