// Package database opens the SQLite database shared by the session store,
// the log snapshot provider and the meditation library.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id    TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		logs       TEXT NOT NULL,
		history    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_sessions_session
		ON chat_sessions(session_id);

	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated
		ON chat_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS study_sessions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id          TEXT NOT NULL,
		started_at       TEXT NOT NULL,
		ended_at         TEXT,
		total_break_secs INTEGER NOT NULL DEFAULT 0,
		productivity     INTEGER,
		note             TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_study_sessions_user
		ON study_sessions(user_id, started_at);

	CREATE TABLE IF NOT EXISTS sleep_logs (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date    TEXT NOT NULL,
		score   INTEGER NOT NULL,
		note    TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sleep_logs_user
		ON sleep_logs(user_id, date);

	CREATE TABLE IF NOT EXISTS mood_logs (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		at      TEXT NOT NULL,
		score   INTEGER NOT NULL,
		note    TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_mood_logs_user
		ON mood_logs(user_id, at);

	CREATE TABLE IF NOT EXISTS meditations (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		transcript TEXT NOT NULL,
		audio_url  TEXT NOT NULL,
		background TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meditations_user
		ON meditations(user_id, created_at);
`

// Open opens (and if needed creates) the SQLite database at path and applies
// the schema. Parent directories are created for file-backed databases.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: every :memory: connection is a separate database, and a
	// single writer keeps read-modify-write appends atomic.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Printf("[database] sqlite ready at %s", path)
	return db, nil
}
