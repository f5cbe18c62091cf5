package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesNestedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "eunoia.db")

	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestOpenAppliesSchema(t *testing.T) {
	db, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"chat_sessions", "study_sessions", "sleep_logs", "mood_logs", "meditations"} {
		var name string
		row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
