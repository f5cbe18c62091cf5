package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/middleware"
	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
	"github.com/eunoia/backend/internal/store/session"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedSession(t *testing.T, path, userID string, updated time.Time) string {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, path)
	require.NoError(t, err)
	store := session.NewSQLiteStore(db, session.WithClock(func() time.Time { return updated }))
	defer store.Close()

	id, err := store.Create(ctx, userID, wellbeing.Snapshot{Mood: []wellbeing.Record{{"score": 4}}})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, userID, id, chat.UserTurn("hello")))
	return id
}

func TestSessionsShowAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eunoia.db")
	id := seedSession(t, path, "u1", time.Now().UTC())

	out, err := run(t, "--db", path, "sessions", "show", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, `"hello"`)

	out, err = run(t, "--db", path, "sessions", "delete", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted session for u1")

	out, err = run(t, "--db", path, "sessions", "show", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "no session for u1")
}

func TestSessionsSweep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eunoia.db")
	seedSession(t, path, "stale", time.Now().UTC().Add(-10*24*time.Hour))
	seedSession(t, path, "fresh", time.Now().UTC())

	out, err := run(t, "--db", path, "sessions", "sweep", "--older-than", "168h")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "removed 1 session(s)"), out)

	out, err = run(t, "--db", path, "sessions", "show", "fresh")
	require.NoError(t, err)
	assert.NotContains(t, out, "no session")

	_, err = run(t, "--db", path, "sessions", "sweep", "--older-than", "0s")
	assert.Error(t, err)
}

func TestLogsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eunoia.db")
	ctx := context.Background()

	db, err := database.Open(ctx, path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO mood_logs (user_id, at, score, note) VALUES (?, ?, ?, ?)`,
		"u1", time.Now().UTC().Format(time.RFC3339), 3, "ok")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "--db", path, "logs", "snapshot", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, `"mood"`)
	assert.Contains(t, out, `"note": "ok"`)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "u1", "--secret", "s3cret", "--audience", "authenticated")
	require.NoError(t, err)

	userID, err := middleware.NewJWTVerifier([]byte("s3cret"), "authenticated").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}
