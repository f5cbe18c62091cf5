package logs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

func seededProvider(t *testing.T) (*SQLProvider, *sql.DB) {
	t.Helper()

	db, err := database.Open(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`INSERT INTO study_sessions (user_id, started_at, ended_at, total_break_secs, productivity, note)
			VALUES ('u1', '2025-06-10T09:00:00Z', '2025-06-10T11:00:00Z', 600, 4, 'calculus')`,
		`INSERT INTO study_sessions (user_id, started_at, total_break_secs)
			VALUES ('u1', '2025-06-12T09:00:00Z', 0)`,
		`INSERT INTO study_sessions (user_id, started_at, total_break_secs)
			VALUES ('u1', '2025-04-01T09:00:00Z', 0)`,
		`INSERT INTO study_sessions (user_id, started_at, total_break_secs)
			VALUES ('u2', '2025-06-12T09:00:00Z', 0)`,
		`INSERT INTO sleep_logs (user_id, date, score, note) VALUES ('u1', '2025-06-11', 3, 'restless')`,
		`INSERT INTO mood_logs (user_id, at, score, note) VALUES ('u1', '2025-06-09T20:00:00Z', 2, 'anxious')`,
		`INSERT INTO mood_logs (user_id, at, score, note) VALUES ('u1', '2025-06-13T20:00:00Z', 4, 'better')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	p := NewSQLProvider(db, 0)
	p.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return p, db
}

func TestSQLProviderFetchWindowAndOrder(t *testing.T) {
	p, _ := seededProvider(t)

	snapshot, err := p.Fetch(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, wellbeing.Counts{Study: 2, Sleep: 1, Mood: 2}, snapshot.Counts())
	assert.Equal(t, "2025-06-12T09:00:00Z", snapshot.Study[0]["started_at"], "newest study session first")
	assert.Equal(t, "calculus", snapshot.Study[1]["note"])
	assert.Nil(t, snapshot.Study[0]["note"])
	assert.Equal(t, int64(3), snapshot.Sleep[0]["score"])
	assert.Equal(t, "better", snapshot.Mood[0]["note"])
}

func TestSQLProviderFetchEmptyUser(t *testing.T) {
	p, _ := seededProvider(t)

	snapshot, err := p.Fetch(context.Background(), "nobody")
	require.NoError(t, err)

	assert.NotNil(t, snapshot.Study)
	assert.NotNil(t, snapshot.Sleep)
	assert.NotNil(t, snapshot.Mood)
	assert.Equal(t, wellbeing.Counts{}, snapshot.Counts())
}

func TestSQLProviderRecentMoods(t *testing.T) {
	p, _ := seededProvider(t)

	moods, err := p.RecentMoods(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, int64(4), moods[0]["score"])
}

func TestSQLProviderFetchFailureIsErrFetch(t *testing.T) {
	p, db := seededProvider(t)
	require.NoError(t, db.Close())

	_, err := p.Fetch(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestStaticProvider(t *testing.T) {
	p := NewStatic(map[string]wellbeing.Snapshot{
		"u1": {Mood: []wellbeing.Record{{"score": 1}, {"score": 2}, {"score": 3}, {"score": 4}}},
	})

	snapshot, err := p.Fetch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.Counts().Mood)
	assert.NotNil(t, snapshot.Study)

	moods, err := p.RecentMoods(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Len(t, moods, 3)
}
