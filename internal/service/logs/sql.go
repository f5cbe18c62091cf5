package logs

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunoia/backend/internal/model/wellbeing"
)

// DefaultWindow is how far back a snapshot reaches.
const DefaultWindow = 15 * 24 * time.Hour

// SQLProvider reads the study_sessions, sleep_logs and mood_logs tables.
type SQLProvider struct {
	db     *sql.DB
	window time.Duration
	now    func() time.Time
}

// NewSQLProvider creates a provider over db. A non-positive window falls
// back to DefaultWindow.
func NewSQLProvider(db *sql.DB, window time.Duration) *SQLProvider {
	if window <= 0 {
		window = DefaultWindow
	}
	return &SQLProvider{
		db:     db,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Fetch loads the three record sequences concurrently, newest first.
func (p *SQLProvider) Fetch(ctx context.Context, userID string) (wellbeing.Snapshot, error) {
	since := p.now().Add(-p.window)
	sinceTS := since.Format(time.RFC3339)
	sinceDate := since.Format(time.DateOnly)

	var snapshot wellbeing.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, err := p.query(gctx, `
			SELECT started_at, ended_at, total_break_secs, productivity, note
			FROM study_sessions
			WHERE user_id = ? AND started_at >= ?
			ORDER BY started_at DESC
		`, userID, sinceTS)
		snapshot.Study = records
		return err
	})
	g.Go(func() error {
		records, err := p.query(gctx, `
			SELECT date, score, note
			FROM sleep_logs
			WHERE user_id = ? AND date >= ?
			ORDER BY date DESC
		`, userID, sinceDate)
		snapshot.Sleep = records
		return err
	})
	g.Go(func() error {
		records, err := p.query(gctx, `
			SELECT at, score, note
			FROM mood_logs
			WHERE user_id = ? AND at >= ?
			ORDER BY at DESC
		`, userID, sinceTS)
		snapshot.Mood = records
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("[logs] fetch failed for user=%s: %v", userID, err)
		return wellbeing.Snapshot{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return snapshot.Normalize(), nil
}

// RecentMoods returns the latest mood records regardless of the window.
func (p *SQLProvider) RecentMoods(ctx context.Context, userID string, limit int) ([]wellbeing.Record, error) {
	if limit <= 0 {
		limit = 3
	}
	records, err := p.query(ctx, `
		SELECT score, note, at
		FROM mood_logs
		WHERE user_id = ?
		ORDER BY at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return records, nil
}

// query scans every row into a Record keyed by column name.
func (p *SQLProvider) query(ctx context.Context, stmt string, args ...any) ([]wellbeing.Record, error) {
	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := make([]wellbeing.Record, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(wellbeing.Record, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				record[column] = string(raw)
				continue
			}
			record[column] = values[i]
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
