package meditation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeLayout keeps created_at fixed width so text ordering is time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Meditation is one generated session.
type Meditation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Transcript string    `json:"transcript"`
	AudioURL   string    `json:"audio_url"`
	Background string    `json:"background"`
	CreatedAt  time.Time `json:"created_at"`
}

// Library records generated meditations.
type Library interface {
	Save(ctx context.Context, m Meditation) error
	List(ctx context.Context, userID string) ([]Meditation, error)
}

// SQLLibrary stores meditations in the meditations table.
type SQLLibrary struct {
	db *sql.DB
}

// NewSQLLibrary wraps a database opened with database.Open.
func NewSQLLibrary(db *sql.DB) *SQLLibrary {
	return &SQLLibrary{db: db}
}

// Save inserts m.
func (l *SQLLibrary) Save(ctx context.Context, m Meditation) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO meditations (id, user_id, transcript, audio_url, background, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Transcript, m.AudioURL, m.Background, m.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving meditation: %w", err)
	}
	return nil
}

// List returns the user's meditations, newest first.
func (l *SQLLibrary) List(ctx context.Context, userID string) ([]Meditation, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, transcript, audio_url, background, created_at
		FROM meditations
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing meditations: %w", err)
	}
	defer rows.Close()

	out := make([]Meditation, 0)
	for rows.Next() {
		var (
			m       Meditation
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Transcript, &m.AudioURL, &m.Background, &created); err != nil {
			return nil, fmt.Errorf("scanning meditation: %w", err)
		}
		if m.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing meditation timestamp %q: %w", created, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
