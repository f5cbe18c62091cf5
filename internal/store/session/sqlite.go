package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// SQLiteStore persists one chat_sessions row per user.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore wraps a database opened with database.Open.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, opts: buildOptions(opts)}
}

// Create replaces the user's row inside one transaction, so readers see
// either the previous session or the complete new one.
func (s *SQLiteStore) Create(ctx context.Context, userID string, snapshot wellbeing.Snapshot) (string, error) {
	if userID == "" {
		return "", ErrUserRequired
	}

	logs, err := encodeSnapshot(snapshot)
	if err != nil {
		return "", err
	}
	history, err := encodeHistory(nil)
	if err != nil {
		return "", err
	}

	sessionID := s.opts.newID()
	now := formatTime(s.opts.now())

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ?`, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chat_sessions (user_id, session_id, logs, history, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, userID, sessionID, logs, history, now, now)
		return err
	})
	if err != nil {
		return "", unavailable("create session", err)
	}

	log.Printf("[store] session created user=%s session=%s", userID, sessionID)
	return sessionID, nil
}

// Get loads the session when sessionID is the user's live one.
func (s *SQLiteStore) Get(ctx context.Context, userID, sessionID string) (*chat.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, logs, history, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = ? AND session_id = ?
	`, userID, sessionID)
	return scanSession(userID, row)
}

// Current loads the user's live session.
func (s *SQLiteStore) Current(ctx context.Context, userID string) (*chat.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, logs, history, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = ?
	`, userID)
	return scanSession(userID, row)
}

// Append reads, extends and writes the history in one transaction. A
// superseded or deleted session yields ErrNotFound and nothing is written.
func (s *SQLiteStore) Append(ctx context.Context, userID, sessionID string, turn chat.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `
			SELECT history FROM chat_sessions WHERE user_id = ? AND session_id = ?
		`, userID, sessionID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		history, err := decodeHistory(raw)
		if err != nil {
			return err
		}
		encoded, err := encodeHistory(append(history, turn))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE chat_sessions SET history = ?, updated_at = ?
			WHERE user_id = ? AND session_id = ?
		`, encoded, formatTime(s.opts.now()), userID, sessionID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("append turn", err)
	}
	return nil
}

// Delete removes the user's row.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ?`, userID); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

// Sweep removes rows whose last update is before olderThan.
func (s *SQLiteStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, formatTime(olderThan))
	if err != nil {
		return 0, unavailable("sweep sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("sweep sessions", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanSession(userID string, row *sql.Row) (*chat.Session, error) {
	var (
		sessionID, logs, history string
		createdAt, updatedAt     string
	)
	err := row.Scan(&sessionID, &logs, &history, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("load session", err)
	}

	snapshot, err := decodeSnapshot(logs)
	if err != nil {
		return nil, unavailable("load session", err)
	}
	turns, err := decodeHistory(history)
	if err != nil {
		return nil, unavailable("load session", err)
	}

	return &chat.Session{
		ID:        sessionID,
		UserID:    userID,
		Snapshot:  snapshot,
		History:   turns,
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

func unavailable(op string, err error) error {
	log.Printf("[store] %s failed: %v", op, err)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
