// Package session owns chat session records: one live session per user, its
// log snapshot, and its ordered turn history.
//
// Two backends implement Store: MemoryStore for tests and single-process
// deployments, SQLiteStore for durable storage. Both guarantee that Create
// replaces a user's previous session atomically and that Append never
// resurrects a superseded session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

var (
	// ErrNotFound covers a wrong session id, a session owned by another
	// user, and a user without any session. Callers get no finer signal.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps failures of the backing medium. It is retryable
	// and never reported as ErrNotFound.
	ErrUnavailable = errors.New("session store unavailable")
	// ErrInvalidTurn is returned when appending a turn with an unknown role.
	ErrInvalidTurn = errors.New("invalid turn role")

	ErrUserRequired = errors.New("user id is required")
)

// Store persists chat sessions.
type Store interface {
	// Create installs a fresh session with an empty history for userID,
	// removing any previous session of that user, and returns its id.
	Create(ctx context.Context, userID string, snapshot wellbeing.Snapshot) (string, error)
	// Get returns the session if it is the user's live one.
	Get(ctx context.Context, userID, sessionID string) (*chat.Session, error)
	// Append adds turn at the end of the session history.
	Append(ctx context.Context, userID, sessionID string, turn chat.Turn) error
	// Current returns the user's live session, whatever its id.
	Current(ctx context.Context, userID string) (*chat.Session, error)
	// Delete removes the user's session. Deleting nothing is not an error.
	Delete(ctx context.Context, userID string) error
	// Sweep removes sessions not updated since olderThan and reports how many.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// IDGenerator produces session ids.
type IDGenerator func() string

// Option configures a store backend.
type Option func(*options)

type options struct {
	newID IDGenerator
	now   func() time.Time
}

// WithIDGenerator overrides uuid-based session ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateTurn(turn chat.Turn) error {
	if !turn.Role.Valid() {
		return ErrInvalidTurn
	}
	return nil
}
