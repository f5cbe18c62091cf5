package session

import (
	"context"
	"sync"
	"time"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// MemoryStore keeps sessions in process memory, keyed by user id.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	opts     options
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*chat.Session),
		opts:     buildOptions(opts),
	}
}

// Create supersedes any existing session for userID.
func (s *MemoryStore) Create(_ context.Context, userID string, snapshot wellbeing.Snapshot) (string, error) {
	if userID == "" {
		return "", ErrUserRequired
	}

	now := s.opts.now()
	session := &chat.Session{
		ID:        s.opts.newID(),
		UserID:    userID,
		Snapshot:  snapshot.Clone(),
		History:   make([]chat.Turn, 0, 16),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()

	return session.ID, nil
}

// Get returns a copy of the session.
func (s *MemoryStore) Get(_ context.Context, userID, sessionID string) (*chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok || session.ID != sessionID {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

// Append adds one turn to the live session.
func (s *MemoryStore) Append(_ context.Context, userID, sessionID string, turn chat.Turn) error {
	if err := validateTurn(turn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok || session.ID != sessionID {
		return ErrNotFound
	}

	session.History = append(session.History, turn)
	session.UpdatedAt = s.opts.now()
	return nil
}

// Current returns a copy of the user's live session.
func (s *MemoryStore) Current(_ context.Context, userID string) (*chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

// Delete drops the user's session.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Sweep drops sessions idle since olderThan.
func (s *MemoryStore) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if session.UpdatedAt.Before(olderThan) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneSession(session *chat.Session) *chat.Session {
	copied := *session
	copied.Snapshot = session.Snapshot.Clone()
	copied.History = chat.CloneHistory(session.History)
	return &copied
}
