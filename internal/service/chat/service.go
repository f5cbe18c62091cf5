// Package chat runs the conversation lifecycle: it opens sessions with a log
// snapshot, routes each user message to the selected agent and records both
// turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
	"github.com/eunoia/backend/internal/service/agent"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/store/session"
)

var (
	ErrSessionNotFound = session.ErrNotFound
	ErrUserRequired    = errors.New("user id is required")
	ErrEmptyMessage    = errors.New("message is required")
)

// StartResult is returned when a session is opened.
type StartResult struct {
	SessionID string
	Reply     string
}

// SendResult carries the agent reply and the history after both turns were
// recorded.
type SendResult struct {
	Reply   string
	History []chat.Turn
}

// Service coordinates the session store, the log provider and the agents.
type Service struct {
	store  session.Store
	logs   logs.Provider
	router *agent.Router
	locks  *keyedMutex
}

// NewService wires the orchestrator.
func NewService(store session.Store, provider logs.Provider, router *agent.Router) *Service {
	return &Service{
		store:  store,
		logs:   provider,
		router: router,
		locks:  newKeyedMutex(),
	}
}

// Providers lists the agent backends that can be selected.
func (s *Service) Providers() []string {
	return s.router.Names()
}

// Start fetches the user's logs, replaces any existing session with a new one
// holding that snapshot, and returns the greeting.
func (s *Service) Start(ctx context.Context, userID string) (StartResult, error) {
	if strings.TrimSpace(userID) == "" {
		return StartResult{}, ErrUserRequired
	}

	snapshot, err := s.logs.Fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, logs.ErrFetch) {
			return StartResult{}, err
		}
		return StartResult{}, fmt.Errorf("%w: %v", logs.ErrFetch, err)
	}
	snapshot = snapshot.Normalize()

	sessionID, err := s.store.Create(ctx, userID, snapshot)
	if err != nil {
		return StartResult{}, err
	}

	log.Printf("[chat] session started user=%s session=%s", userID, sessionID)
	return StartResult{SessionID: sessionID, Reply: IntroText(snapshot.Counts())}, nil
}

// Send records the user message, asks the selected agent for a reply and
// records it. The agent sees the last HistoryWindow turns as they were before
// this message.
func (s *Service) Send(ctx context.Context, userID, sessionID, provider, message string) (SendResult, error) {
	if !s.router.Has(provider) {
		return SendResult{}, fmt.Errorf("%w: %q", agent.ErrInvalidProvider, provider)
	}
	if strings.TrimSpace(userID) == "" {
		return SendResult{}, ErrUserRequired
	}
	if strings.TrimSpace(message) == "" {
		return SendResult{}, ErrEmptyMessage
	}

	unlock := s.locks.Lock(userID + "\x00" + sessionID)
	defer unlock()

	current, err := s.store.Get(ctx, userID, sessionID)
	if err != nil {
		return SendResult{}, err
	}

	if err := s.store.Append(ctx, userID, sessionID, chat.UserTurn(message)); err != nil {
		return SendResult{}, err
	}

	window := agent.Window(current.History, agent.HistoryWindow)
	reply, err := s.router.Dispatch(ctx, provider, current.Snapshot, window, message)
	if err != nil {
		return SendResult{}, err
	}

	if err := s.store.Append(ctx, userID, sessionID, chat.AssistantTurn(reply)); err != nil {
		return SendResult{}, err
	}

	updated, err := s.store.Get(ctx, userID, sessionID)
	if err != nil {
		return SendResult{}, err
	}

	return SendResult{Reply: reply, History: updated.History}, nil
}

// Current returns the user's live session.
func (s *Service) Current(ctx context.Context, userID string) (*chat.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	return s.store.Current(ctx, userID)
}

// End deletes the user's session, if any.
func (s *Service) End(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}
	log.Printf("[chat] session ended user=%s", userID)
	return nil
}

// IntroText is the greeting sent when a session opens.
func IntroText(counts wellbeing.Counts) string {
	return fmt.Sprintf(
		"I've fetched your logs from the past two weeks.\n"+
			"- Study sessions: %d\n"+
			"- Sleep logs: %d\n"+
			"- Mood entries: %d\n"+
			"You can now ask things like “How has my sleep been?”",
		counts.Study, counts.Sleep, counts.Mood,
	)
}
