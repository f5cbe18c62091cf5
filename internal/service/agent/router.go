package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// Provider names accepted by the router.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderArk       = "ark"
)

// ErrInvalidProvider reports a provider name with no registered adapter.
// It is a caller or configuration error and is never retried.
var ErrInvalidProvider = errors.New("invalid provider selection")

// Router delegates turns to the adapter registered under a provider name.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]Replier
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{adapters: make(map[string]Replier)}
}

// Register binds name to replier, replacing any previous binding.
func (r *Router) Register(name string, replier Replier) {
	r.mu.Lock()
	r.adapters[name] = replier
	r.mu.Unlock()
}

// Has reports whether name is registered.
func (r *Router) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// Names lists registered providers in sorted order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch splits the snapshot into its three sequences and hands the turn to
// the named adapter. Unknown names fail with ErrInvalidProvider; adapter
// failures never surface here.
func (r *Router) Dispatch(ctx context.Context, name string, snapshot wellbeing.Snapshot, history []chat.Turn, userMessage string) (string, error) {
	r.mu.RLock()
	replier, ok := r.adapters[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}

	return replier.Reply(ctx, snapshot.Study, snapshot.Sleep, snapshot.Mood, history, userMessage), nil
}
