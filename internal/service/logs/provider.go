// Package logs supplies point-in-time snapshots of a user's study, sleep and
// mood records.
package logs

import (
	"context"
	"errors"
	"sync"

	"github.com/eunoia/backend/internal/model/wellbeing"
)

// ErrFetch marks a failure to load a snapshot. It is distinct from any
// session lookup error.
var ErrFetch = errors.New("failed to fetch activity logs")

// Provider fetches the recent activity records of a user.
type Provider interface {
	Fetch(ctx context.Context, userID string) (wellbeing.Snapshot, error)
}

// MoodSource returns the latest mood records of a user, newest first.
type MoodSource interface {
	RecentMoods(ctx context.Context, userID string, limit int) ([]wellbeing.Record, error)
}

// Static serves fixed snapshots from memory.
type Static struct {
	mu        sync.RWMutex
	snapshots map[string]wellbeing.Snapshot
}

// NewStatic returns a provider preloaded with snapshots keyed by user id.
func NewStatic(snapshots map[string]wellbeing.Snapshot) *Static {
	s := &Static{snapshots: make(map[string]wellbeing.Snapshot, len(snapshots))}
	for userID, snapshot := range snapshots {
		s.snapshots[userID] = snapshot.Normalize()
	}
	return s
}

// Set replaces the snapshot served for userID.
func (s *Static) Set(userID string, snapshot wellbeing.Snapshot) {
	s.mu.Lock()
	s.snapshots[userID] = snapshot.Normalize()
	s.mu.Unlock()
}

// Fetch returns the stored snapshot, or an empty one for unknown users.
func (s *Static) Fetch(_ context.Context, userID string) (wellbeing.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[userID].Normalize(), nil
}

// RecentMoods returns up to limit mood records from the stored snapshot.
func (s *Static) RecentMoods(_ context.Context, userID string, limit int) ([]wellbeing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moods := s.snapshots[userID].Mood
	if limit > 0 && len(moods) > limit {
		moods = moods[:limit]
	}
	return append([]wellbeing.Record(nil), moods...), nil
}
