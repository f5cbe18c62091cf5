package session

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
)

// timeLayout is fixed width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var codec = sonic.ConfigStd

func encodeSnapshot(snapshot wellbeing.Snapshot) (string, error) {
	data, err := codec.Marshal(snapshot.Normalize())
	if err != nil {
		return "", fmt.Errorf("encoding log snapshot: %w", err)
	}
	return string(data), nil
}

func decodeSnapshot(raw string) (wellbeing.Snapshot, error) {
	var snapshot wellbeing.Snapshot
	if err := codec.UnmarshalFromString(raw, &snapshot); err != nil {
		return wellbeing.Snapshot{}, fmt.Errorf("decoding log snapshot: %w", err)
	}
	return snapshot.Normalize(), nil
}

func encodeHistory(history []chat.Turn) (string, error) {
	if history == nil {
		history = []chat.Turn{}
	}
	data, err := codec.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encoding history: %w", err)
	}
	return string(data), nil
}

func decodeHistory(raw string) ([]chat.Turn, error) {
	history := []chat.Turn{}
	if err := codec.UnmarshalFromString(raw, &history); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return history, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
