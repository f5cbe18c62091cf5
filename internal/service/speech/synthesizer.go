// Package speech turns meditation transcripts into audio.
package speech

import (
	"context"
	"errors"
)

var (
	ErrEmptyText     = errors.New("speech text is empty")
	ErrEmptyAudio    = errors.New("speech synthesis returned no audio")
	ErrNotConfigured = errors.New("speech synthesis is not configured")
)

// Request describes one synthesis call. An empty Voice uses the
// synthesizer's default.
type Request struct {
	Text  string
	Voice string
}

// Synthesizer produces mp3 audio for a piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
