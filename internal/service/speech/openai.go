package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini-tts"
	DefaultOpenAIVoice = "nova"
)

// OpenAISynthesizer calls the OpenAI audio speech endpoint.
type OpenAISynthesizer struct {
	client   openai.Client
	model    string
	voice    string
	maxBytes int64
}

// NewOpenAISynthesizer creates a synthesizer. maxBytes caps how much audio is
// read from the response; zero means no cap.
func NewOpenAISynthesizer(apiKey, baseURL string, maxBytes int64) *OpenAISynthesizer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAISynthesizer{
		client:   openai.NewClient(opts...),
		model:    DefaultOpenAIModel,
		voice:    DefaultOpenAIVoice,
		maxBytes: maxBytes,
	}
}

// Synthesize implements Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := s.voice
	if req.Voice != "" {
		voice = req.Voice
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request: %w", err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if s.maxBytes > 0 {
		// One byte over the cap lets callers detect oversize audio.
		body = io.LimitReader(resp.Body, s.maxBytes+1)
	}

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading openai speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
