// Package meditation generates short guided meditations from a user's mood
// history: a coach model suggests a topic, a writer model drafts the script
// and a synthesizer voices it.
package meditation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/eunoia/backend/internal/model/wellbeing"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/service/speech"
)

var (
	ErrEmptyTopic      = errors.New("meditation prompt is required")
	ErrEmptyTranscript = errors.New("meditation transcript is empty")
	ErrAudioTooLarge   = errors.New("meditation audio exceeds the size limit")
	ErrAudioNotFound   = errors.New("meditation audio not found")
	ErrUserRequired    = errors.New("user id is required")
)

const (
	// FallbackPrompt is suggested when the coach cannot help.
	FallbackPrompt = "Create a meditation for relaxation."
	// RecentMoodCount is how many mood logs feed the coach.
	RecentMoodCount = 3
	// DefaultMaxAudioBytes caps stored audio.
	DefaultMaxAudioBytes = 10 * 1024 * 1024
	// DownloadPrefix is the URL path under which audio files are served.
	DownloadPrefix = "/meditate/download/"

	noMoodLogs   = "No recent mood logs."
	writerSystem = "You are a meditation guide. <100 words."
)

const coachInstruction = "You are a meditation coach. Your job is to generate a short, specific prompt to feed into a specialized meditation generator. " +
	"This prompt should capture the user's current emotional state and needs, based on their recent mood logs. " +
	"Do NOT generate a meditation script, only a prompt for the generator.\n" +
	"Mood logs are in the format: score/5, note.\n" +
	"For example:\n" +
	"- Mood logs: 2/5, 'I'm overwhelmed and anxious.'\n" +
	"  Prompt: 'A meditation for calming anxiety and feeling overwhelmed.'\n" +
	"- Mood logs: 4/5, 'Feeling focused and positive.'\n" +
	"  Prompt: 'A meditation to maintain focus and positivity.'\n" +
	"- Mood logs: 3/5, 'Worried about an upcoming exam.'\n" +
	"  Prompt: 'A meditation to ease worry and boost confidence before an exam.'\n" +
	"Now, given these recent mood logs, generate a single, short prompt for the meditation generator.\n"

// Options tunes a Service.
type Options struct {
	OutputDir     string
	MaxAudioBytes int64
	Now           func() time.Time
}

// Service generates and stores meditations.
type Service struct {
	coach     compose.Runnable[map[string]any, *schema.Message]
	writer    compose.Runnable[map[string]any, *schema.Message]
	synth     speech.Synthesizer
	moods     logs.MoodSource
	library   Library
	catalog   *Catalog
	outputDir string
	maxBytes  int64
	now       func() time.Time
}

// NewService compiles the coach and writer chains and prepares the output
// directory.
func NewService(ctx context.Context, coach, writer model.ChatModel, synth speech.Synthesizer, moods logs.MoodSource, library Library, catalog *Catalog, opts Options) (*Service, error) {
	if coach == nil || writer == nil {
		return nil, fmt.Errorf("meditation needs both a coach and a writer model")
	}
	if catalog == nil {
		catalog = BuiltinCatalog()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "generated_audios"
	}
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating meditation output directory: %w", err)
	}

	coachChain, err := compileChain(ctx, coach,
		schema.UserMessage("{instruction}Recent mood logs: {logs}\nPrompt:"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile coach chain: %w", err)
	}

	writerChain, err := compileChain(ctx, writer,
		schema.SystemMessage(writerSystem),
		schema.UserMessage("Create a 1-minute calming meditation for: {topic}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile writer chain: %w", err)
	}

	return &Service{
		coach:     coachChain,
		writer:    writerChain,
		synth:     synth,
		moods:     moods,
		library:   library,
		catalog:   catalog,
		outputDir: opts.OutputDir,
		maxBytes:  opts.MaxAudioBytes,
		now:       opts.Now,
	}, nil
}

func compileChain(ctx context.Context, chatModel model.ChatModel, templates ...schema.MessagesTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, templates...))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Catalog exposes the background catalogue.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// SuggestPrompt asks the coach for a meditation topic based on the user's
// latest moods. It always returns a usable prompt.
func (s *Service) SuggestPrompt(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrUserRequired
	}

	moods, err := s.moods.RecentMoods(ctx, userID, RecentMoodCount)
	if err != nil {
		log.Printf("[meditation] mood lookup failed user=%s: %v", userID, err)
		moods = nil
	}

	response, err := s.coach.Invoke(ctx, map[string]any{
		"instruction": coachInstruction,
		"logs":        FormatMoods(moods),
	})
	if err != nil {
		log.Printf("[meditation] coach call failed: %v", err)
		return FallbackPrompt, nil
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return FallbackPrompt, nil
	}
	return strings.TrimSpace(response.Content), nil
}

// FormatMoods renders mood records as "score: S, note: N" joined by "; ".
func FormatMoods(moods []wellbeing.Record) string {
	if len(moods) == 0 {
		return noMoodLogs
	}
	parts := make([]string, 0, len(moods))
	for _, mood := range moods {
		parts = append(parts, fmt.Sprintf("score: %s, note: %s", field(mood, "score"), field(mood, "note")))
	}
	return strings.Join(parts, "; ")
}

func field(record wellbeing.Record, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Create writes a transcript for topic, voices it, stores the audio file and
// records the meditation.
func (s *Service) Create(ctx context.Context, userID, topic, background string) (*Meditation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}

	response, err := s.writer.Invoke(ctx, map[string]any{"topic": topic})
	if err != nil {
		return nil, fmt.Errorf("writing meditation transcript: %w", err)
	}
	transcript := ""
	if response != nil {
		transcript = strings.TrimSpace(response.Content)
	}
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	audio, err := s.synth.Synthesize(ctx, speech.Request{Text: transcript})
	if err != nil {
		return nil, fmt.Errorf("synthesizing meditation audio: %w", err)
	}
	if int64(len(audio)) > s.maxBytes {
		log.Printf("[meditation] audio too large user=%s bytes=%d", userID, len(audio))
		return nil, ErrAudioTooLarge
	}

	created := s.now().UTC()
	filename, err := s.writeAudio(userID, created, audio)
	if err != nil {
		return nil, err
	}

	m := Meditation{
		ID:         uuid.NewString(),
		UserID:     userID,
		Transcript: transcript,
		AudioURL:   DownloadPrefix + filename,
		Background: s.catalog.Resolve(background).Key,
		CreatedAt:  created,
	}
	if err := s.library.Save(ctx, m); err != nil {
		_ = os.Remove(filepath.Join(s.outputDir, filename))
		return nil, err
	}

	log.Printf("[meditation] created user=%s file=%s bytes=%d", userID, filename, len(audio))
	return &m, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// writeAudio stores audio as <user>_<unix>.mp3, adding a counter when that
// name is taken.
func (s *Service) writeAudio(userID string, created time.Time, audio []byte) (string, error) {
	base := fmt.Sprintf("%s_%d", unsafeFilenameChars.ReplaceAllString(userID, "_"), created.Unix())

	for attempt := 0; attempt < 100; attempt++ {
		name := base + ".mp3"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.mp3", base, attempt)
		}

		f, err := os.OpenFile(filepath.Join(s.outputDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating audio file: %w", err)
		}

		if _, err := f.Write(audio); err != nil {
			f.Close()
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("writing audio file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("closing audio file: %w", err)
		}
		return name, nil
	}
	return "", fmt.Errorf("no free audio file name for %s", base)
}

// List returns the user's meditations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Meditation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	return s.library.List(ctx, userID)
}

// Audio is an opened audio file.
type Audio struct {
	io.ReadSeekCloser
	Name    string
	ModTime time.Time
}

// Open opens a stored audio file by its bare file name.
func (s *Service) Open(filename string) (*Audio, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, ErrAudioNotFound
	}

	f, err := os.Open(filepath.Join(s.outputDir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAudioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audio file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrAudioNotFound
	}

	return &Audio{ReadSeekCloser: f, Name: filename, ModTime: info.ModTime()}, nil
}
