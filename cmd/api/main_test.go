package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia/backend/internal/config"
	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/service/agent"
	"github.com/eunoia/backend/internal/service/logs"
)

func meditationConfig(t *testing.T, backgrounds string) *config.Config {
	t.Helper()
	return &config.Config{
		Providers: config.ProvidersConfig{
			OpenAI: config.OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini"},
		},
		Meditation: config.MeditationConfig{
			OutputDir:       t.TempDir(),
			BackgroundsFile: backgrounds,
			TTS:             config.TTSOpenAI,
			CoachProvider:   agent.ProviderOpenAI,
			WriterProvider:  agent.ProviderOpenAI,
			MaxAudioBytes:   1024,
		},
	}
}

func testBackends() map[string]model.ChatModel {
	return map[string]model.ChatModel{
		agent.ProviderOpenAI: agent.NewOpenAIChatModel("test-key", "", "gpt-4o-mini"),
	}
}

func TestNewMeditationServiceReturnsCatalogueError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backgrounds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backgrounds: [unterminated"), 0o644))

	svc, err := newMeditationService(context.Background(), meditationConfig(t, path), nil, testBackends(), logs.NewStatic(nil))
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "background catalogue")
}

func TestNewMeditationServiceDisabledWithoutWriter(t *testing.T) {
	cfg := meditationConfig(t, "")
	cfg.Meditation.WriterProvider = agent.ProviderGemini

	svc, err := newMeditationService(context.Background(), cfg, nil, testBackends(), logs.NewStatic(nil))
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestNewMeditationServiceBuiltinCatalogue(t *testing.T) {
	db, err := database.Open(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := newMeditationService(context.Background(), meditationConfig(t, ""), db, testBackends(), logs.NewStatic(nil))
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "flowing_focus", svc.Catalog().Default())
}
