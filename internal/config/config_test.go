package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "LOG_WINDOW_DAYS", "MEDITATION_TTS", "OPENAI_API_KEY", "AUTH_JWT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Backend != StoreBackendSQLite {
		t.Fatalf("unexpected store backend: %s", cfg.Store.Backend)
	}
	if cfg.Logs.Window != 15*24*time.Hour {
		t.Fatalf("unexpected log window: %v", cfg.Logs.Window)
	}
	if cfg.Providers.OpenAI.Enabled() {
		t.Fatal("openai must be disabled without an api key")
	}
	if cfg.Auth.Enabled() {
		t.Fatal("auth must be disabled without a secret")
	}
	if cfg.Auth.Audience != "authenticated" {
		t.Fatalf("unexpected audience: %s", cfg.Auth.Audience)
	}
	if cfg.Meditation.MaxAudioBytes != 10*1024*1024 {
		t.Fatalf("unexpected max audio bytes: %d", cfg.Meditation.MaxAudioBytes)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":            "80 80",
		"STORE_BACKEND":   "redis",
		"LOG_WINDOW_DAYS": "fortnight",
		"MEDITATION_TTS":  "espeak",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestParseListEnv(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	got := parseListEnv("ALLOWED_ORIGINS")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
