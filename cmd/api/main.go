package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/eunoia/backend/internal/config"
	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/handler"
	"github.com/eunoia/backend/internal/middleware"
	"github.com/eunoia/backend/internal/service/agent"
	"github.com/eunoia/backend/internal/service/chat"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/service/meditation"
	"github.com/eunoia/backend/internal/service/speech"
	"github.com/eunoia/backend/internal/store/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	if err := run(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Open(ctx, cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store := newSessionStore(cfg.Store, db)
	defer store.Close()

	logProvider := logs.NewSQLProvider(db, cfg.Logs.Window)

	backends, err := agent.NewBackends(ctx, cfg.Providers)
	if err != nil {
		return fmt.Errorf("failed to initialize model backends: %w", err)
	}
	if len(backends) == 0 {
		log.Println("warning: no model provider configured, every chat message will be rejected")
	}

	router, err := agent.NewRouterFromBackends(ctx, backends)
	if err != nil {
		return fmt.Errorf("failed to initialize agent router: %w", err)
	}

	chatService := chat.NewService(store, logProvider, router)
	meditationService, err := newMeditationService(ctx, cfg, db, backends, logProvider)
	if err != nil {
		return err
	}

	var verifier middleware.TokenVerifier
	if cfg.Auth.Enabled() {
		verifier = middleware.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Audience)
	} else {
		log.Println("AUTH_JWT_SECRET 未配置，跳过令牌校验")
	}

	httpHandler := handler.NewRouter(handler.Deps{
		Chat:           chatService,
		Meditation:     meditationService,
		Verifier:       verifier,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return startServer(ctx, cfg.Server, httpHandler)
}

func newSessionStore(cfg config.StoreConfig, db *sql.DB) session.Store {
	if cfg.Backend == config.StoreBackendMemory {
		log.Println("session store: memory")
		return session.NewMemoryStore()
	}
	log.Printf("session store: sqlite (%s)", cfg.DatabasePath)
	return session.NewSQLiteStore(db)
}

// newMeditationService returns a nil service when the coach, writer or speech
// backend is missing; the meditation routes are then not mounted.
func newMeditationService(ctx context.Context, cfg *config.Config, db *sql.DB, backends map[string]model.ChatModel, moods logs.MoodSource) (*meditation.Service, error) {
	coach, ok := backends[cfg.Meditation.CoachProvider]
	if !ok {
		log.Printf("meditation disabled: coach provider %q not configured", cfg.Meditation.CoachProvider)
		return nil, nil
	}
	writer, ok := backends[cfg.Meditation.WriterProvider]
	if !ok {
		log.Printf("meditation disabled: writer provider %q not configured", cfg.Meditation.WriterProvider)
		return nil, nil
	}

	var synth speech.Synthesizer
	switch cfg.Meditation.TTS {
	case config.TTSVolcengine:
		if !cfg.Speech.Enabled {
			log.Println("meditation disabled: 语音服务凭证未配置")
			return nil, nil
		}
		synth = speech.NewVolcengineSynthesizer(cfg.Speech, cfg.Meditation.MaxAudioBytes)
	default:
		if !cfg.Providers.OpenAI.Enabled() {
			log.Println("meditation disabled: OPENAI_API_KEY is required for speech")
			return nil, nil
		}
		synth = speech.NewOpenAISynthesizer(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL, cfg.Meditation.MaxAudioBytes)
	}

	catalog, err := meditation.LoadCatalog(cfg.Meditation.BackgroundsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load background catalogue: %w", err)
	}

	svc, err := meditation.NewService(ctx, coach, writer, synth, moods, meditation.NewSQLLibrary(db), catalog, meditation.Options{
		OutputDir:     cfg.Meditation.OutputDir,
		MaxAudioBytes: cfg.Meditation.MaxAudioBytes,
	})
	if err != nil {
		log.Printf("warning: failed to initialize meditation service: %v", err)
		return nil, nil
	}

	log.Printf("Meditation service initialized (tts=%s)", cfg.Meditation.TTS)
	return svc, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Eunoia backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
