package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eunoia/backend/internal/middleware"
	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/model/wellbeing"
	"github.com/eunoia/backend/internal/service/agent"
	chatService "github.com/eunoia/backend/internal/service/chat"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/store/session"
)

type okReplier struct{}

func (okReplier) Reply(context.Context, []wellbeing.Record, []wellbeing.Record, []wellbeing.Record, []chat.Turn, string) string {
	return "ok"
}

func newTestRouter(verifier middleware.TokenVerifier) http.Handler {
	router := agent.NewRouter()
	router.Register(agent.ProviderOpenAI, okReplier{})
	svc := chatService.NewService(session.NewMemoryStore(), logs.NewStatic(nil), router)

	return NewRouter(Deps{
		Chat:           svc,
		Verifier:       verifier,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"providers":["openai"]`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestChatRoutesRequireTokenWhenAuthEnabled(t *testing.T) {
	verifier := middleware.NewJWTVerifier([]byte("secret"), "authenticated")
	r := newTestRouter(verifier)

	body := []byte(`{"user_id":"u1"}`)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/chat/session", bytes.NewReader(body)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	token, err := verifier.Sign("u1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/chat/session", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz should stay public, got %d", resp.Code)
	}
}

func TestMeditationRoutesAbsentWithoutService(t *testing.T) {
	r := newTestRouter(nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/meditate/backgrounds", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
