package meditate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/middleware"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/service/meditation"
	"github.com/eunoia/backend/internal/service/speech"
)

type staticModel struct{ reply string }

func (m staticModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m staticModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, input, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (staticModel) BindTools([]*schema.ToolInfo) error { return nil }

type staticSynth struct{}

func (staticSynth) Synthesize(context.Context, speech.Request) ([]byte, error) {
	return []byte("ID3audio"), nil
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.MemoryPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc, err := meditation.NewService(ctx,
		staticModel{reply: "A meditation for rest."},
		staticModel{reply: "Close your eyes."},
		staticSynth{},
		logs.NewStatic(nil),
		meditation.NewSQLLibrary(db),
		meditation.BuiltinCatalog(),
		meditation.Options{OutputDir: t.TempDir(), Now: func() time.Time { return time.Unix(1700000000, 0) }},
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func postForm(r http.Handler, values url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateAndDownload(t *testing.T) {
	r := setupRouter(t)

	resp := postForm(r, url.Values{"prompt": {"rest"}, "user_id": {"u1"}}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body createResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Transcript != "Close your eyes." || body.Background != "flowing_focus" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.AudioURL != "/meditate/download/u1_1700000000.mp3" {
		t.Fatalf("unexpected audio url %q", body.AudioURL)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/u1_1700000000.mp3", nil)
	download := httptest.NewRecorder()
	r.ServeHTTP(download, req)
	if download.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", download.Code)
	}
	if ct := download.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(download.Header().Get("Content-Disposition"), "attachment") {
		t.Fatal("expected attachment disposition")
	}
	data, _ := io.ReadAll(download.Body)
	if string(data) != "ID3audio" {
		t.Fatalf("audio = %q", data)
	}
}

func TestDownloadMissing(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/download/nope.mp3", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	r := setupRouter(t)

	if resp := postForm(r, url.Values{"user_id": {"u1"}}, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing prompt: expected 400, got %d", resp.Code)
	}
	if resp := postForm(r, url.Values{"prompt": {"rest"}}, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing user: expected 400, got %d", resp.Code)
	}
}

func TestCreateUserMismatch(t *testing.T) {
	r := setupRouter(t)
	verifier := middleware.NewJWTVerifier([]byte("secret"), "authenticated")
	token, err := verifier.Sign("u1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	secured := middleware.Auth(verifier)(r)
	resp := postForm(secured, url.Values{"prompt": {"rest"}, "user_id": {"u2"}}, token)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestPromptListAndBackgrounds(t *testing.T) {
	r := setupRouter(t)

	get := func(path string) *httptest.ResponseRecorder {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		return resp
	}

	resp := get("/prompt?user_id=u1")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "A meditation for rest.") {
		t.Fatalf("unexpected prompt response %d %s", resp.Code, resp.Body.String())
	}

	resp = get("/list?user_id=u1")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"meditations":[]`) {
		t.Fatalf("unexpected list response %d %s", resp.Code, resp.Body.String())
	}

	resp = get("/backgrounds")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"default":"flowing_focus"`) {
		t.Fatalf("unexpected backgrounds response %s", resp.Body.String())
	}
}
