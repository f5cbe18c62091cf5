package meditate

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eunoia/backend/internal/handler/httpx"
	"github.com/eunoia/backend/internal/service/meditation"
	"github.com/eunoia/backend/pkg/utils"
)

// Handler 冥想音频的HTTP处理器
type Handler struct {
	svc *meditation.Service
}

// New 创建冥想处理器
func New(svc *meditation.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册冥想相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/prompt", h.handlePrompt)
	r.Get("/list", h.handleList)
	r.Get("/backgrounds", h.handleBackgrounds)
	r.Get("/download/{filename}", h.handleDownload)
}

type createResponse struct {
	Transcript string `json:"transcript"`
	AudioURL   string `json:"audioUrl"`
	Background string `json:"background"`
}

// handleCreate 根据表单中的主题生成冥想音频
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		utils.RespondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	userID, err := httpx.ResolveUser(r, r.FormValue("user_id"))
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}

	background := r.FormValue("background")
	if background == "" {
		background = h.svc.Catalog().Default()
	}

	m, err := h.svc.Create(r.Context(), userID, r.FormValue("prompt"), background)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, createResponse{
		Transcript: m.Transcript,
		AudioURL:   m.AudioURL,
		Background: m.Background,
	})
}

// handlePrompt 根据最近的心情记录推荐冥想主题
func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.ResolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}

	prompt, err := h.svc.SuggestPrompt(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

// handleList 列出用户的冥想记录
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.ResolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}

	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"meditations": items})
}

func (h *Handler) handleBackgrounds(w http.ResponseWriter, _ *http.Request) {
	catalog := h.svc.Catalog()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"default":     catalog.Default(),
		"backgrounds": catalog.List(),
	})
}

// handleDownload 以附件形式返回音频文件
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	audio, err := h.svc.Open(filename)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", audio.Name))
	http.ServeContent(w, r, audio.Name, audio.ModTime, audio)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meditation.ErrAudioNotFound):
		utils.RespondError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, meditation.ErrEmptyTopic), errors.Is(err, meditation.ErrUserRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, meditation.ErrAudioTooLarge):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "Audio file exceeds 10MB limit")
	case errors.Is(err, meditation.ErrEmptyTranscript):
		utils.RespondError(w, http.StatusBadGateway, "Meditation generation returned no transcript")
	default:
		log.Printf("[meditate] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Meditation generation failed")
	}
}
