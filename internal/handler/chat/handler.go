package chat

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eunoia/backend/internal/handler/httpx"
	"github.com/eunoia/backend/internal/model/chat"
	"github.com/eunoia/backend/internal/service/agent"
	chatService "github.com/eunoia/backend/internal/service/chat"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/store/session"
	"github.com/eunoia/backend/pkg/utils"
)

// DefaultModel 是未指定 model 时使用的智能体。
const DefaultModel = agent.ProviderOpenAI

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleStartSession)
	r.Get("/session/exists", h.handleSessionExists)
	r.Get("/session/full", h.handleSessionFull)
	r.Delete("/session", h.handleEndSession)
	r.Post("/message", h.handleSendMessage)
}

type startRequest struct {
	UserID string `json:"user_id"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Model     string `json:"model"`
}

type messageResponse struct {
	Reply   string      `json:"reply"`
	History []chat.Turn `json:"history"`
}

type existsResponse struct {
	SessionID *string `json:"session_id"`
}

type fullResponse struct {
	SessionID *string     `json:"session_id"`
	Logs      any         `json:"logs"`
	History   []chat.Turn `json:"history"`
}

// handleStartSession 拉取日志并开启新会话
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload startRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := httpx.ResolveUser(r, payload.UserID)
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}

	result, err := h.chatSvc.Start(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, startResponse{SessionID: result.SessionID, Reply: result.Reply})
}

// handleSendMessage 发送一条消息并返回回复与完整历史
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := httpx.ResolveUser(r, payload.UserID)
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if payload.Model == "" {
		payload.Model = DefaultModel
	}

	result, err := h.chatSvc.Send(r.Context(), userID, payload.SessionID, payload.Model, payload.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, messageResponse{Reply: result.Reply, History: result.History})
}

// handleSessionExists 返回当前会话 ID，没有会话时为 null
func (h *Handler) handleSessionExists(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	if current == nil {
		utils.RespondJSON(w, http.StatusOK, existsResponse{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, existsResponse{SessionID: &current.ID})
}

// handleSessionFull 返回当前会话的日志快照与历史
func (h *Handler) handleSessionFull(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	if current == nil {
		utils.RespondJSON(w, http.StatusOK, fullResponse{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, fullResponse{
		SessionID: &current.ID,
		Logs:      current.Snapshot,
		History:   current.History,
	})
}

// handleEndSession 删除当前会话
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.ResolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return
	}

	if err := h.chatSvc.End(r.Context(), userID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// currentSession 读取用户当前会话；已写出错误响应时返回 false。
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	userID, err := httpx.ResolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		utils.RespondError(w, httpx.UserStatus(err), err.Error())
		return nil, false
	}

	current, err := h.chatSvc.Current(r.Context(), userID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, true
	}
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return current, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, agent.ErrInvalidProvider):
		utils.RespondError(w, http.StatusBadRequest, "Invalid model selection")
	case errors.Is(err, chatService.ErrEmptyMessage), errors.Is(err, chatService.ErrUserRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, logs.ErrFetch):
		log.Printf("[chat] log fetch failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "Failed to fetch activity logs")
	case errors.Is(err, session.ErrUnavailable):
		log.Printf("[chat] session store unavailable: %v", err)
		utils.RespondError(w, http.StatusServiceUnavailable, "Session store unavailable")
	default:
		log.Printf("[chat] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
