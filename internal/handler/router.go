package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eunoia/backend/internal/handler/chat"
	"github.com/eunoia/backend/internal/handler/meditate"
	middlewarePkg "github.com/eunoia/backend/internal/middleware"
	chatService "github.com/eunoia/backend/internal/service/chat"
	"github.com/eunoia/backend/internal/service/meditation"
	"github.com/eunoia/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。Meditation 与 Verifier 可以为空。
type Deps struct {
	Chat           *chatService.Service
	Meditation     *meditation.Service
	Verifier       middlewarePkg.TokenVerifier
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"providers": deps.Chat.Providers(),
		})
	})

	r.Group(func(api chi.Router) {
		if deps.Verifier != nil {
			api.Use(middlewarePkg.Auth(deps.Verifier))
		} else {
			log.Println("[router] authentication disabled, trusting user_id from requests")
		}

		api.Route("/chat", chat.New(deps.Chat).RegisterRoutes)

		if deps.Meditation != nil {
			api.Route("/meditate", meditate.New(deps.Meditation).RegisterRoutes)
		}
	})

	return r
}
