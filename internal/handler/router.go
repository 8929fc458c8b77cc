package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/supportpro/backend/internal/config"
	"github.com/zhouzirui/supportpro/backend/internal/handler/chat"
	"github.com/zhouzirui/supportpro/backend/internal/handler/page"
	"github.com/zhouzirui/supportpro/backend/internal/handler/quickaction"
	middlewarePkg "github.com/zhouzirui/supportpro/backend/internal/middleware"
	quickactionModel "github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	chatService "github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, chatSvc *chatService.Service, actions quickactionModel.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Log.Requests {
		r.Use(middlewarePkg.RequestLogger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	page.New(chatSvc, actions, cfg.Chat.BotName).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		quickaction.New(actions).RegisterRoutes(api)
		chat.New(chatSvc, actions).RegisterRoutes(api)
		chat.NewWebSocketHandler(chatSvc, actions, originChecker(cfg.Server.AllowedOrigin)).RegisterRoutes(api)
	})

	return r
}

// originChecker accepts websocket upgrades from the configured CORS origins.
// An empty or "*" setting accepts any origin.
func originChecker(allowed string) func(*http.Request) bool {
	origins := make(map[string]struct{})
	for _, origin := range strings.Split(allowed, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return nil
		}
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := origins[origin]; ok {
			return true
		}
		// Same-origin page served by this process.
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}
