package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/supportpro/backend/internal/model/chat"
	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	chatService "github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	actions quickaction.Store
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, actions quickaction.Store) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		actions: actions,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/sessions/{sessionID}/messages", h.handleSubmitMessage)
	r.Post("/sessions/{sessionID}/quick-actions", h.handleSubmitQuickAction)
}

type exchangeResponse struct {
	Exchange chat.Exchange `json:"exchange"`
	Session  chat.Session  `json:"session"`
}

type failureResponse struct {
	Error   string       `json:"error"`
	Session chat.Session `json:"session"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		if errors.Is(err, chatService.ErrTooManySessions) {
			utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	w.Header().Set("X-Session-Id", session.ID())
	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	h.respondExchange(r.Context(), w, session, func(ctx context.Context) (chat.Exchange, error) {
		return session.SubmitUserMessage(ctx, payload.Text)
	})
}

func (h *Handler) handleSubmitQuickAction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, found := h.actions.FindByLabel(payload.Label)
	if !found {
		utils.RespondError(w, http.StatusBadRequest, "unknown quick action")
		return
	}

	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	h.respondExchange(r.Context(), w, session, func(ctx context.Context) (chat.Exchange, error) {
		return session.SubmitQuickAction(ctx, action.Label)
	})
}

func (h *Handler) respondExchange(ctx context.Context, w http.ResponseWriter, session *chatService.Controller, submit func(context.Context) (chat.Exchange, error)) {
	exchange, err := submit(ctx)
	switch {
	case errors.Is(err, chatService.ErrSubmissionInFlight):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		log.Warn().Err(err).Str("session", session.ID()).Msg("chat exchange failed")
		utils.RespondJSON(w, http.StatusBadGateway, failureResponse{
			Error:   "the support assistant is unavailable, please try again",
			Session: session.Snapshot(),
		})
	default:
		utils.RespondJSON(w, http.StatusOK, exchangeResponse{Exchange: exchange, Session: session.Snapshot()})
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Controller, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}
