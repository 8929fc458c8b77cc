package page

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/supportpro/backend/internal/model/chat"
	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	chatService "github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/pkg/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var chatTemplate = template.Must(template.ParseFS(templateFS, "templates/chat.html"))

// Handler 聊天页面处理器，负责渲染页面和处理表单提交
type Handler struct {
	chatSvc *chatService.Service
	actions quickaction.Store
	botName string
}

// New 创建页面处理器
func New(chatSvc *chatService.Service, actions quickaction.Store, botName string) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		actions: actions,
		botName: botName,
	}
}

// RegisterRoutes 注册页面及表单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/chat/messages", h.handleMessageForm)
	r.Post("/chat/quick-actions", h.handleQuickActionForm)
}

type viewData struct {
	BotName string
	Session chat.Session
	Actions []quickaction.Action
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.redirectToNewSession(w, r)
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		// 会话不存在或已过期，重新创建
		h.redirectToNewSession(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := viewData{
		BotName: h.botName,
		Session: session.Snapshot(),
		Actions: h.actions.List(),
	}
	if err := chatTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("render chat page failed")
	}
}

func (h *Handler) handleMessageForm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.formSession(w, r)
	if !ok {
		return
	}

	_, err := session.SubmitUserMessage(r.Context(), r.PostFormValue("text"))
	h.logSubmitError(session.ID(), err)
	redirectToSession(w, r, session.ID())
}

func (h *Handler) handleQuickActionForm(w http.ResponseWriter, r *http.Request) {
	action, found := h.actions.FindByLabel(r.PostFormValue("label"))
	if !found {
		utils.RespondError(w, http.StatusBadRequest, "unknown quick action")
		return
	}

	session, ok := h.formSession(w, r)
	if !ok {
		return
	}

	_, err := session.SubmitQuickAction(r.Context(), action.Label)
	h.logSubmitError(session.ID(), err)
	redirectToSession(w, r, session.ID())
}

func (h *Handler) formSession(w http.ResponseWriter, r *http.Request) (*chatService.Controller, bool) {
	if err := r.ParseForm(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid form")
		return nil, false
	}
	sessionID := r.PostFormValue("session")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err == nil {
		return session, true
	}

	// 会话已过期：在新会话中继续提交，避免丢失用户输入
	session, err = h.chatSvc.CreateSession(r.Context())
	if err != nil {
		http.Error(w, err.Error(), createErrorStatus(err))
		return nil, false
	}
	log.Info().Str("expired", sessionID).Str("session", session.ID()).Msg("form posted to an expired session, continuing in a new one")
	return session, true
}

func (h *Handler) logSubmitError(sessionID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, chatService.ErrSubmissionInFlight):
		log.Debug().Str("session", sessionID).Msg("form submission dropped while a reply is pending")
	default:
		log.Warn().Err(err).Str("session", sessionID).Msg("form submission failed")
	}
}

func (h *Handler) redirectToNewSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		http.Error(w, err.Error(), createErrorStatus(err))
		return
	}
	redirectToSession(w, r, session.ID())
}

func createErrorStatus(err error) int {
	if errors.Is(err, chatService.ErrTooManySessions) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func redirectToSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.Redirect(w, r, "/?session="+url.QueryEscape(sessionID), http.StatusSeeOther)
}
