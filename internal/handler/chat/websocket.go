package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/supportpro/backend/internal/model/chat"
	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	chatService "github.com/zhouzirui/supportpro/backend/internal/service/chat"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
)

// WebSocketHandler 会话的WebSocket处理器
type WebSocketHandler struct {
	chatSvc     *chatService.Service
	actions     quickaction.Store
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器，checkOrigin 为 nil 时不校验来源
func NewWebSocketHandler(chatSvc *chatService.Service, actions quickaction.Store, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		actions: actions,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout: wsReadTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type textPayload struct {
	Text string `json:"text"`
}

type quickActionPayload struct {
	Label string `json:"label"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("session", sessionID).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	// WriteControl 可与 WriteJSON 并发调用
	go h.pingLoop(ctx, conn)

	h.send(conn, sessionID, "connected", session.Snapshot())

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", sessionID).Msg("websocket read failed")
			}
			return
		}
		// 后端调用期间不读取连接，pong 也不会被处理，调用结束后重新计时
		conn.SetReadDeadline(time.Time{})
		h.handleMessage(ctx, conn, session, &msg)
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, session *chatService.Controller, msg *inboundMessage) {
	var (
		exchange chat.Exchange
		err      error
	)

	switch msg.Type {
	case "text":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(conn, "invalid text payload")
			return
		}
		exchange, err = session.SubmitUserMessage(ctx, payload.Text)
	case "quick_action":
		var payload quickActionPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(conn, "invalid quick action payload")
			return
		}
		action, ok := h.actions.FindByLabel(payload.Label)
		if !ok {
			h.sendError(conn, "unknown quick action")
			return
		}
		exchange, err = session.SubmitQuickAction(ctx, action.Label)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
		return
	}

	sessionID := session.ID()
	if errors.Is(err, chatService.ErrSubmissionInFlight) {
		h.sendError(conn, err.Error())
		return
	}
	if exchange.Skipped {
		return
	}
	if exchange.User != nil {
		h.send(conn, sessionID, "entry", exchange.User)
	}
	if err != nil {
		h.send(conn, sessionID, "failure", session.Failure())
		return
	}
	if exchange.Reply != nil {
		h.send(conn, sessionID, "entry", exchange.Reply)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, sessionID, kind string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Str("type", kind).Msg("websocket write failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Msg("websocket write error failed")
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
