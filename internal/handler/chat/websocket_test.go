package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	chatModel "github.com/zhouzirui/supportpro/backend/internal/model/chat"
	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	chatservice "github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/internal/service/conversation"
)

type wsFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type slowClient struct {
	delay time.Duration
}

func (c slowClient) Send(ctx context.Context, text, _, _ string) (string, error) {
	select {
	case <-time.After(c.delay):
		return "slow: " + text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func dialSession(t *testing.T, client chatservice.ConversationClient, opts ...func(*WebSocketHandler)) (*websocket.Conn, *chatservice.Controller) {
	t.Helper()
	if client == nil {
		client = conversation.NewEchoClient(conversation.Options{})
	}
	chatSvc := chatservice.NewService(client, chatservice.Config{})
	store, err := quickaction.NewMemoryStore(quickaction.Seed())
	require.NoError(t, err)

	handler := NewWebSocketHandler(chatSvc, store, nil)
	for _, opt := range opts {
		opt(handler)
	}

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + session.ID() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	connected := readFrame(t, conn)
	require.Equal(t, "connected", connected.Type)
	require.Equal(t, session.ID(), connected.SessionID)
	return conn, session
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readEntry(t *testing.T, conn *websocket.Conn) chatModel.Entry {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, "entry", frame.Type)
	var entry chatModel.Entry
	require.NoError(t, json.Unmarshal(frame.Data, &entry))
	return entry
}

func TestWebSocketTextExchange(t *testing.T) {
	conn, session := dialSession(t, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "Hello"}}))

	user := readEntry(t, conn)
	require.Equal(t, chatModel.SenderUser, user.Sender)
	require.Equal(t, "Hello", user.Text)

	reply := readEntry(t, conn)
	require.Equal(t, chatModel.SenderBot, reply.Sender)
	require.Equal(t, "You said: Hello", reply.Text)

	require.Len(t, session.Transcript(), 2)
}

func TestWebSocketQuickAction(t *testing.T) {
	conn, _ := dialSession(t, nil)
	label := quickaction.Seed()[1].Label

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "quick_action", "data": map[string]string{"label": label}}))

	user := readEntry(t, conn)
	require.Equal(t, label, user.Text)
	require.Equal(t, chatModel.SourceQuickAction, user.Source)
	require.Equal(t, "You said: "+label, readEntry(t, conn).Text)
}

func TestWebSocketRejectsUnknownInput(t *testing.T) {
	conn, session := dialSession(t, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "quick_action", "data": map[string]string{"label": "nope"}}))
	require.Equal(t, "error", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	require.Equal(t, "error", readFrame(t, conn).Type)

	require.Empty(t, session.Transcript())
}

func TestWebSocketFailureFrame(t *testing.T) {
	conn, session := dialSession(t, failingClient{})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "ping"}}))

	require.Equal(t, "ping", readEntry(t, conn).Text)

	frame := readFrame(t, conn)
	require.Equal(t, "failure", frame.Type)
	var failure chatModel.Failure
	require.NoError(t, json.Unmarshal(frame.Data, &failure))
	require.Equal(t, "ping", failure.Text)
	require.Equal(t, string(conversation.KindNetwork), failure.Kind)

	require.Len(t, session.Transcript(), 1)
}

func TestWebSocketSurvivesReplySlowerThanReadTimeout(t *testing.T) {
	conn, session := dialSession(t, slowClient{delay: 600 * time.Millisecond}, func(h *WebSocketHandler) {
		h.readTimeout = 200 * time.Millisecond
	})

	for _, text := range []string{"first", "second"} {
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": text}}))
		require.Equal(t, text, readEntry(t, conn).Text)
		require.Equal(t, "slow: "+text, readEntry(t, conn).Text)
	}

	require.Len(t, session.Transcript(), 4)
}

func TestWebSocketUnknownSession(t *testing.T) {
	chatSvc := chatservice.NewService(conversation.NewEchoClient(conversation.Options{}), chatservice.Config{})
	store, err := quickaction.NewMemoryStore(quickaction.Seed())
	require.NoError(t, err)

	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, store, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
