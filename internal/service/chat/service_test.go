package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	chat "github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/internal/service/conversation"
)

func newService(cfg chat.Config) *chat.Service {
	return chat.NewService(conversation.NewEchoClient(conversation.Options{}), cfg)
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(chat.Config{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID())

	got, err := svc.GetSession(ctx, session.ID())
	require.NoError(t, err)
	require.Same(t, session, got)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(chat.Config{})
	_, err := svc.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newService(chat.Config{})
	ctx := context.Background()

	a, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())

	_, err = a.SubmitUserMessage(ctx, "Hi")
	require.NoError(t, err)
	require.Len(t, a.Transcript(), 2)
	require.Empty(t, b.Transcript())
}

func TestServiceDeleteSession(t *testing.T) {
	svc := newService(chat.Config{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSession(ctx, session.ID()))
	require.ErrorIs(t, svc.DeleteSession(ctx, session.ID()), chat.ErrSessionNotFound)
	require.Zero(t, svc.Count())
}

func TestServiceMaxSessions(t *testing.T) {
	svc := newService(chat.Config{MaxSessions: 1})
	ctx := context.Background()

	_, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx)
	require.ErrorIs(t, err, chat.ErrTooManySessions)
}

func TestServiceEvictIdle(t *testing.T) {
	svc := newService(chat.Config{IdleTTL: time.Minute})
	ctx := context.Background()

	stale, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	require.Zero(t, svc.EvictIdle(time.Now().UTC()))
	require.Equal(t, 1, svc.EvictIdle(time.Now().UTC().Add(2*time.Minute)))

	_, err = svc.GetSession(ctx, stale.ID())
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceRunEvictionStopsWithContext(t *testing.T) {
	svc := newService(chat.Config{IdleTTL: time.Minute, EvictionInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.RunEviction(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("eviction loop did not stop")
	}
}
