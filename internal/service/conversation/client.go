// Package conversation relays a single user utterance to a hosted
// conversational backend and returns its fulfillment text. Clients hold no
// per-conversation state; continuity is carried by the session id the caller
// passes on every call.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/supportpro/backend/internal/config"
)

// DefaultLanguageCode is used when neither the caller nor the config sets one.
const DefaultLanguageCode = "en"

// ErrSessionRequired is returned when Send is called without a session id.
// It reports a caller bug, not a backend failure: it is returned before any
// outbound call and is never wrapped in an *ExternalServiceError.
var ErrSessionRequired = errors.New("conversation: session id is required")

// Client sends one text query within an external conversation session.
type Client interface {
	// Send returns the fulfillment text for text. An empty languageCode
	// selects the client's default. Failures of the outbound call are always
	// *ExternalServiceError; an empty sessionID yields ErrSessionRequired.
	Send(ctx context.Context, text, sessionID, languageCode string) (string, error)
	Close() error
}

// New builds the client selected by cfg.Conversation.Provider.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	opts := Options{
		LanguageCode: cfg.Conversation.LanguageCode,
		Timeout:      cfg.Conversation.Timeout,
	}

	switch cfg.Conversation.Provider {
	case config.ProviderDialogflow, "":
		return NewDialogflowClient(ctx, cfg.Dialogflow, opts)
	case config.ProviderArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return NewArkClient(ctx, chatModel, cfg.Ark.SystemPrompt, opts)
	case config.ProviderEcho:
		return NewEchoClient(opts), nil
	default:
		return nil, fmt.Errorf("conversation: unknown provider %q", cfg.Conversation.Provider)
	}
}

// Options are shared by every backend.
type Options struct {
	LanguageCode string
	// Timeout bounds one call. Zero means no local deadline.
	Timeout time.Duration
}

func (o Options) language(override string) string {
	if override != "" {
		return override
	}
	if o.LanguageCode != "" {
		return o.LanguageCode
	}
	return DefaultLanguageCode
}

func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.Timeout)
}
