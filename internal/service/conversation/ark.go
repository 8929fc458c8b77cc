package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const providerArk = "ark"

// ArkClient answers through a Volcengine Ark chat model. Each call is a
// single turn: the system prompt plus the user's text. The language code is
// passed to the model as a reply-language hint.
type ArkClient struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	opts         Options
}

// NewArkClient compiles the prompt chain around chatModel.
func NewArkClient(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string, opts Options) (*ArkClient, error) {
	if chatModel == nil {
		return nil, errors.New("conversation: chat model must not be nil")
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversation: compile ark chain: %w", err)
	}

	return &ArkClient{
		chain:        runnable,
		systemPrompt: strings.TrimSpace(systemPrompt),
		opts:         opts,
	}, nil
}

// Send runs the chain once and returns the model's reply.
func (c *ArkClient) Send(ctx context.Context, text, sessionID, languageCode string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}

	ctx, cancel := c.opts.withTimeout(ctx)
	defer cancel()

	resp, err := c.chain.Invoke(ctx, map[string]any{
		"system": c.buildSystemPrompt(c.opts.language(languageCode)),
		"query":  text,
	})
	if err != nil {
		extErr := newExternalError(providerArk, err)
		log.Warn().Err(err).Str("session", sessionID).Str("kind", string(extErr.Kind)).Msg("ark generation failed")
		return "", extErr
	}
	if resp == nil {
		return "", malformed(providerArk, errors.New("model returned no message"))
	}

	log.Debug().Str("session", sessionID).Int("length", len(resp.Content)).Msg("ark generated reply")
	return resp.Content, nil
}

func (c *ArkClient) buildSystemPrompt(languageCode string) string {
	var builder strings.Builder
	builder.WriteString(c.systemPrompt)
	builder.WriteString("\nReply in the language with code ")
	builder.WriteString(languageCode)
	builder.WriteString(".")
	return builder.String()
}

// Close is a no-op; the Ark model holds no long-lived connection.
func (c *ArkClient) Close() error {
	return nil
}
