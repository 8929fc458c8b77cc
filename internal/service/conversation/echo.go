package conversation

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EchoClient is an offline backend for local development and demos.
type EchoClient struct {
	opts Options
}

// NewEchoClient returns a client that repeats the user's text.
func NewEchoClient(opts Options) *EchoClient {
	return &EchoClient{opts: opts}
}

func (c *EchoClient) Send(ctx context.Context, text, sessionID, languageCode string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}
	if err := ctx.Err(); err != nil {
		return "", newExternalError("echo", err)
	}
	log.Debug().Str("session", sessionID).Str("language", c.opts.language(languageCode)).Msg("echo reply")
	return "You said: " + text, nil
}

func (c *EchoClient) Close() error {
	return nil
}
