package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/supportpro/backend/internal/config"
	"github.com/zhouzirui/supportpro/backend/internal/logging"
	"github.com/zhouzirui/supportpro/backend/internal/service/conversation"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		sessionID string
		language  string
		provider  string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chattester [message...]",
		Short: "Send messages to the configured conversation backend",
		Long: "Sends each argument as one message within a single session and prints the reply.\n" +
			"Without arguments, messages are read line by line from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "no .env loaded, using process environment: %v\n", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, "console")

			if provider != "" {
				cfg.Conversation.Provider = provider
			}
			if sessionID == "" {
				sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
			}

			client, err := conversation.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("create conversation client: %w", err)
			}
			defer client.Close()

			messages := args
			if len(messages) == 0 {
				messages, err = readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			log.Info().Str("provider", cfg.Conversation.Provider).Str("session", sessionID).Msg("sending messages")
			return sendAll(cmd.Context(), cmd.OutOrStdout(), client, sessionID, language, timeout, messages)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to reuse (generated when empty)")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "language code, defaults to CONVERSATION_LANGUAGE")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "override CONVERSATION_PROVIDER (dialogflow, ark, echo)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "per-message timeout")

	return cmd
}

type sender interface {
	Send(ctx context.Context, text, sessionID, languageCode string) (string, error)
}

func sendAll(ctx context.Context, out io.Writer, client sender, sessionID, language string, timeout time.Duration, messages []string) error {
	var failed int
	for _, msg := range messages {
		if msg == "" {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		reply, err := client.Send(callCtx, msg, sessionID, language)
		cancel()

		fmt.Fprintf(out, "> %s\n", msg)
		if err != nil {
			failed++
			kind := conversation.KindUnknown
			var extErr *conversation.ExternalServiceError
			if errors.As(err, &extErr) {
				kind = extErr.Kind
			}
			fmt.Fprintf(out, "! %s error: %v\n", kind, err)
			continue
		}
		fmt.Fprintf(out, "< %s (%s)\n", reply, time.Since(start).Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d messages failed", failed, len(messages))
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lines, nil
}
