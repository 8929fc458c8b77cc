package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/supportpro/backend/internal/config"
	"github.com/zhouzirui/supportpro/backend/internal/handler"
	"github.com/zhouzirui/supportpro/backend/internal/logging"
	"github.com/zhouzirui/supportpro/backend/internal/model/quickaction"
	"github.com/zhouzirui/supportpro/backend/internal/service/chat"
	"github.com/zhouzirui/supportpro/backend/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded, using process environment only")
	}

	actions, err := loadQuickActions(cfg.Chat.QuickActionsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load quick actions")
	}

	client, err := conversation.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Conversation.Provider).Msg("failed to initialize conversation client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing conversation client")
		}
	}()
	log.Info().
		Str("provider", cfg.Conversation.Provider).
		Str("language", cfg.Conversation.LanguageCode).
		Msg("conversation client ready")

	chatService := chat.NewService(client, chat.Config{
		LanguageCode:     cfg.Conversation.LanguageCode,
		IdleTTL:          cfg.Chat.SessionIdleTTL,
		EvictionInterval: cfg.Chat.EvictionInterval,
		MaxSessions:      cfg.Chat.MaxSessions,
	})

	router := handler.NewRouter(cfg, chatService, actions)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("bot", cfg.Chat.BotName).Msg("SupportPro backend listening")
		return runServer(gctx, srv)
	})
	g.Go(func() error {
		return chatService.RunEviction(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func loadQuickActions(path string) (*quickaction.MemoryStore, error) {
	items := quickaction.Seed()
	if path != "" {
		loaded, err := quickaction.LoadFile(path)
		if err != nil {
			return nil, err
		}
		items = loaded
		log.Info().Str("file", path).Int("count", len(items)).Msg("quick actions loaded")
	}
	return quickaction.NewMemoryStore(items)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
