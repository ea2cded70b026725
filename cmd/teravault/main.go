package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/alerts"
	"github.com/okatsuo/teravault/internal/bot"
	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/server"
	"github.com/okatsuo/teravault/internal/store"
	"github.com/okatsuo/teravault/internal/util"
)

func main() {
	godotenv.Load()
	config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.EnvMode == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if config.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("backend", config.StoreBackend).Msg("failed to open store")
	}
	defer st.Close(context.Background())

	util.ClearDownloadsDir()
	util.StartRetentionSweep()

	tg, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Telegram")
	}
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on Telegram")

	alerts.Init(tg)
	alerts.BotStarted(tg.Self.UserName)

	srv := server.New()
	go func() {
		log.Info().Str("port", config.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	b := bot.New(tg, st)
	go b.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	alerts.BotStopping()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
}
