package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/v3se/streambot/internal/command/core"
	_ "github.com/v3se/streambot/internal/command/music"

	"github.com/v3se/streambot/internal/config"
	"github.com/v3se/streambot/internal/discord"
	"github.com/v3se/streambot/internal/logging"
	"github.com/v3se/streambot/internal/storage"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPath)
	logger.Info().Msg("starting streambot")

	stations, err := config.LoadStations(cfg.StationsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load stations")
	}
	logger.Info().Int("count", len(stations)).Msg("loaded radio stations")

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := discord.StartBot(ctx, cfg, stations, store, logger); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("discord bot error")
		}
		cancel()
	}

	logger.Info().Msg("streambot exited cleanly")
}
