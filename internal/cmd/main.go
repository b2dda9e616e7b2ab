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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rallyhq/scoreboard/internal/relay"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer database.Close()

	services, err := setupServices(database, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Relay.Enabled {
		relayConfig := relay.DefaultConfig()
		if config.Relay.URL != "" {
			relayConfig.URL = config.Relay.URL
		}
		if config.Relay.StreamName != "" {
			relayConfig.StreamName = config.Relay.StreamName
		}
		if config.Relay.SubjectPrefix != "" {
			relayConfig.SubjectPrefix = config.Relay.SubjectPrefix
		}

		eventRelay, err := relay.New(services.Broker, relayConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup relay")
		}
		defer eventRelay.Close()
		go eventRelay.Run(ctx)
	}

	server := setupServer(services, config)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serve(server, config.Server.MaxConnections)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	services.Broker.Close()
}
