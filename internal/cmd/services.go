package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/rallyhq/scoreboard/internal/broker"
	"github.com/rallyhq/scoreboard/internal/gateway"
	"github.com/rallyhq/scoreboard/internal/leaderboard"
	"github.com/rallyhq/scoreboard/internal/random"
)

type Services struct {
	Broker      *broker.Broker
	Leaderboard *leaderboard.App
	API         *gateway.APIHandler
	Stream      *gateway.StreamHandler
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → HTTP layer

	rng, err := random.NewCryptoSeededSource()
	if err != nil {
		return nil, fmt.Errorf("failed to seed award source: %w", err)
	}

	eventBroker := broker.New(config.Broker.Backlog)

	repo := leaderboard.NewRepository(database)
	app := leaderboard.NewApp(repo, eventBroker, clockwork.NewRealClock(), rng)

	connectionManager := gateway.NewConnectionManager(eventBroker, gateway.DefaultConnectionConfig())

	return &Services{
		Broker:      eventBroker,
		Leaderboard: app,
		API:         gateway.NewAPIHandler(app),
		Stream:      gateway.NewStreamHandler(connectionManager),
	}, nil
}
