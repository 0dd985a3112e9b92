package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/auction/fanout"
	"github.com/mkalra/gavel/go/internal/auction/gateway"
	"github.com/mkalra/gavel/go/internal/auction/relay"
	"github.com/mkalra/gavel/go/internal/auction/session"
	"github.com/mkalra/gavel/go/internal/auction/settlement"
	"github.com/mkalra/gavel/go/internal/blob"
	"github.com/mkalra/gavel/go/internal/httpapi"
	"github.com/mkalra/gavel/go/internal/identity"
	"github.com/mkalra/gavel/go/internal/storage/memory"
	"github.com/mkalra/gavel/go/internal/storage/postgres"
)

// Store is everything the coordinator, settlement engine and HTTP API
// need from a storage backend. Both backends satisfy it.
type Store interface {
	session.PlayerStore
	session.BuyerStore
	settlement.Store
	httpapi.PlayerStore
	httpapi.BuyerStore
}

type Services struct {
	Store             Store
	Broker            *fanout.Broker
	Coordinator       *session.Coordinator
	ConnectionManager *gateway.ConnectionManager
	FanoutConsumer    *gateway.FanoutConsumer
	RelayWorker       *relay.Worker
	Router            http.Handler
	ImageDir          string
	ImageURLPrefix    string
}

func setupServices(ctx context.Context, config *Config, clk clockwork.Clock) (*Services, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, err := setupStore(ctx, config, &cleanups)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	broker := fanout.NewBroker(64)
	cleanups = append(cleanups, broker.Close)

	engine := settlement.NewEngine(store, settlement.DefaultConfig(), clk)
	coordinator := session.New(store, store, engine, broker, clk, session.Config{
		SettleTimeout: time.Duration(config.Auction.SettleTimeoutSec) * time.Second,
	})

	auth := identity.NewAuthenticator(config.Auth.JWTSecret, time.Duration(config.Auth.TokenTTLMin)*time.Minute)

	images, err := blob.NewDiskStore(config.Images.Dir, config.Images.URLPrefix)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	fanoutConsumer := gateway.NewFanoutConsumer(connectionManager, broker)
	wsHandler := gateway.NewWebSocketHandler(connectionManager)

	handler := httpapi.NewHandler(coordinator, store, store, images, auth, config.Auth.OperatorKey)
	router := httpapi.SetupRoutes(handler, wsHandler, auth)

	var relayWorker *relay.Worker
	if config.Relay.Enabled {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		publisher, err := relay.NewNATSPublisher(relay.NATSConfig{
			URL:           config.Relay.URL,
			SubjectPrefix: config.Relay.SubjectPrefix,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to set up NATS relay: %w", err)
		}
		cleanups = append(cleanups, publisher.Close)
		relayWorker = relay.NewWorker(broker, publisher, relay.DefaultConfig(), logger)
	}

	return &Services{
		Store:             store,
		Broker:            broker,
		Coordinator:       coordinator,
		ConnectionManager: connectionManager,
		FanoutConsumer:    fanoutConsumer,
		RelayWorker:       relayWorker,
		Router:            router,
		ImageDir:          images.Dir(),
		ImageURLPrefix:    config.Images.URLPrefix,
	}, cleanup, nil
}

func setupStore(ctx context.Context, config *Config, cleanups *[]func()) (Store, error) {
	switch config.Storage.Backend {
	case "postgres":
		database, err := setupDatabase()
		if err != nil {
			return nil, err
		}
		*cleanups = append(*cleanups, func() {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database")
			}
		})
		store := postgres.NewStore(database)
		if err := store.InitSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		log.Warn().Msg("using in-memory storage, state is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
}
