package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sebmichel83/mydlink-hub/pkg/api"
	"github.com/sebmichel83/mydlink-hub/pkg/db"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/device/schema"
	"github.com/sebmichel83/mydlink-hub/pkg/plug"

	_ "github.com/sebmichel83/mydlink-hub/docs"
)

// @title           mydlink-hub API
// @version         1.0
// @description     REST API for controlling mydlink smart plugs

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/mydlink-hub/mydlink-hub.db)")
	flag.Parse()

	ctx := context.Background()

	// Open database
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Bootstrap if needed (first run)
	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check bootstrap status")
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap database")
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	// Load configuration
	cfg, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("profile", cfg.Profile.Name).
		Str("api_address", cfg.APIAddress()).
		Bool("account_configured", cfg.HasAccount()).
		Msg("Configuration loaded")

	// Sign in to the mydlink account; fall back to NullController when no
	// credentials are configured or the cloud login fails.
	var controller device.Controller
	var eventSubscriber device.EventSubscriber

	if cfg.HasAccount() {
		names := database.DeviceNames(cfg.Profile.ID)
		plugController, err := plug.NewController(ctx, cfg.Account.Email, cfg.Account.Password,
			plug.WithNameStore(names),
		)
		if err != nil {
			log.Warn().Err(err).Msg("mydlink account unavailable, using null controller")
			controller = device.NewNullController()
			eventSubscriber = device.NewNullEventSubscriber()
		} else {
			controller = plugController
			eventSubscriber = plugController
		}
	} else {
		log.Warn().Msg("No mydlink account configured, using null controller")
		controller = device.NewNullController()
		eventSubscriber = device.NewNullEventSubscriber()
	}

	validator := schema.NewValidator()

	// Create and start API router
	router := api.NewRouter(controller, eventSubscriber, validator)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		controller.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	// Start server
	addr := cfg.APIAddress()
	log.Info().Str("address", addr).Msg("Starting API server")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
