package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sebmichel83/mydlink-hub/pkg/db"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/device/schema"
	hubmcp "github.com/sebmichel83/mydlink-hub/pkg/mcp"
	"github.com/sebmichel83/mydlink-hub/pkg/plug"
)

func main() {
	// Logging must go to stderr — stdout is the MCP transport
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

	// Sign in to the mydlink account; fall back to NullController when no
	// credentials are configured or the cloud login fails.
	var controller device.Controller

	if cfg.HasAccount() {
		names := database.DeviceNames(cfg.Profile.ID)
		plugController, err := plug.NewController(ctx, cfg.Account.Email, cfg.Account.Password,
			plug.WithNameStore(names),
		)
		if err != nil {
			log.Warn().Err(err).Msg("mydlink account unavailable, using null controller")
			controller = device.NewNullController()
		} else {
			controller = plugController
		}
	} else {
		log.Warn().Msg("No mydlink account configured, using null controller")
		controller = device.NewNullController()
	}
	defer controller.Close()

	validator := schema.NewValidator()

	// Create and start MCP server
	mcpServer := hubmcp.NewServer(controller, validator)

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
