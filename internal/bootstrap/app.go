// Package bootstrap handles application initialization and lifecycle
// management for the price-monitor service.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL and ensure the schema
//   - Phase 3: Events - Setup event publisher (if Redis enabled)
//   - Phase 4: Services - Wire repositories, pricing client, executor,
//     orchestrator, scheduler, and importer
//   - Phase 5: Server - Create the HTTP server and routes
//   - Phase 6: Run - Wait for interrupt signal or error
package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

const version = "dev"

// Start initializes and starts the price-monitor application.
// It handles all phases of bootstrap and returns an error if any phase
// fails. The function blocks until the server is interrupted or errors.
func Start() error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Setup database and schema
	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	// Phase 3: Setup event publisher (optional)
	publisher := SetupEventPublisher(cfg, log)

	// Phase 4: Setup services
	svcs, err := SetupServices(cfg, db, publisher, log)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}

	// Phase 5: Setup HTTP server
	server := SetupHTTPServer(cfg, db, svcs, log)

	// Phase 6: Run until interrupt or error
	return RunUntilInterrupt(log, server, svcs.Scheduler, svcs.Orchestrator)
}
