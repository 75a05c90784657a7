package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/database"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

// schemaTimeout bounds schema creation at startup.
const schemaTimeout = 30 * time.Second

// SetupDatabase connects to PostgreSQL and ensures the schema exists.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := database.New(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	if err := database.EnsureSchema(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
