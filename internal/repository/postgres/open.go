package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// DriverName is the database.driver value served by this package.
const DriverName = "postgres"

func init() {
	repository.Register(DriverName, Open)
}

// Open connects to PostgreSQL, ensures the schema and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.CreateRepositoriesResult, error) {
	db, err := NewDB(ctx, cfg, logger.With().Str("component", "postgres").Logger())
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate PostgreSQL database: %w", err)
	}

	return &repository.CreateRepositoriesResult{
		Repos: &repository.Repositories{
			User: NewUserRepository(db),
			Rule: NewRuleRepository(db),
		},
		Database: db,
	}, nil
}
