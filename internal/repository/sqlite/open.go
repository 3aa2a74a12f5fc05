package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// DriverName is the database.driver value served by this package.
const DriverName = "sqlite"

func init() {
	repository.Register(DriverName, Open)
}

// Open connects to SQLite, applies migrations and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.CreateRepositoriesResult, error) {
	sqlCfg := DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		sqlCfg.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		sqlCfg.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.SynchronousMode != "" {
		sqlCfg.SynchronousMode = cfg.SynchronousMode
	}

	db, err := NewDB(ctx, sqlCfg, logger.With().Str("component", "sqlite").Logger())
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &repository.CreateRepositoriesResult{
		Repos: &repository.Repositories{
			User: NewUserRepository(db),
			Rule: NewRuleRepository(db),
		},
		Database: db,
	}, nil
}
