// Package repository provides data access layer for the fertilizer advisor.
// This file contains factory functions to create repositories based on configuration.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
)

// Repositories holds all repository instances.
type Repositories struct {
	User UserRepository
	Rule RuleRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// CreateRepositoriesResult contains the created repositories and database connection.
type CreateRepositoriesResult struct {
	Repos    *Repositories
	Database DatabaseHealth
}

// Opener connects to a database, applies its schema and builds the repositories.
type Opener func(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*CreateRepositoriesResult, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes a database driver available to Factory.Create.
// Driver packages call it from init. Registering a driver twice panics.
func Register(driver string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()

	if opener == nil {
		panic("repository: Register opener is nil")
	}
	if _, dup := openers[driver]; dup {
		panic("repository: Register called twice for driver " + driver)
	}
	openers[driver] = opener
}

// Drivers returns the names of the registered drivers.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory creates repositories based on configuration.
type Factory struct {
	cfg    config.DatabaseConfig
	logger zerolog.Logger
}

// NewFactory creates a new repository factory.
func NewFactory(cfg config.DatabaseConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Driver returns the configured database driver.
func (f *Factory) Driver() string {
	return f.cfg.Driver
}

// IsEmbedded returns true if using embedded database.
func (f *Factory) IsEmbedded() bool {
	return f.cfg.IsEmbedded()
}

// Create opens the configured database and returns its repositories.
func (f *Factory) Create(ctx context.Context) (*CreateRepositoriesResult, error) {
	openersMu.RLock()
	opener, ok := openers[f.cfg.Driver]
	openersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, f.cfg.Driver, Drivers())
	}

	result, err := opener(ctx, f.cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f.logger.Info().
		Str("driver", f.cfg.Driver).
		Bool("embedded", f.IsEmbedded()).
		Msg("repositories created")

	return result, nil
}
