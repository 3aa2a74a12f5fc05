// Package app assembles the infrastructure shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/classifier"
	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/lock"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
	"github.com/prn-tf/fertilizer-advisor/internal/repository/redis"

	// Database drivers register themselves with repository.Register.
	_ "github.com/prn-tf/fertilizer-advisor/internal/repository/postgres"
	_ "github.com/prn-tf/fertilizer-advisor/internal/repository/sqlite"
)

// OpenRepositories opens the configured database and applies its schema.
func OpenRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.CreateRepositoriesResult, error) {
	return repository.NewFactory(cfg, logger).Create(ctx)
}

// NewLocker returns a Redis backed locker when Redis is enabled and an
// in-process one otherwise. The returned func releases its resources.
func NewLocker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (lock.Locker, func(), error) {
	if !cfg.Enabled {
		locker := lock.NewMemoryLocker()
		logger.Info().Msg("using in-process locks")
		return locker, locker.Stop, nil
	}

	client, err := redis.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	locker := lock.NewRedisLocker(redis.NewDistributedLock(client))
	return locker, func() { _ = client.Close() }, nil
}

// LoadClassifier fetches and verifies the configured model artifact.
func LoadClassifier(ctx context.Context, cfg config.ClassifierConfig, logger zerolog.Logger) (*classifier.Classifier, error) {
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	src, err := classifier.SourceFor(ctx, cfg.ArtifactPath, cfg.S3)
	if err != nil {
		return nil, err
	}

	c, err := classifier.Load(ctx, src, classifier.LoadOptions{SHA256: cfg.SHA256})
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier from %s: %w", src, err)
	}

	logger.Info().Str("source", src.String()).Bool("checksum_verified", cfg.SHA256 != "").Msg("classifier loaded")
	return c, nil
}
