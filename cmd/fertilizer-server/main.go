// Package main is the entry point for the fertilizer advisor server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/fertilizer-advisor/internal/app"
	"github.com/prn-tf/fertilizer-advisor/internal/auth"
	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/handler"
	"github.com/prn-tf/fertilizer-advisor/internal/logging"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
	"github.com/prn-tf/fertilizer-advisor/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	// Bootstrap logger until the configured one is ready
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	defer logCloser.Close()

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("env", cfg.Server.Env).
		Msg("Starting fertilizer advisor server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Storage
	db, err := app.OpenRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Database.Close()

	locker, closeLocker, err := app.NewLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Metrics
	var m *metrics.Metrics
	var recorder service.OutcomeRecorder
	if cfg.Metrics.Enabled {
		m = metrics.New()
		recorder = m
	}

	// Credentials and tokens
	secret, isDefault := cfg.Auth.SigningSecret()
	if isDefault {
		logger.Warn().Msg("auth.jwt_secret is not set; signing tokens with the built-in development secret")
	}
	issuer := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)

	hasher, err := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	userService := service.NewUserService(db.Repos.User, hasher, locker, cfg.Auth.SignupLockTimeout, logger)
	authService := service.NewAuthService(userService, issuer, recorder, logger)

	// Rule table
	recommendationService := service.NewRecommendationService(db.Repos.Rule, locker, recorder, logger)
	if _, err := recommendationService.Seed(ctx); err != nil {
		return err
	}
	rules, err := recommendationService.Load(ctx)
	if err != nil {
		return err
	}
	if m != nil {
		m.RulesLoaded.Set(float64(rules))
	}

	// Model
	var predictor service.Predictor
	model, err := app.LoadClassifier(ctx, cfg.Classifier, logger)
	switch {
	case err == nil:
		predictor = model
	case cfg.Classifier.Required:
		return err
	default:
		logger.Warn().Err(err).Msg("classifier unavailable; /predict will return 503")
	}
	if m != nil {
		m.SetClassifierLoaded(predictor != nil)
	}
	predictionService := service.NewPredictionService(predictor, recorder, logger)

	// HTTP
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:           handler.NewAuthHandler(authService, logger),
		RecommendationHandler: handler.NewRecommendationHandler(predictionService, recommendationService, logger),
		HealthHandler:         handler.NewHealthHandler(db.Database, predictionService, recommendationService, logger),
		AuthMiddleware:        auth.Middleware(authService),
		Metrics:               m,
		MetricsPath:           cfg.Metrics.Path,
		CORS:                  cfg.CORS,
		RateLimit:             cfg.RateLimit,
		MaxBodySize:           cfg.Server.MaxBodySize,
		Logger:                logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
