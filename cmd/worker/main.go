package main

import (
	"context"
	"database/sql"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/pgmq"
	"app/internal/provider"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/worker/guard"
	"app/internal/worker/renewal"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Worker mode: guard|renewal")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	var runErr error
	switch *mode {
	case "guard":
		queueDB, err := sql.Open("pgx", cfg.DBConnectionString)
		if err != nil {
			logger.Fatal().Msgf("Failed to open queue DB connection: %v", err)
		}
		defer queueDB.Close()

		providerClient := provider.NewClient(provider.Config{
			BaseURL: cfg.ProviderBaseURL,
			Token:   cfg.ProviderAPIToken,
			Timeout: time.Duration(cfg.ProviderTimeoutSec) * time.Second,
		}, logger)
		campaignGuard := service.NewCampaignGuard(
			repository.NewCampaignRepo(pool),
			providerClient,
			service.GuardConfig{
				CallTimeout:    time.Duration(cfg.GuardCallTimeoutSec) * time.Second,
				CampaignWindow: time.Duration(cfg.GuardCampaignWindowHrs) * time.Hour,
				SessionWindow:  time.Duration(cfg.GuardSessionWindowMins) * time.Minute,
			},
			logger,
		)
		runErr = guard.Run(ctx, logger, cfg, pgmq.New(queueDB), campaignGuard)
	case "renewal":
		interval := time.Duration(cfg.RenewalIntervalMins) * time.Minute
		runErr = renewal.Run(ctx, logger, repository.NewUsageRepo(pool), interval)
	default:
		logger.Fatal().Msgf("Unknown worker mode: %q (expected guard or renewal)", *mode)
	}
	if runErr != nil {
		logger.Fatal().Msgf("Worker exited with error: %v", runErr)
	}
}
