package router

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/archive"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/pgmq"
	"app/internal/pricing"
	"app/internal/provider"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the repositories, services and handlers and returns the HTTP
// handler plus a cleanup function closing the database connections.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	dsn := cfg.DBConnectionString
	// Local development runs without TLS; production connection strings
	// carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// Second, plain database/sql connection for the pgmq guard queue.
	queueDB, err := sql.Open("pgx", dsn)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	queueDB.SetMaxOpenConns(5)
	queueDB.SetConnMaxIdleTime(5 * time.Minute)
	cleanup := func() {
		queueDB.Close()
		pool.Close()
	}

	// Telephony provider client. The API token comes from the environment
	// or, in production, from Secret Manager.
	providerToken := cfg.ProviderAPIToken
	if providerToken == "" && cfg.GCPProjectID != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		providerToken, err = secrets.FetchProviderToken(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	providerClient := provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		Token:   providerToken,
		Timeout: time.Duration(cfg.ProviderTimeoutSec) * time.Second,
	}, logger)

	// Optional recording archive.
	var archiver archive.Archiver
	if cfg.S3URL != "" {
		s3Config, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		})
		archiver = archive.NewS3Archiver(s3Client, cfg.S3Bucket, logger)
	}

	// Optional balance alerts.
	var alerts *pubsub.AlertPublisher
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		alerts = pubsub.NewAlertPublisher(pub, cfg.AlertTopic)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// Repositories, services, handlers.
	accountRepo := repository.NewAccountRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	numberRepo := repository.NewNumberRepo(pool)
	campaignRepo := repository.NewCampaignRepo(pool)

	prices := pricing.Table{
		CallPerMinuteCents: cfg.CallPricePerMinuteCents,
		SMSPerSegmentCents: cfg.SMSPricePerSegmentCents,
	}
	billingSvc := service.NewBillingService(accountRepo, usageRepo, prices, logger)
	guard := service.NewCampaignGuard(campaignRepo, providerClient, service.GuardConfig{
		CallTimeout:    time.Duration(cfg.GuardCallTimeoutSec) * time.Second,
		CampaignWindow: time.Duration(cfg.GuardCampaignWindowHrs) * time.Hour,
		SessionWindow:  time.Duration(cfg.GuardSessionWindowMins) * time.Minute,
	}, logger)
	guardDispatch := service.NewGuardDispatcher(pgmq.New(queueDB), cfg.GuardQueueName, guard, 30*time.Second, logger)
	callSvc := service.NewCallService(numberRepo, eventRepo, billingSvc, guardDispatch, alerts, archiver, logger)
	smsSvc := service.NewSMSService(numberRepo, eventRepo, billingSvc, providerClient, cfg.MaxSMSLength, logger)
	paymentSvc := service.NewPaymentService(cfg, accountRepo, logger)

	callHandler := handler.NewCallHandler(callSvc, validate, logger)
	smsHandler := handler.NewSMSHandler(smsSvc, validate, logger)
	walletHandler := handler.NewWalletHandler(accountRepo, usageRepo, eventRepo, paymentSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	apiV1Mux := http.NewServeMux()
	callHandler.RegisterRoutes(apiV1Mux)
	smsHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	walletHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), cleanup, nil
}
