package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/anatoliahealth/medtour-crm/internal/api/router"
	appconfig "github.com/anatoliahealth/medtour-crm/internal/config"
	"github.com/anatoliahealth/medtour-crm/internal/compliance"
	"github.com/anatoliahealth/medtour-crm/internal/leads"
	"github.com/anatoliahealth/medtour-crm/internal/normalize"
	"github.com/anatoliahealth/medtour-crm/internal/observability/metrics"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medtour-crm API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Lead storage: Postgres when configured, in-memory for local dev.
	var leadsRepo leads.Repository
	var auditService *compliance.AuditService
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		leadsRepo = leads.NewPostgresRepository(pool)

		auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()
		auditService = compliance.NewAuditService(auditDB)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory lead storage")
		leadsRepo = leads.NewInMemoryRepository()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	llmClient := normalize.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	store := normalize.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.CanonicalTable)

	var cooldown *normalize.Cooldown
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
		cooldown = normalize.NewCooldown(redisClient, cfg.NormalizeCooldown, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, normalize cooldown disabled")
	}

	firewallMetrics := metrics.NewFirewallMetrics(nil)
	normalizeMetrics := metrics.NewNormalizeMetrics(nil)

	normalizeService := normalize.NewService(
		leadsRepo, llmClient, store, cooldown,
		auditService, firewallMetrics, normalizeMetrics,
		logger,
		normalize.Config{
			ModelID:          cfg.BedrockModelID,
			MaxTokens:        int32(cfg.NormalizeMaxTokens),
			Temperature:      float32(cfg.NormalizeTemperature),
			ReviewConfidence: cfg.ReviewConfidence,
		},
	)

	r := router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(leadsRepo, logger),
		NormalizeHandler:   normalize.NewHandler(normalizeService, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		IntakeRateLimit:    cfg.IntakeRateLimit,
		IntakeRateBurst:    cfg.IntakeRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.NormalizeRequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadAWSConfig centralizes AWS SDK initialization, including the endpoint
// override used against LocalStack in development.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case dynamodb.ServiceID, bedrockruntime.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}
