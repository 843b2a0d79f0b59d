package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainbooks/chainbooks/internal/adapter/feed"
	httpAdapter "github.com/chainbooks/chainbooks/internal/adapter/http"
	"github.com/chainbooks/chainbooks/internal/adapter/http/handler"
	"github.com/chainbooks/chainbooks/internal/adapter/http/middleware"
	"github.com/chainbooks/chainbooks/internal/adapter/oracle"
	postgresRepo "github.com/chainbooks/chainbooks/internal/adapter/repository/postgres"
	redisRepo "github.com/chainbooks/chainbooks/internal/adapter/repository/redis"
	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/infrastructure/auth"
	"github.com/chainbooks/chainbooks/internal/infrastructure/config"
	"github.com/chainbooks/chainbooks/internal/infrastructure/logger"
	"github.com/chainbooks/chainbooks/internal/infrastructure/metrics"
	"github.com/chainbooks/chainbooks/internal/infrastructure/postgres"
	"github.com/chainbooks/chainbooks/internal/infrastructure/redis"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	log.Logger = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	method, err := domain.ParseMethod(cfg.CostBasisMethod)
	if err != nil {
		log.Fatal().Err(err).Str("method", cfg.CostBasisMethod).Msg("invalid cost basis method")
	}

	frequency, err := domain.ParseFrequency(cfg.ReportFrequency)
	if err != nil {
		log.Fatal().Err(err).Str("frequency", cfg.ReportFrequency).Msg("invalid report frequency")
	}

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Run migrations
	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories and adapters
	txManager := postgresRepo.NewTxManager(pool)
	checkpointRepo := postgresRepo.NewCheckpointRepository(pool, postgresRepo.NewRetrier(log.Logger)).
		WithMetrics(m.Recorder())
	idGen := postgresRepo.NewULIDGenerator()
	priceCache := redisRepo.NewCache(redisClient)

	priceOracle := oracle.NewPinnedOracle(
		oracle.NewCachedOracle(
			oracle.NewHTTPOracle(cfg.OracleURL, cfg.OracleTimeout),
			priceCache,
			cfg.PriceCacheTTL,
		).WithMetrics(m.Recorder()),
	)
	activityFeed := feed.NewFileFeed(cfg.FeedPath)

	// Sample the pool gauge; pgx exposes no callback hook for it.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			m.DBConnections.Set(float64(pool.Stat().TotalConns()))
		}
	}()

	// Initialize the pipeline
	pipeline := usecase.NewPipeline(
		usecase.NewNormalizer(priceOracle, cfg.PriceConcurrent),
		usecase.NewClassifier(usecase.DefaultProtocolRules()),
		usecase.NewStatementGenerator(),
		priceOracle,
		checkpointRepo,
		txManager,
		idGen,
		usecase.RunConfig{
			Method:       method,
			Frequency:    frequency,
			LongTermDays: cfg.LongTermDays,
			Workers:      cfg.PipelineWorkers,
		},
	).WithMetrics(m.Recorder())

	// Initialize handlers
	reportHandler := handler.NewReportHandler(pipeline, activityFeed, m, log.Logger)
	checkpointHandler := handler.NewCheckpointHandler(checkpointRepo)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ReportHandler:     reportHandler,
		CheckpointHandler: checkpointHandler,
		HealthHandler:     healthHandler,
		Logging:           middleware.NewLoggingMiddleware(log.Logger),
		Metrics:           middleware.NewMetricsMiddleware(m),
		JWTManager:        jwtManager,
		AuthEnabled:       cfg.AuthEnabled,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
