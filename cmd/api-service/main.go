package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/prompt-gateway/internal/api/handler"
	"github.com/cuongbtq/prompt-gateway/internal/api/router"
	"github.com/cuongbtq/prompt-gateway/internal/config"
	"github.com/cuongbtq/prompt-gateway/internal/observability"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
	"github.com/cuongbtq/prompt-gateway/internal/policy"
	"github.com/cuongbtq/prompt-gateway/internal/storage/postgres"
	redisstore "github.com/cuongbtq/prompt-gateway/internal/storage/redis"
	"github.com/cuongbtq/prompt-gateway/shared/logger"
	"github.com/cuongbtq/prompt-gateway/shared/postgresql"
	"github.com/cuongbtq/prompt-gateway/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store := postgres.New(dbClient.GetDB(),
		postgres.WithLogger(appLogger.Logger),
		postgres.WithOwner(cfg.App.Name),
		postgres.WithLeaseTTL(cfg.Outbox.LeaseTTL),
		postgres.WithDedupTTL(cfg.Dedup.ProcessingTTL, cfg.Dedup.CompletedTTL),
	)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		appLogger.Info("Database schema applied")
	}

	checks := map[string]handler.HealthCheck{
		"database": dbClient.HealthCheck,
	}

	var dedup orchestrator.DedupStore = store
	if cfg.Redis.Enabled {
		redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		dedup = redisstore.NewDedupStore(redisClient.GetClient(),
			redisstore.WithLogger(appLogger.Logger),
			redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix),
			redisstore.WithTTL(cfg.Dedup.ProcessingTTL, cfg.Dedup.CompletedTTL),
		)
		checks["redis"] = redisClient.HealthCheck
	}

	metrics, metricsHandler, err := observability.NewMetrics(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Logger:    appLogger.WithAttrs(slog.String("component", "orchestrator")).Logger,
		Jobs:      store,
		Events:    store,
		Outbox:    store,
		Dedup:     dedup,
		Results:   store,
		Routing:   initRoutingPolicy(&cfg.Routing),
		Retry:     policy.NewFallbackRetryPlanner(cfg.Retry.MaxAttempts),
		Assembler: policy.NewSimpleResponseAssembler(),
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:      appLogger.Logger,
		ServiceName: cfg.App.Name,
		Jobs:        orch,
		Checks:      checks,
	}, router.Options{
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      cfg.App.Name,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRedis initializes the Redis client backing result deduplication
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	return redis.NewClient(&redis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}, logger)
}

func initRoutingPolicy(cfg *config.RoutingConfig) *policy.StaticRoutingPolicy {
	return policy.NewStaticRoutingPolicy(policy.RoutingOptions{
		Provider:          cfg.Provider,
		Model:             cfg.Model,
		PolicyVersion:     cfg.PolicyVersion,
		FallbackProviders: cfg.FallbackProviders,
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies, opts router.Options) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, opts)
}
