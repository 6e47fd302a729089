package main

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/prompt-gateway/internal/api/handler"
	"github.com/cuongbtq/prompt-gateway/internal/api/router"
	"github.com/cuongbtq/prompt-gateway/internal/backoff"
	"github.com/cuongbtq/prompt-gateway/internal/config"
	"github.com/cuongbtq/prompt-gateway/internal/observability"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
	"github.com/cuongbtq/prompt-gateway/internal/policy"
	"github.com/cuongbtq/prompt-gateway/internal/queue"
	"github.com/cuongbtq/prompt-gateway/internal/storage/postgres"
	redisstore "github.com/cuongbtq/prompt-gateway/internal/storage/redis"
	"github.com/cuongbtq/prompt-gateway/internal/worker"
	"github.com/cuongbtq/prompt-gateway/shared/logger"
	"github.com/cuongbtq/prompt-gateway/shared/postgresql"
	"github.com/cuongbtq/prompt-gateway/shared/rabbitmq"
	"github.com/cuongbtq/prompt-gateway/shared/redis"
)

var errConsumerStopped = errors.New("result consumer stopped unexpectedly")

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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", cfg.Worker.ID),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	owner := cfg.Outbox.OwnerID
	if owner == "" {
		owner = cfg.Worker.ID
	}
	store := postgres.New(dbClient.GetDB(),
		postgres.WithLogger(appLogger.Logger),
		postgres.WithOwner(owner),
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

	dispatchClient, err := initRabbitMQ(&cfg.RabbitMQ, &cfg.RabbitMQ.Dispatch, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatch queue: %w", err)
	}
	defer dispatchClient.Close()

	resultsClient, err := initRabbitMQ(&cfg.RabbitMQ, &cfg.RabbitMQ.Results, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize results queue: %w", err)
	}
	defer resultsClient.Close()

	checks["dispatch_queue"] = dispatchClient.HealthCheck
	checks["results_queue"] = resultsClient.HealthCheck

	metrics, metricsHandler, err := observability.NewMetrics(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Logger:  appLogger.Logger,
		Jobs:    store,
		Events:  store,
		Outbox:  store,
		Dedup:   dedup,
		Results: store,
		Routing: policy.NewStaticRoutingPolicy(policy.RoutingOptions{
			Provider:          cfg.Routing.Provider,
			Model:             cfg.Routing.Model,
			PolicyVersion:     cfg.Routing.PolicyVersion,
			FallbackProviders: cfg.Routing.FallbackProviders,
		}),
		Retry:     policy.NewFallbackRetryPlanner(cfg.Retry.MaxAttempts),
		Assembler: policy.NewSimpleResponseAssembler(),
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	relayLogger := appLogger.WithAttrs(slog.String("component", "outbox_relay"))
	relay := worker.NewOutboxRelay(&worker.RelayConfig{
		Logger: relayLogger.Logger,
		Processor: orchestrator.NewOutboxProcessor(
			store,
			queue.NewDispatchPublisher(dispatchClient),
			relayLogger.Logger,
			metrics,
		),
		IdleDelay: cfg.Outbox.IdleDelay,
		ErrorBackoff: backoff.Config{
			Initial: cfg.Outbox.ErrorDelay,
			Max:     cfg.Outbox.MaxErrorDelay,
		},
		RateLimit: cfg.Outbox.PublishRate,
		RateBurst: cfg.Outbox.PublishBurst,
	})

	resultWorker := worker.NewWorker(&worker.Config{
		Logger:        appLogger.WithAttrs(slog.String("component", "result_consumer")).Logger,
		Source:        resultsClient,
		Ingestor:      orch,
		WorkerID:      cfg.Worker.ID,
		QueueName:     cfg.RabbitMQ.Results.Name,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		IngestTimeout: cfg.Worker.IngestTimeout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		err := resultWorker.Start(gctx)
		if err == nil && gctx.Err() == nil {
			return errConsumerStopped
		}
		return err
	})

	var opsServer *http.Server
	if cfg.Server.Port > 0 {
		opsServer = initOpsServer(cfg, &handler.Dependencies{
			Logger:      appLogger.Logger,
			ServiceName: cfg.App.Name,
			Checks:      checks,
		}, metricsHandler)
		g.Go(func() error {
			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		appLogger.Info("Ops server listening", slog.String("address", opsServer.Addr))
	}

	appLogger.Info("Worker service started successfully")

	<-gctx.Done()
	if ctx.Err() != nil {
		appLogger.Info("Received signal, shutting down gracefully")
	}

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Ops server forced to shutdown", slog.Any("error", err))
		}
	}

	done := make(chan error, 1)
	go func() {
		resultWorker.Stop()
		done <- g.Wait()
	}()

	var runErr error
	select {
	case runErr = <-done:
		if runErr != nil {
			appLogger.Error("Worker error", slog.Any("error", runErr))
		} else {
			appLogger.Info("Worker stopped gracefully")
		}
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", shutdownTimeout),
		)
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
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

// initRabbitMQ opens a RabbitMQ client bound to one queue of the shared exchange
func initRabbitMQ(cfg *config.RabbitMQConfig, q *config.QueueConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          q.Name,
		QueueDurable:       q.Durable,
		QueueAutoDelete:    q.AutoDelete,
		QueueExclusive:     q.Exclusive,
		RoutingKey:         q.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishRetryMax:    cfg.Publish.MaxRetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initOpsServer serves health and metrics for the worker process
func initOpsServer(cfg *config.Config, deps *handler.Dependencies, metricsHandler http.Handler) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router.SetupOpsRouter(deps, router.Options{MetricsHandler: metricsHandler}),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}
}
