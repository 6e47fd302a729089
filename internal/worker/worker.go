package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// ResultIngestor applies provider results to jobs
type ResultIngestor interface {
	IngestResult(ctx context.Context, result *domain.ProviderResultEvent) (domain.IngestOutcome, error)
}

// DeliverySource is the subset of the RabbitMQ client the consumer needs
type DeliverySource interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Source        DeliverySource
	Ingestor      ResultIngestor
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
	IngestTimeout time.Duration
}

// Worker consumes provider results from RabbitMQ and feeds them to the orchestrator
type Worker struct {
	logger        *slog.Logger
	source        DeliverySource
	ingestor      ResultIngestor
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	ingestTimeout time.Duration
	resultsChan   chan *resultMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// resultMessage is a decoded delivery waiting for a pool goroutine
type resultMessage struct {
	delivery amqp.Delivery
	result   domain.ProviderResultEvent
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	timeout := cfg.IngestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		logger:        logger,
		source:        cfg.Source,
		ingestor:      cfg.Ingestor,
		workerID:      cfg.WorkerID,
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		ingestTimeout: timeout,
		resultsChan:   make(chan *resultMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes results until ctx is canceled or the delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting result worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("ingest_timeout", w.ingestTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Result worker dispatcher exited",
		slog.String("worker_id", w.workerID),
	)
	return nil
}

// Stop signals the pool goroutines and waits for in-flight results
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
