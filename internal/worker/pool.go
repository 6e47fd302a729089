package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.resultsChan:
			w.handle(ctx, workerName, msg)
		}
	}
}

// handle ingests one result and acknowledges its delivery
func (w *Worker) handle(ctx context.Context, workerName string, msg *resultMessage) {
	outcome, err := w.processResult(ctx, msg)
	if err != nil {
		requeue := shouldRequeue(err)
		w.logger.Error("Result ingestion failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.result.JobID),
			slog.String("attempt_id", msg.result.AttemptID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
		if nackErr := msg.delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	if ackErr := msg.delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.result.JobID),
			slog.String("error", ackErr.Error()),
		)
		return
	}

	w.logger.Info("Result acknowledged",
		slog.String("worker_name", workerName),
		slog.String("job_id", msg.result.JobID),
		slog.String("attempt_id", msg.result.AttemptID),
		slog.String("status", string(outcome.Status)),
	)
}

// shouldRequeue requeues transient failures and interrupted ingests; everything
// else would fail again. A failed ingest clears its dedup marker, so the
// redelivery is applied rather than acknowledged as a duplicate.
func shouldRequeue(err error) bool {
	return domain.IsRetryable(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
