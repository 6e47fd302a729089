package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// OutboxProcessor publishes one claimed outbox entry per call
type OutboxProcessor struct {
	logger  *slog.Logger
	outbox  OutboxStore
	queue   DispatchQueue
	metrics Recorder
}

// NewOutboxProcessor creates a processor. logger and metrics may be nil.
func NewOutboxProcessor(outbox OutboxStore, queue DispatchQueue, logger *slog.Logger, metrics Recorder) *OutboxProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &OutboxProcessor{
		logger:  logger,
		outbox:  outbox,
		queue:   queue,
		metrics: metrics,
	}
}

// ProcessOnce claims and publishes at most one entry. It reports false when
// nothing was published and the caller should back off. A publish failure
// releases the entry back to pending and is returned to the caller.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (bool, error) {
	msg, err := p.outbox.TryDequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox entry: %w", err)
	}
	if msg == nil {
		p.metrics.OutboxProcessed(OutboxOutcomeIdle)
		return false, nil
	}

	if msg.Dispatch == nil {
		if err := p.outbox.MarkFailed(ctx, msg.OutboxID, domain.OutboxReasonMissingPayload); err != nil {
			return false, fmt.Errorf("failed to mark outbox entry failed: %w", err)
		}
		p.metrics.OutboxProcessed(OutboxOutcomeFailed)
		p.logger.Error("Outbox entry has no dispatch payload",
			slog.String("outbox_id", msg.OutboxID),
		)
		return false, nil
	}

	if err := p.queue.Publish(ctx, *msg.Dispatch); err != nil {
		// Release on a fresh context so a cancelled caller does not leave the lease held
		if relErr := p.outbox.Release(context.WithoutCancel(ctx), msg.OutboxID); relErr != nil {
			p.logger.Error("Failed to release outbox entry",
				slog.String("outbox_id", msg.OutboxID),
				slog.String("error", relErr.Error()),
			)
		}
		p.metrics.OutboxProcessed(OutboxOutcomeReleased)
		return false, fmt.Errorf("failed to publish dispatch %s: %w", msg.Dispatch.IdempotencyKey, err)
	}

	if err := p.outbox.MarkDispatched(ctx, msg.OutboxID); err != nil {
		if !errors.Is(err, domain.ErrInvalidState) {
			return false, fmt.Errorf("failed to mark outbox entry dispatched: %w", err)
		}
		// our lease lapsed and another processor settled the entry first
		p.logger.Warn("Outbox entry settled by another processor",
			slog.String("outbox_id", msg.OutboxID),
			slog.String("idempotency_key", msg.Dispatch.IdempotencyKey),
		)
	}

	p.metrics.OutboxProcessed(OutboxOutcomePublished)
	p.logger.Info("Published dispatch from outbox",
		slog.String("outbox_id", msg.OutboxID),
		slog.String("job_id", msg.Dispatch.JobID),
		slog.String("attempt_id", msg.Dispatch.AttemptID),
		slog.String("provider", msg.Dispatch.Provider),
		slog.String("idempotency_key", msg.Dispatch.IdempotencyKey),
	)

	return true, nil
}
