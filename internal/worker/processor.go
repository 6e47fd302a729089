package worker

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// processResult applies one provider result within the ingest timeout
func (w *Worker) processResult(ctx context.Context, msg *resultMessage) (domain.IngestOutcome, error) {
	ingestCtx, cancel := context.WithTimeout(ctx, w.ingestTimeout)
	defer cancel()

	w.logger.Debug("Processing result",
		slog.String("job_id", msg.result.JobID),
		slog.String("attempt_id", msg.result.AttemptID),
		slog.Bool("is_success", msg.result.IsSuccess),
	)

	outcome, err := w.ingestor.IngestResult(ingestCtx, &msg.result)
	if err != nil {
		return domain.IngestOutcome{}, err
	}

	if outcome.Status == domain.IngestRetrying && outcome.Dispatch != nil {
		w.logger.Info("Retry scheduled for job",
			slog.String("job_id", outcome.Dispatch.JobID),
			slog.String("attempt_id", outcome.Dispatch.AttemptID),
			slog.String("provider", outcome.Dispatch.Provider),
		)
	}
	return outcome, nil
}
