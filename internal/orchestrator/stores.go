package orchestrator

import (
	"context"
	"time"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// JobStore persists job snapshots.
// CreateJob fails with domain.ErrConflict when the job id exists. GetJob fails with
// domain.ErrNotFound. UpdateJob only succeeds when the stored version equals
// job.Version and fails with domain.ErrTransient otherwise.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.JobRecord) error
	GetJob(ctx context.Context, jobID string) (domain.JobRecord, error)
	UpdateJob(ctx context.Context, job domain.JobRecord) error
	ListJobs(ctx context.Context, limit int) ([]domain.JobSummary, error)
}

// EventStore is the append-only job audit log.
// ListEvents returns events ordered by occurrence time.
type EventStore interface {
	AppendEvent(ctx context.Context, event domain.JobEvent) error
	ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error)
}

// OutboxStore holds dispatches waiting to be published.
// TryDequeue returns nil when nothing is eligible.
// MarkDispatched, Release and MarkFailed only move entries that are still
// processing; anything else reports domain.ErrInvalidState.
type OutboxStore interface {
	EnqueueDispatch(ctx context.Context, msg domain.OutboxMessage) error
	TryDequeue(ctx context.Context) (*domain.OutboxMessage, error)
	MarkDispatched(ctx context.Context, outboxID string) error
	Release(ctx context.Context, outboxID string) error
	MarkFailed(ctx context.Context, outboxID, reason string) error
}

// DispatchCommitter is implemented by job stores that can write a job update
// and an outbox entry in one transaction
type DispatchCommitter interface {
	CommitDispatch(ctx context.Context, job domain.JobRecord, msg domain.OutboxMessage) error
}

// DedupStore guards result ingestion.
// TryStart returns true only for the first caller for a (job, attempt) pair.
// Abandon removes a marker that is still processing so the next delivery
// can start again; completed markers are kept.
type DedupStore interface {
	TryStart(ctx context.Context, jobID, attemptID string) (bool, error)
	MarkCompleted(ctx context.Context, jobID, attemptID string) error
	Abandon(ctx context.Context, jobID, attemptID string) error
}

// ResultStore keeps per-attempt and final responses.
// GetFinalResult fails with domain.ErrNotFound when no final result exists.
type ResultStore interface {
	SaveAttemptResult(ctx context.Context, jobID, attemptID string, resp domain.CanonicalResponse) error
	SaveFinalResult(ctx context.Context, jobID string, resp domain.CanonicalResponse) error
	GetFinalResult(ctx context.Context, jobID string) (domain.CanonicalResponse, error)
}

// DispatchQueue delivers dispatch messages to provider workers at least once
type DispatchQueue interface {
	Publish(ctx context.Context, msg domain.DispatchMessage) error
}

// RoutingPolicy chooses the provider for a request
type RoutingPolicy interface {
	Decide(ctx context.Context, req domain.CanonicalJobRequest) (domain.RoutingDecision, error)
}

// RetryPlanner decides whether a failed attempt gets a successor
type RetryPlanner interface {
	PlanRetry(job domain.JobRecord, attempt domain.JobAttempt, result domain.ProviderResultEvent) domain.RetryPlan
}

// ResponseAssembler maps a provider result onto a canonical response
type ResponseAssembler interface {
	Assemble(result domain.ProviderResultEvent) domain.CanonicalResponse
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// IDGenerator creates prefixed entity ids and trace ids
type IDGenerator interface {
	NewID(prefix string) string
	NewTraceID() string
}
