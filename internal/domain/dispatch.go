package domain

import "time"

// DispatchMessage is the hand-off sent to a provider worker for one attempt
type DispatchMessage struct {
	JobID          string              `json:"job_id"`
	AttemptID      string              `json:"attempt_id"`
	TraceID        string              `json:"trace_id"`
	Provider       string              `json:"provider"`
	Model          string              `json:"model"`
	IdempotencyKey string              `json:"idempotency_key"`
	Request        CanonicalJobRequest `json:"request"`
}

// IdempotencyKey derives the per-attempt dedup key used by downstream consumers
func IdempotencyKey(jobID, attemptID string) string {
	return jobID + ":" + attemptID
}

// NewDispatchMessage builds the dispatch for an attempt of a job
func NewDispatchMessage(job JobRecord, attempt JobAttempt) DispatchMessage {
	return DispatchMessage{
		JobID:          job.JobID,
		AttemptID:      attempt.AttemptID,
		TraceID:        job.TraceID,
		Provider:       attempt.Provider,
		Model:          attempt.Model,
		IdempotencyKey: IdempotencyKey(job.JobID, attempt.AttemptID),
		Request:        job.Request.WithIDs(job.JobID, attempt.AttemptID, job.TraceID),
	}
}

// OutboxStatus is the store-managed state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is a durable, not-yet-published dispatch.
// Dispatch is nil when a claimed entry's payload could not be decoded.
type OutboxMessage struct {
	OutboxID  string           `json:"outbox_id"`
	Dispatch  *DispatchMessage `json:"dispatch,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Outbox failure reasons
const (
	OutboxReasonMissingPayload = "missing_payload"
)

// Retry plan reasons
const (
	RetryReasonSuccess            = "success"
	RetryReasonMaxAttempts        = "max_attempts"
	RetryReasonNoFallbacks        = "no_fallbacks"
	RetryReasonFallbacksExhausted = "fallbacks_exhausted"
	RetryReasonFallback           = "fallback"
)

// RetryPlan is the retry planner's verdict for a failed attempt
type RetryPlan struct {
	ShouldRetry bool
	Provider    string
	Model       string
	Reason      string
}

// NoRetry returns a plan that stops the job
func NoRetry(reason string) RetryPlan {
	return RetryPlan{Reason: reason}
}

// RetryWith returns a plan that retries on the given provider and model
func RetryWith(provider, model, reason string) RetryPlan {
	return RetryPlan{ShouldRetry: true, Provider: provider, Model: model, Reason: reason}
}

// IngestStatus is the outcome kind of result ingestion
type IngestStatus string

const (
	IngestDuplicate   IngestStatus = "duplicate"
	IngestJobNotFound IngestStatus = "job_not_found"
	IngestFinalized   IngestStatus = "finalized"
	IngestRetrying    IngestStatus = "retrying"
)

// IngestOutcome reports what result ingestion did.
// Response is set for finalized outcomes, Dispatch for retrying ones.
type IngestOutcome struct {
	Status   IngestStatus       `json:"status"`
	Response *CanonicalResponse `json:"response,omitempty"`
	Dispatch *DispatchMessage   `json:"dispatch,omitempty"`
}
