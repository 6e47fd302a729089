package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// RetryPolicyVersion is stamped on routing decisions created by the retry path
const RetryPolicyVersion = "retry"

// ID prefixes
const (
	jobIDPrefix     = "job"
	attemptIDPrefix = "attempt"
	outboxIDPrefix  = "outbox"
)

// Config holds orchestrator dependencies
type Config struct {
	Logger    *slog.Logger
	Jobs      JobStore
	Events    EventStore
	Outbox    OutboxStore
	Dedup     DedupStore
	Results   ResultStore
	Routing   RoutingPolicy
	Retry     RetryPlanner
	Assembler ResponseAssembler
	IDs       IDGenerator
	Clock     Clock
	Metrics   Recorder
}

// Orchestrator drives jobs through routing, dispatch and result ingestion
type Orchestrator struct {
	logger    *slog.Logger
	jobs      JobStore
	events    EventStore
	outbox    OutboxStore
	dedup     DedupStore
	results   ResultStore
	routing   RoutingPolicy
	retry     RetryPlanner
	assembler ResponseAssembler
	ids       IDGenerator
	clock     Clock
	metrics   Recorder
}

// Submission is the combined result of accepting, routing and dispatching a job
type Submission struct {
	Handle   domain.JobHandle       `json:"handle"`
	Routing  domain.RoutingDecision `json:"routing"`
	Dispatch domain.DispatchMessage `json:"dispatch"`
}

// New creates an orchestrator. Logger, IDs, Clock and Metrics are optional.
func New(cfg *Config) (*Orchestrator, error) {
	switch {
	case cfg == nil:
		return nil, domain.Configuration("orchestrator config is required")
	case cfg.Jobs == nil:
		return nil, domain.Configuration("job store is required")
	case cfg.Events == nil:
		return nil, domain.Configuration("event store is required")
	case cfg.Outbox == nil:
		return nil, domain.Configuration("outbox store is required")
	case cfg.Dedup == nil:
		return nil, domain.Configuration("dedup store is required")
	case cfg.Results == nil:
		return nil, domain.Configuration("result store is required")
	case cfg.Routing == nil:
		return nil, domain.Configuration("routing policy is required")
	case cfg.Retry == nil:
		return nil, domain.Configuration("retry planner is required")
	case cfg.Assembler == nil:
		return nil, domain.Configuration("response assembler is required")
	}

	o := &Orchestrator{
		logger:    cfg.Logger,
		jobs:      cfg.Jobs,
		events:    cfg.Events,
		outbox:    cfg.Outbox,
		dedup:     cfg.Dedup,
		results:   cfg.Results,
		routing:   cfg.Routing,
		retry:     cfg.Retry,
		assembler: cfg.Assembler,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ids == nil {
		o.ids = UUIDGenerator{}
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.metrics == nil {
		o.metrics = nopRecorder{}
	}

	return o, nil
}

// Accept validates a request and persists a new job with its first attempt.
// Ids missing from the request are generated.
func (o *Orchestrator) Accept(ctx context.Context, req *domain.CanonicalJobRequest) (domain.JobHandle, error) {
	if req == nil {
		return domain.JobHandle{}, domain.Validation("request", "request is required")
	}
	if strings.TrimSpace(req.TaskType) == "" {
		return domain.JobHandle{}, domain.Validation("task_type", "task type is required")
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = o.ids.NewID(jobIDPrefix)
	}
	attemptID := strings.TrimSpace(req.AttemptID)
	if attemptID == "" {
		attemptID = o.ids.NewID(attemptIDPrefix)
	}
	traceID := strings.TrimSpace(req.TraceID)
	if traceID == "" {
		traceID = o.ids.NewTraceID()
	}

	now := o.clock.Now()
	job, err := domain.NewJobRecord(req.WithIDs(jobID, attemptID, traceID), now)
	if err != nil {
		return domain.JobHandle{}, err
	}

	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return domain.JobHandle{}, fmt.Errorf("failed to create job: %w", err)
	}

	if err := o.events.AppendEvent(ctx, domain.NewEvent(jobID, attemptID, domain.EventCreated, now, nil)); err != nil {
		return domain.JobHandle{}, fmt.Errorf("failed to append created event: %w", err)
	}

	o.metrics.JobAccepted(req.TaskType)
	o.logger.Info("Accepted job request",
		slog.String("job_id", jobID),
		slog.String("attempt_id", attemptID),
		slog.String("trace_id", traceID),
		slog.String("task_type", req.TaskType),
	)

	return domain.JobHandle{JobID: jobID, AttemptID: attemptID, TraceID: traceID}, nil
}

// Route asks the routing policy for a decision and stamps it on the current attempt
func (o *Orchestrator) Route(ctx context.Context, jobID string) (domain.RoutingDecision, error) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return domain.RoutingDecision{}, err
	}

	attempt, ok := job.CurrentAttempt()
	if !ok {
		return domain.RoutingDecision{}, domain.NotFound("attempt", job.CurrentAttemptID)
	}

	decision, err := o.routing.Decide(ctx, job.Request)
	if err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("failed to decide route: %w", err)
	}

	now := o.clock.Now()
	next, err := job.ApplyRouting(attempt.AttemptID, decision, now)
	if err != nil {
		return domain.RoutingDecision{}, err
	}

	if err := o.jobs.UpdateJob(ctx, next); err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("failed to update job: %w", err)
	}

	event := domain.NewEvent(job.JobID, attempt.AttemptID, domain.EventRouted, now, map[string]string{
		"provider":       decision.Provider,
		"model":          decision.Model,
		"policy_version": decision.PolicyVersion,
	})
	if err := o.events.AppendEvent(ctx, event); err != nil {
		return domain.RoutingDecision{}, fmt.Errorf("failed to append routed event: %w", err)
	}

	o.logger.Info("Routed job",
		slog.String("job_id", job.JobID),
		slog.String("attempt_id", attempt.AttemptID),
		slog.String("provider", decision.Provider),
		slog.String("model", decision.Model),
		slog.String("policy_version", decision.PolicyVersion),
	)

	return decision, nil
}

// Dispatch writes the attempt's dispatch message to the outbox and marks it dispatched.
// Publishing to the queue happens later through OutboxProcessor.
func (o *Orchestrator) Dispatch(ctx context.Context, jobID, attemptID string) (domain.DispatchMessage, error) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return domain.DispatchMessage{}, err
	}

	attempt, ok := job.Attempt(attemptID)
	if !ok {
		return domain.DispatchMessage{}, domain.NotFound("attempt", attemptID)
	}
	if !attempt.IsRouted() {
		return domain.DispatchMessage{}, domain.InvalidState("attempt %q has not been routed", attemptID)
	}

	now := o.clock.Now()
	next, err := job.MarkDispatched(attemptID, now)
	if err != nil {
		return domain.DispatchMessage{}, err
	}

	dispatched, _ := next.Attempt(attemptID)
	msg := domain.NewDispatchMessage(next, dispatched)

	if err := o.commitDispatch(ctx, next, msg, now); err != nil {
		return domain.DispatchMessage{}, err
	}

	event := domain.NewEvent(job.JobID, attemptID, domain.EventDispatched, now, map[string]string{
		"provider":        msg.Provider,
		"model":           msg.Model,
		"idempotency_key": msg.IdempotencyKey,
	})
	if err := o.events.AppendEvent(ctx, event); err != nil {
		return domain.DispatchMessage{}, fmt.Errorf("failed to append dispatched event: %w", err)
	}

	o.metrics.JobDispatched(msg.Provider)
	o.logger.Info("Dispatched job to outbox",
		slog.String("job_id", job.JobID),
		slog.String("attempt_id", attemptID),
		slog.String("provider", msg.Provider),
		slog.String("idempotency_key", msg.IdempotencyKey),
	)

	return msg, nil
}

// Submit accepts, routes and dispatches a request in one call
func (o *Orchestrator) Submit(ctx context.Context, req *domain.CanonicalJobRequest) (Submission, error) {
	handle, err := o.Accept(ctx, req)
	if err != nil {
		return Submission{}, err
	}

	decision, err := o.Route(ctx, handle.JobID)
	if err != nil {
		return Submission{}, err
	}

	msg, err := o.Dispatch(ctx, handle.JobID, handle.AttemptID)
	if err != nil {
		return Submission{}, err
	}

	return Submission{Handle: handle, Routing: decision, Dispatch: msg}, nil
}

// IngestResult applies a provider result to its job exactly once per (job, attempt).
// Provider failures are returned as outcomes, never as errors.
func (o *Orchestrator) IngestResult(ctx context.Context, result *domain.ProviderResultEvent) (domain.IngestOutcome, error) {
	if result == nil {
		return domain.IngestOutcome{}, domain.Validation("result", "result is required")
	}
	if strings.TrimSpace(result.JobID) == "" || strings.TrimSpace(result.AttemptID) == "" {
		return domain.IngestOutcome{}, domain.Validation("result", "job_id and attempt_id are required")
	}

	started, err := o.dedup.TryStart(ctx, result.JobID, result.AttemptID)
	if err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("failed to start result ingestion: %w", err)
	}
	if !started {
		o.logger.Info("Ignoring duplicate provider result",
			slog.String("job_id", result.JobID),
			slog.String("attempt_id", result.AttemptID),
		)
		return o.outcome(domain.IngestOutcome{Status: domain.IngestDuplicate}), nil
	}

	outcome, err := o.ingest(ctx, result)
	if err != nil {
		// Drop the processing marker so a redelivery retries the ingest
		o.abandon(context.WithoutCancel(ctx), result.JobID, result.AttemptID)
		return domain.IngestOutcome{}, err
	}
	return outcome, nil
}

func (o *Orchestrator) ingest(ctx context.Context, result *domain.ProviderResultEvent) (domain.IngestOutcome, error) {
	job, err := o.jobs.GetJob(ctx, result.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		return o.jobNotFound(ctx, result), nil
	}
	if err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("failed to load job: %w", err)
	}

	attempt, ok := job.Attempt(result.AttemptID)
	if !ok {
		return o.jobNotFound(ctx, result), nil
	}

	// The dedup entry may have expired after an earlier ingestion finished
	if attempt.State.IsTerminal() {
		o.markCompleted(ctx, result.JobID, result.AttemptID)
		o.logger.Info("Ignoring result for finished attempt",
			slog.String("job_id", result.JobID),
			slog.String("attempt_id", result.AttemptID),
			slog.String("attempt_state", string(attempt.State)),
		)
		return o.outcome(domain.IngestOutcome{Status: domain.IngestDuplicate}), nil
	}

	if result.IsSuccess {
		return o.complete(ctx, job, attempt, result)
	}

	plan := o.retry.PlanRetry(job, attempt, *result)
	if plan.ShouldRetry && strings.TrimSpace(plan.Provider) != "" {
		return o.scheduleRetry(ctx, job, attempt, result, plan)
	}

	return o.fail(ctx, job, attempt, result, plan)
}

func (o *Orchestrator) complete(ctx context.Context, job domain.JobRecord, attempt domain.JobAttempt, result *domain.ProviderResultEvent) (domain.IngestOutcome, error) {
	resp := o.assembler.Assemble(*result)
	now := o.clock.Now()

	next, err := job.CompleteAttempt(attempt.AttemptID, now)
	if err != nil {
		return domain.IngestOutcome{}, err
	}

	if err := o.saveResults(ctx, next, attempt.AttemptID, resp); err != nil {
		return domain.IngestOutcome{}, err
	}

	event := domain.NewEvent(job.JobID, attempt.AttemptID, domain.EventCompleted, now, map[string]string{
		"provider":   resp.Provider,
		"model":      resp.Model,
		"output_ref": resp.OutputRef,
	})
	if err := o.events.AppendEvent(ctx, event); err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("failed to append completed event: %w", err)
	}

	o.markCompleted(ctx, job.JobID, attempt.AttemptID)

	o.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("attempt_id", attempt.AttemptID),
		slog.String("provider", resp.Provider),
		slog.String("model", resp.Model),
	)

	return o.outcome(domain.IngestOutcome{Status: domain.IngestFinalized, Response: &resp}), nil
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, job domain.JobRecord, attempt domain.JobAttempt, result *domain.ProviderResultEvent, plan domain.RetryPlan) (domain.IngestOutcome, error) {
	now := o.clock.Now()
	newAttemptID := o.ids.NewID(attemptIDPrefix)
	decision := domain.RoutingDecision{
		Provider:          plan.Provider,
		Model:             plan.Model,
		PolicyVersion:     RetryPolicyVersion,
		FallbackProviders: []string{},
	}

	next, err := job.AddRetryAttempt(attempt.AttemptID, newAttemptID, decision, now)
	if err != nil {
		return domain.IngestOutcome{}, err
	}

	newAttempt, _ := next.Attempt(newAttemptID)
	msg := domain.NewDispatchMessage(next, newAttempt)

	if err := o.results.SaveAttemptResult(ctx, job.JobID, attempt.AttemptID, o.assembler.Assemble(*result)); err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("failed to save attempt result: %w", err)
	}

	if err := o.commitDispatch(ctx, next, msg, now); err != nil {
		return domain.IngestOutcome{}, err
	}

	event := domain.NewEvent(job.JobID, attempt.AttemptID, domain.EventRetried, now, map[string]string{
		"provider":        plan.Provider,
		"model":           plan.Model,
		"reason":          plan.Reason,
		"next_attempt_id": newAttemptID,
	})
	if err := o.events.AppendEvent(ctx, event); err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("failed to append retried event: %w", err)
	}

	o.markCompleted(ctx, job.JobID, attempt.AttemptID)

	o.metrics.RetryScheduled(plan.Provider, plan.Reason)
	o.logger.Warn("Provider attempt failed, retrying on fallback",
		slog.String("job_id", job.JobID),
		slog.String("failed_attempt_id", attempt.AttemptID),
		slog.String("failed_provider", attempt.Provider),
		slog.String("attempt_id", newAttemptID),
		slog.String("provider", plan.Provider),
		slog.String("model", plan.Model),
	)

	return o.outcome(domain.IngestOutcome{Status: domain.IngestRetrying, Dispatch: &msg}), nil
}

func (o *Orchestrator) fail(ctx context.Context, job domain.JobRecord, attempt domain.JobAttempt, result *domain.ProviderResultEvent, plan domain.RetryPlan) (domain.IngestOutcome, error) {
	resp := o.assembler.Assemble(*result)
	now := o.clock.Now()

	next, err := job.FailAttempt(attempt.AttemptID, now)
	if err != nil {
		return domain.IngestOutcome{}, err
	}

	if err := o.saveResults(ctx, next, attempt.AttemptID, resp); err != nil {
		return domain.IngestOutcome{}, err
	}

	if resp.Error != nil {
		event := domain.NewEvent(job.JobID, attempt.AttemptID, domain.EventFailed, now, map[string]string{
			"error_code":    resp.Error.Code,
			"error_message": resp.Error.Message,
			"retry_reason":  plan.Reason,
		})
		if err := o.events.AppendEvent(ctx, event); err != nil {
			return domain.IngestOutcome{}, fmt.Errorf("failed to append failed event: %w", err)
		}
	}

	o.markCompleted(ctx, job.JobID, attempt.AttemptID)

	attrs := []any{
		slog.String("job_id", job.JobID),
		slog.String("attempt_id", attempt.AttemptID),
		slog.String("provider", resp.Provider),
		slog.String("retry_reason", plan.Reason),
	}
	if resp.Error != nil {
		attrs = append(attrs, slog.String("error_code", resp.Error.Code))
	}
	o.logger.Error("Job failed", attrs...)

	return o.outcome(domain.IngestOutcome{Status: domain.IngestFinalized, Response: &resp}), nil
}

// GetJob returns the current job snapshot
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	return o.loadJob(ctx, jobID)
}

// GetFinalResult returns the final response of a finished job
func (o *Orchestrator) GetFinalResult(ctx context.Context, jobID string) (domain.CanonicalResponse, error) {
	return o.results.GetFinalResult(ctx, jobID)
}

// GetEvents returns the job's audit log in occurrence order
func (o *Orchestrator) GetEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	return o.events.ListEvents(ctx, jobID)
}

// ListJobs returns up to limit summaries, most recently updated first
func (o *Orchestrator) ListJobs(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 {
		return nil, domain.Validation("limit", "limit must be greater than 0")
	}
	return o.jobs.ListJobs(ctx, limit)
}

func (o *Orchestrator) loadJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.JobRecord{}, domain.Validation("job_id", "job id is required")
	}
	return o.jobs.GetJob(ctx, jobID)
}

// commitDispatch persists job together with a fresh outbox entry for msg.
// Without a DispatchCommitter the entry is enqueued before the job update.
func (o *Orchestrator) commitDispatch(ctx context.Context, job domain.JobRecord, msg domain.DispatchMessage, now time.Time) error {
	entry := domain.OutboxMessage{
		OutboxID:  o.ids.NewID(outboxIDPrefix),
		Dispatch:  &msg,
		CreatedAt: now,
	}

	if committer, ok := o.jobs.(DispatchCommitter); ok {
		if err := committer.CommitDispatch(ctx, job, entry); err != nil {
			return fmt.Errorf("failed to commit dispatch: %w", err)
		}
		return nil
	}

	if err := o.outbox.EnqueueDispatch(ctx, entry); err != nil {
		return fmt.Errorf("failed to enqueue dispatch: %w", err)
	}
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (o *Orchestrator) saveResults(ctx context.Context, job domain.JobRecord, attemptID string, resp domain.CanonicalResponse) error {
	if err := o.results.SaveAttemptResult(ctx, job.JobID, attemptID, resp); err != nil {
		return fmt.Errorf("failed to save attempt result: %w", err)
	}
	if err := o.results.SaveFinalResult(ctx, job.JobID, resp); err != nil {
		return fmt.Errorf("failed to save final result: %w", err)
	}
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (o *Orchestrator) jobNotFound(ctx context.Context, result *domain.ProviderResultEvent) domain.IngestOutcome {
	o.markCompleted(ctx, result.JobID, result.AttemptID)
	o.logger.Warn("Provider result references unknown job or attempt",
		slog.String("job_id", result.JobID),
		slog.String("attempt_id", result.AttemptID),
	)
	return o.outcome(domain.IngestOutcome{Status: domain.IngestJobNotFound})
}

// markCompleted releases the dedup entry into its completed state. A failure
// here is logged only: the processing entry expires and a redelivery then
// finds the attempt already finished.
func (o *Orchestrator) markCompleted(ctx context.Context, jobID, attemptID string) {
	if err := o.dedup.MarkCompleted(ctx, jobID, attemptID); err != nil {
		o.logger.Warn("Failed to mark result ingestion completed",
			slog.String("job_id", jobID),
			slog.String("attempt_id", attemptID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) abandon(ctx context.Context, jobID, attemptID string) {
	if err := o.dedup.Abandon(ctx, jobID, attemptID); err != nil {
		o.logger.Warn("Failed to clear result ingestion marker",
			slog.String("job_id", jobID),
			slog.String("attempt_id", attemptID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) outcome(out domain.IngestOutcome) domain.IngestOutcome {
	o.metrics.ResultIngested(out.Status)
	return out
}
