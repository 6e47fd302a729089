package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
	"github.com/cuongbtq/prompt-gateway/internal/policy"
	"github.com/cuongbtq/prompt-gateway/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns now and then moves forward by step
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", prefix, g.n)
}

func (g *seqIDs) NewTraceID() string {
	return g.NewID("trace")
}

type harness struct {
	orch  *orchestrator.Orchestrator
	store *memory.Store
	clock *fakeClock
}

func newHarness(t *testing.T, routing orchestrator.RoutingPolicy) *harness {
	t.Helper()
	clock := newFakeClock()
	clock.step = time.Millisecond
	store := memory.New(memory.WithClock(clock.Now))

	if routing == nil {
		routing = policy.NewStaticRoutingPolicy(policy.RoutingOptions{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			FallbackProviders: []string{"anthropic"},
		})
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Jobs:      store,
		Events:    store,
		Outbox:    store,
		Dedup:     store,
		Results:   store,
		Routing:   routing,
		Retry:     policy.NewFallbackRetryPlanner(3),
		Assembler: policy.NewSimpleResponseAssembler(),
		IDs:       &seqIDs{},
		Clock:     clock,
	})
	require.NoError(t, err)

	return &harness{orch: orch, store: store, clock: clock}
}

func (h *harness) submit(t *testing.T) orchestrator.Submission {
	t.Helper()
	sub, err := h.orch.Submit(context.Background(), &domain.CanonicalJobRequest{TaskType: "summarize", InputRef: "s3://in"})
	require.NoError(t, err)
	return sub
}

func (h *harness) eventTypes(t *testing.T, jobID string) []domain.EventType {
	t.Helper()
	events, err := h.orch.GetEvents(context.Background(), jobID)
	require.NoError(t, err)
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := orchestrator.New(&orchestrator.Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = orchestrator.New(nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOrchestrator_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("generates ids and records created event", func(t *testing.T) {
		h := newHarness(t, nil)

		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "summarize"})
		require.NoError(t, err)
		assert.Equal(t, "job-1", handle.JobID)
		assert.Equal(t, "attempt-2", handle.AttemptID)
		assert.Equal(t, "trace-3", handle.TraceID)

		job, err := h.orch.GetJob(ctx, handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateCreated, job.State)
		assert.Equal(t, handle.AttemptID, job.CurrentAttemptID)
		assert.Equal(t, handle.AttemptID, job.Request.AttemptID)
		assert.Len(t, job.Attempts, 1)

		assert.Equal(t, []domain.EventType{domain.EventCreated}, h.eventTypes(t, handle.JobID))
		assert.Empty(t, h.store.OutboxEntries())
	})

	t.Run("keeps caller supplied ids", func(t *testing.T) {
		h := newHarness(t, nil)

		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{
			JobID: "job-x", AttemptID: "attempt-x", TraceID: "trace-x", TaskType: "chat",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.JobHandle{JobID: "job-x", AttemptID: "attempt-x", TraceID: "trace-x"}, handle)
	})

	t.Run("rejects duplicate job id", func(t *testing.T) {
		h := newHarness(t, nil)
		req := &domain.CanonicalJobRequest{JobID: "job-x", TaskType: "chat"}

		_, err := h.orch.Accept(ctx, req)
		require.NoError(t, err)

		_, err = h.orch.Accept(ctx, req)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("validation", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.orch.Accept(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "   "})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestOrchestrator_Route(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps decision on current attempt", func(t *testing.T) {
		h := newHarness(t, nil)
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)

		decision, err := h.orch.Route(ctx, handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, "openai", decision.Provider)
		assert.Equal(t, "static", decision.PolicyVersion)

		job, err := h.orch.GetJob(ctx, handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRouted, job.State)
		attempt, _ := job.CurrentAttempt()
		assert.Equal(t, domain.AttemptStateRouted, attempt.State)

		events, err := h.orch.GetEvents(ctx, handle.JobID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, map[string]string{
			"provider":       "openai",
			"model":          "gpt-4o-mini",
			"policy_version": "static",
		}, events[1].Attributes)

		_, err = h.orch.Route(ctx, handle.JobID)
		require.NoError(t, err)
		job, err = h.orch.GetJob(ctx, handle.JobID)
		require.NoError(t, err)
		assert.Len(t, job.Attempts, 1)
	})

	t.Run("unknown job", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.orch.Route(ctx, "job-missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("misconfigured policy", func(t *testing.T) {
		h := newHarness(t, policy.NewStaticRoutingPolicy(policy.RoutingOptions{}))
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)

		_, err = h.orch.Route(ctx, handle.JobID)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestOrchestrator_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("writes outbox entry and marks dispatched", func(t *testing.T) {
		h := newHarness(t, nil)
		sub := h.submit(t)

		assert.Equal(t, sub.Handle.JobID+":"+sub.Handle.AttemptID, sub.Dispatch.IdempotencyKey)
		assert.Equal(t, "openai", sub.Dispatch.Provider)
		assert.Equal(t, sub.Handle.AttemptID, sub.Dispatch.Request.AttemptID)

		job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateDispatched, job.State)
		assert.Equal(t, domain.AttemptStateDispatched, job.Attempts[0].State)

		entries := h.store.OutboxEntries()
		require.Len(t, entries, 1)
		assert.Equal(t, domain.OutboxStatusPending, entries[0].Status)
		require.NotNil(t, entries[0].Message.Dispatch)
		assert.Equal(t, sub.Dispatch, *entries[0].Message.Dispatch)

		assert.Equal(t, []domain.EventType{domain.EventCreated, domain.EventRouted, domain.EventDispatched}, h.eventTypes(t, sub.Handle.JobID))
	})

	t.Run("before routing", func(t *testing.T) {
		h := newHarness(t, nil)
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)

		_, err = h.orch.Dispatch(ctx, handle.JobID, handle.AttemptID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Empty(t, h.store.OutboxEntries())
	})

	t.Run("unknown attempt", func(t *testing.T) {
		h := newHarness(t, nil)
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)

		_, err = h.orch.Dispatch(ctx, handle.JobID, "attempt-missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("cancelled context leaves no outbox entry", func(t *testing.T) {
		h := newHarness(t, nil)
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)
		_, err = h.orch.Route(ctx, handle.JobID)
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = h.orch.Dispatch(cancelled, handle.JobID, handle.AttemptID)
		require.Error(t, err)
		assert.Empty(t, h.store.OutboxEntries())
	})
}

func TestOrchestrator_IngestResult_Success(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sub := h.submit(t)

	result := &domain.ProviderResultEvent{
		JobID:     sub.Handle.JobID,
		AttemptID: sub.Handle.AttemptID,
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		IsSuccess: true,
		OutputRef: "s3://out/1",
		Usage:     &domain.UsageMetrics{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}

	outcome, err := h.orch.IngestResult(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestFinalized, outcome.Status)
	require.NotNil(t, outcome.Response)
	assert.Nil(t, outcome.Response.Error)
	assert.Equal(t, "s3://out/1", outcome.Response.OutputRef)

	job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, job.State)
	assert.Equal(t, domain.AttemptStateCompleted, job.Attempts[0].State)

	final, err := h.orch.GetFinalResult(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, *outcome.Response, final)

	attemptResult, ok := h.store.AttemptResult(sub.Handle.JobID, sub.Handle.AttemptID)
	require.True(t, ok)
	assert.Equal(t, final, attemptResult)

	events, err := h.orch.GetEvents(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventCompleted, last.Type)
	assert.Equal(t, "s3://out/1", last.Attributes["output_ref"])

	t.Run("redelivery is a no-op", func(t *testing.T) {
		again, err := h.orch.IngestResult(ctx, result)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestOutcome{Status: domain.IngestDuplicate}, again)

		after, err := h.orch.GetEvents(ctx, sub.Handle.JobID)
		require.NoError(t, err)
		assert.Len(t, after, len(events))
	})

	t.Run("redelivery after dedup expiry is still a no-op", func(t *testing.T) {
		h.clock.Advance(memory.DefaultCompletedTTL + time.Minute)

		again, err := h.orch.IngestResult(ctx, result)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestDuplicate, again.Status)

		job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateCompleted, job.State)
	})
}

func TestOrchestrator_IngestResult_FallbackRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sub := h.submit(t)

	outcome, err := h.orch.IngestResult(ctx, &domain.ProviderResultEvent{
		JobID:     sub.Handle.JobID,
		AttemptID: sub.Handle.AttemptID,
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Error:     &domain.CanonicalError{Code: "rate_limited", Message: "too many requests"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IngestRetrying, outcome.Status)
	require.NotNil(t, outcome.Dispatch)
	assert.Equal(t, "anthropic", outcome.Dispatch.Provider)
	assert.Equal(t, "gpt-4o-mini", outcome.Dispatch.Model)
	assert.NotEqual(t, sub.Handle.AttemptID, outcome.Dispatch.AttemptID)
	assert.Equal(t, outcome.Dispatch.AttemptID, outcome.Dispatch.Request.AttemptID)

	job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateRetrying, job.State)
	require.Len(t, job.Attempts, 2)
	assert.Equal(t, outcome.Dispatch.AttemptID, job.CurrentAttemptID)
	assert.Equal(t, domain.AttemptStateFailed, job.Attempts[0].State)
	retryAttempt := job.Attempts[1]
	require.NotNil(t, retryAttempt.RoutingDecision)
	assert.Equal(t, "retry", retryAttempt.RoutingDecision.PolicyVersion)
	assert.Empty(t, retryAttempt.RoutingDecision.FallbackProviders)

	entries := h.store.OutboxEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, outcome.Dispatch.IdempotencyKey, entries[1].Message.Dispatch.IdempotencyKey)

	events, err := h.orch.GetEvents(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	retried := events[len(events)-1]
	assert.Equal(t, domain.EventRetried, retried.Type)
	assert.Equal(t, sub.Handle.AttemptID, retried.AttemptID)
	assert.Equal(t, "anthropic", retried.Attributes["provider"])

	_, err = h.orch.GetFinalResult(ctx, sub.Handle.JobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t.Run("retry attempt failure finalizes the job", func(t *testing.T) {
		outcome, err := h.orch.IngestResult(ctx, &domain.ProviderResultEvent{
			JobID:     sub.Handle.JobID,
			AttemptID: job.CurrentAttemptID,
			Provider:  "anthropic",
			Model:     "gpt-4o-mini",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.IngestFinalized, outcome.Status)
		require.NotNil(t, outcome.Response.Error)
		assert.Equal(t, "provider_error", outcome.Response.Error.Code)

		job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateFailed, job.State)
		assert.Len(t, job.Attempts, 2)

		events, err := h.orch.GetEvents(ctx, sub.Handle.JobID)
		require.NoError(t, err)
		failed := events[len(events)-1]
		assert.Equal(t, domain.EventFailed, failed.Type)
		assert.Equal(t, "provider_error", failed.Attributes["error_code"])
		assert.Equal(t, "no_fallbacks", failed.Attributes["retry_reason"])
	})

	t.Run("late result for the failed attempt is ignored", func(t *testing.T) {
		h.clock.Advance(memory.DefaultCompletedTTL + time.Minute)

		outcome, err := h.orch.IngestResult(ctx, &domain.ProviderResultEvent{
			JobID:     sub.Handle.JobID,
			AttemptID: sub.Handle.AttemptID,
			IsSuccess: true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.IngestDuplicate, outcome.Status)
	})
}

func TestOrchestrator_IngestResult_FailureWithoutFallbacks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, policy.NewStaticRoutingPolicy(policy.RoutingOptions{Provider: "openai", Model: "gpt-4o"}))
	sub := h.submit(t)

	outcome, err := h.orch.IngestResult(ctx, &domain.ProviderResultEvent{
		JobID:     sub.Handle.JobID,
		AttemptID: sub.Handle.AttemptID,
		Provider:  "openai",
		Model:     "gpt-4o",
		Error:     &domain.CanonicalError{Code: "bad_request", Message: "prompt too long", ProviderCode: "400"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IngestFinalized, outcome.Status)
	assert.Equal(t, &domain.CanonicalError{Code: "bad_request", Message: "prompt too long", ProviderCode: "400"}, outcome.Response.Error)

	job, err := h.orch.GetJob(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, job.State)
	assert.Len(t, job.Attempts, 1)
	assert.Len(t, h.store.OutboxEntries(), 1)

	final, err := h.orch.GetFinalResult(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, "bad_request", final.Error.Code)
}

func TestOrchestrator_IngestResult_JobNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sub := h.submit(t)

	tests := []struct {
		name   string
		result *domain.ProviderResultEvent
	}{
		{
			name:   "unknown job",
			result: &domain.ProviderResultEvent{JobID: "job-missing", AttemptID: "attempt-1", IsSuccess: true},
		},
		{
			name:   "unknown attempt",
			result: &domain.ProviderResultEvent{JobID: sub.Handle.JobID, AttemptID: "attempt-missing", IsSuccess: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := h.orch.IngestResult(ctx, tt.result)
			require.NoError(t, err)
			assert.Equal(t, domain.IngestJobNotFound, outcome.Status)

			// the dedup entry was completed, so redelivery is a duplicate
			outcome, err = h.orch.IngestResult(ctx, tt.result)
			require.NoError(t, err)
			assert.Equal(t, domain.IngestDuplicate, outcome.Status)
		})
	}
}

func TestOrchestrator_IngestResult_Validation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.IngestResult(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.orch.IngestResult(context.Background(), &domain.ProviderResultEvent{JobID: "job-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// flakyJobs fails the next GetJob call with err
type flakyJobs struct {
	*memory.Store
	mu  sync.Mutex
	err error
}

func (f *flakyJobs) failNextGet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyJobs) GetJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	f.mu.Lock()
	err := f.err
	f.err = nil
	f.mu.Unlock()
	if err != nil {
		return domain.JobRecord{}, err
	}
	return f.Store.GetJob(ctx, jobID)
}

func TestOrchestrator_IngestResult_RedeliveryAfterTransientFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	clock.step = time.Millisecond
	store := memory.New(memory.WithClock(clock.Now))
	jobs := &flakyJobs{Store: store}

	orch, err := orchestrator.New(&orchestrator.Config{
		Jobs:      jobs,
		Events:    store,
		Outbox:    store,
		Dedup:     store,
		Results:   store,
		Routing:   policy.NewStaticRoutingPolicy(policy.RoutingOptions{Provider: "openai", Model: "gpt-4o-mini"}),
		Retry:     policy.NewFallbackRetryPlanner(3),
		Assembler: policy.NewSimpleResponseAssembler(),
		IDs:       &seqIDs{},
		Clock:     clock,
	})
	require.NoError(t, err)

	sub, err := orch.Submit(ctx, &domain.CanonicalJobRequest{TaskType: "summarize"})
	require.NoError(t, err)

	result := &domain.ProviderResultEvent{
		JobID:     sub.Handle.JobID,
		AttemptID: sub.Handle.AttemptID,
		Provider:  "openai",
		IsSuccess: true,
	}

	jobs.failNextGet(domain.Transient("get job", errors.New("connection reset")))
	_, err = orch.IngestResult(ctx, result)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	// redelivered well within the processing ttl
	outcome, err := orch.IngestResult(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestFinalized, outcome.Status)

	job, err := orch.GetJob(ctx, sub.Handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, job.State)

	again, err := orch.IngestResult(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestDuplicate, again.Status)
}

func TestOrchestrator_IngestResult_ConcurrentDelivery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sub := h.submit(t)

	result := &domain.ProviderResultEvent{
		JobID:     sub.Handle.JobID,
		AttemptID: sub.Handle.AttemptID,
		IsSuccess: true,
	}

	const deliveries = 8
	statuses := make(chan domain.IngestStatus, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := h.orch.IngestResult(ctx, result)
			assert.NoError(t, err)
			statuses <- outcome.Status
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[domain.IngestStatus]int{}
	for s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[domain.IngestFinalized])
	assert.Equal(t, deliveries-1, counts[domain.IngestDuplicate])
}

func TestOrchestrator_StaleSnapshotUpdateIsTransient(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
	require.NoError(t, err)

	stale, err := h.store.GetJob(ctx, handle.JobID)
	require.NoError(t, err)

	_, err = h.orch.Route(ctx, handle.JobID)
	require.NoError(t, err)

	err = h.store.UpdateJob(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.True(t, domain.IsRetryable(err))
}

func TestOrchestrator_ListJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		handle, err := h.orch.Accept(ctx, &domain.CanonicalJobRequest{TaskType: "chat"})
		require.NoError(t, err)
		ids = append(ids, handle.JobID)
		h.clock.Advance(time.Second)
	}

	jobs, err := h.orch.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].JobID)
	assert.Equal(t, ids[1], jobs[1].JobID)

	_, err = h.orch.ListJobs(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.orch.ListJobs(ctx, -5)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
