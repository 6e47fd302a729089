package domain

import (
	"maps"
	"time"
)

// JobState is the lifecycle state of a job
type JobState string

const (
	JobStateCreated    JobState = "created"
	JobStateRouted     JobState = "routed"
	JobStateDispatched JobState = "dispatched"
	JobStateStarted    JobState = "started"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateRetrying   JobState = "retrying"
	JobStateCancelled  JobState = "cancelled"
	JobStateExpired    JobState = "expired"
)

// IsTerminal reports whether no further transitions are expected
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled, JobStateExpired:
		return true
	}
	return false
}

// AttemptState is the lifecycle state of a single provider attempt
type AttemptState string

const (
	AttemptStateCreated    AttemptState = "created"
	AttemptStateRouted     AttemptState = "routed"
	AttemptStateDispatched AttemptState = "dispatched"
	AttemptStateStarted    AttemptState = "started"
	AttemptStateCompleted  AttemptState = "completed"
	AttemptStateFailed     AttemptState = "failed"
)

// IsTerminal reports whether the attempt has received its result
func (s AttemptState) IsTerminal() bool {
	return s == AttemptStateCompleted || s == AttemptStateFailed
}

// CanonicalJobRequest is the provider-agnostic job request
type CanonicalJobRequest struct {
	JobID     string            `json:"job_id,omitempty"`
	AttemptID string            `json:"attempt_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	TaskType  string            `json:"task_type"`
	InputRef  string            `json:"input_ref,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// WithIDs returns a copy of the request carrying the given identifiers
func (r CanonicalJobRequest) WithIDs(jobID, attemptID, traceID string) CanonicalJobRequest {
	out := r
	out.JobID = jobID
	out.AttemptID = attemptID
	out.TraceID = traceID
	out.Metadata = maps.Clone(r.Metadata)
	return out
}

// JobHandle identifies an accepted job
type JobHandle struct {
	JobID     string `json:"job_id"`
	AttemptID string `json:"attempt_id"`
	TraceID   string `json:"trace_id"`
}

// RoutingDecision is the provider selection for one attempt
type RoutingDecision struct {
	Provider          string            `json:"provider"`
	Model             string            `json:"model"`
	PolicyVersion     string            `json:"policy_version"`
	FallbackProviders []string          `json:"fallback_providers"`
	Inputs            map[string]string `json:"inputs,omitempty"`
}

func (d RoutingDecision) clone() RoutingDecision {
	out := d
	if d.FallbackProviders != nil {
		out.FallbackProviders = append([]string(nil), d.FallbackProviders...)
	}
	out.Inputs = maps.Clone(d.Inputs)
	return out
}

// UsageMetrics holds token accounting reported by a provider
type UsageMetrics struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CostMetrics holds the provider-reported or estimated cost
type CostMetrics struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	IsEstimated bool    `json:"is_estimated"`
}

// CanonicalError is a provider failure in provider-agnostic form
type CanonicalError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ProviderCode string `json:"provider_code,omitempty"`
}

// ProviderResultEvent is the asynchronous result reported for one attempt
type ProviderResultEvent struct {
	JobID     string          `json:"job_id"`
	AttemptID string          `json:"attempt_id"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	IsSuccess bool            `json:"is_success"`
	OutputRef string          `json:"output_ref,omitempty"`
	Usage     *UsageMetrics   `json:"usage,omitempty"`
	Cost      *CostMetrics    `json:"cost,omitempty"`
	Error     *CanonicalError `json:"error,omitempty"`
}

// CanonicalResponse is the normalized outcome stored for an attempt and a job
type CanonicalResponse struct {
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	OutputRef string          `json:"output_ref,omitempty"`
	Usage     *UsageMetrics   `json:"usage,omitempty"`
	Cost      *CostMetrics    `json:"cost,omitempty"`
	Error     *CanonicalError `json:"error,omitempty"`
}

// JobSummary is the list view of a job
type JobSummary struct {
	JobID            string    `json:"job_id"`
	TraceID          string    `json:"trace_id"`
	CurrentAttemptID string    `json:"current_attempt_id"`
	State            JobState  `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
