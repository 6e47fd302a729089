package dto

import "github.com/cuongbtq/prompt-gateway/internal/domain"

// SubmitJobRequest is the body of POST /api/v1/jobs
type SubmitJobRequest struct {
	TaskType string            `json:"task_type" binding:"required"`
	InputRef string            `json:"input_ref"`
	TraceID  string            `json:"trace_id"`
	Metadata map[string]string `json:"metadata"`
}

// ToCanonical maps the request onto the orchestrator input
func (r SubmitJobRequest) ToCanonical() domain.CanonicalJobRequest {
	return domain.CanonicalJobRequest{
		TraceID:  r.TraceID,
		TaskType: r.TaskType,
		InputRef: r.InputRef,
		Metadata: r.Metadata,
	}
}

type SubmitJobResponse struct {
	JobID          string                 `json:"job_id"`
	AttemptID      string                 `json:"attempt_id"`
	TraceID        string                 `json:"trace_id"`
	Routing        domain.RoutingDecision `json:"routing"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

type ListJobsRequest struct {
	Limit *int `form:"limit"`
}

type ListJobsResponse struct {
	Jobs []domain.JobSummary `json:"jobs"`
}

type JobEventsResponse struct {
	JobID  string            `json:"job_id"`
	Events []domain.JobEvent `json:"events"`
}

// JobDetailResponse bundles the job, its final result if any, and its events
type JobDetailResponse struct {
	Job    domain.JobRecord          `json:"job"`
	Result *domain.CanonicalResponse `json:"result,omitempty"`
	Events []domain.JobEvent         `json:"events"`
}

type IngestResultResponse struct {
	Status   domain.IngestStatus       `json:"status"`
	Response *domain.CanonicalResponse `json:"response,omitempty"`
	Dispatch *domain.DispatchMessage   `json:"dispatch,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
