package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

// JobService is the orchestrator surface exposed over HTTP
type JobService interface {
	Submit(ctx context.Context, req *domain.CanonicalJobRequest) (orchestrator.Submission, error)
	IngestResult(ctx context.Context, result *domain.ProviderResultEvent) (domain.IngestOutcome, error)
	GetJob(ctx context.Context, jobID string) (domain.JobRecord, error)
	GetFinalResult(ctx context.Context, jobID string) (domain.CanonicalResponse, error)
	GetEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error)
	ListJobs(ctx context.Context, limit int) ([]domain.JobSummary, error)
}

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Jobs        JobService
	Checks      map[string]HealthCheck
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}
