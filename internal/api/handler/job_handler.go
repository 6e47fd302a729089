package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/prompt-gateway/internal/api/dto"
	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

const defaultListLimit = 50

// SubmitJob handles POST /api/v1/jobs
// Accepts, routes and dispatches a job in one call
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: "validation_error"})
		return
	}

	canonical := req.ToCanonical()
	sub, err := h.jobs.Submit(c.Request.Context(), &canonical)
	if err != nil {
		h.respondError(c, "Failed to submit job", err)
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:          sub.Handle.JobID,
		AttemptID:      sub.Handle.AttemptID,
		TraceID:        sub.Handle.TraceID,
		Routing:        sub.Routing,
		IdempotencyKey: sub.Dispatch.IdempotencyKey,
	})
}

// ListJobs handles GET /api/v1/jobs
// Lists the most recently updated jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters", Code: "validation_error"})
		return
	}

	limit := defaultListLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: jobs})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetResult handles GET /api/v1/jobs/:job_id/result
func (h *JobHandler) GetResult(c *gin.Context) {
	resp, err := h.jobs.GetFinalResult(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.respondError(c, "Failed to get job result", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvents handles GET /api/v1/jobs/:job_id/events
func (h *JobHandler) GetEvents(c *gin.Context) {
	jobID := c.Param("job_id")
	events, err := h.jobs.GetEvents(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, "Failed to get job events", err)
		return
	}
	c.JSON(http.StatusOK, dto.JobEventsResponse{JobID: jobID, Events: events})
}

// GetJobDetail handles GET /api/v1/jobs/:job_id/detail
// Returns the job with its final result, when present, and its events
func (h *JobHandler) GetJobDetail(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}

	detail := dto.JobDetailResponse{Job: job}

	resp, err := h.jobs.GetFinalResult(ctx, jobID)
	switch {
	case err == nil:
		detail.Result = &resp
	case !errors.Is(err, domain.ErrNotFound):
		h.respondError(c, "Failed to get job result", err)
		return
	}

	detail.Events, err = h.jobs.GetEvents(ctx, jobID)
	if err != nil {
		h.respondError(c, "Failed to get job events", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// IngestResult handles POST /api/v1/results
// Applies a provider result delivered over HTTP instead of the results queue
func (h *JobHandler) IngestResult(c *gin.Context) {
	var result domain.ProviderResultEvent
	if err := c.ShouldBindJSON(&result); err != nil {
		h.logger.Warn("Invalid result body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: "validation_error"})
		return
	}

	outcome, err := h.jobs.IngestResult(c.Request.Context(), &result)
	if err != nil {
		h.respondError(c, "Failed to ingest result", err)
		return
	}

	c.JSON(http.StatusOK, dto.IngestResultResponse{
		Status:   outcome.Status,
		Response: outcome.Response,
		Dispatch: outcome.Dispatch,
	})
}
