package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	metrics, handler, err := NewMetrics("test")
	require.NoError(t, err)
	require.NotNil(t, metrics)
	require.NotNil(t, handler)

	// each instance owns its registry
	_, _, err = NewMetrics("test")
	require.NoError(t, err)
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics("test")
	require.NoError(t, err)

	metrics.RecordHTTPRequest(ctx, "GET", "/health", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/api/v1/jobs", 202, 0.050)
	metrics.RecordHTTPRequest(ctx, "GET", "/api/v1/jobs/:job_id", 404, 0.005)
	metrics.RecordHTTPRequest(ctx, "GET", "", 404, 0.001)

	body := scrape(t, handler)
	assert.Contains(t, body, "http_request_duration_seconds")
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "http_errors_total")
	assert.Contains(t, body, `route="/api/v1/jobs/:job_id"`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.Contains(t, body, `status="4xx"`)
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	metrics, handler, err := NewMetrics("test")
	require.NoError(t, err)

	var rec orchestrator.Recorder = metrics
	rec.JobAccepted("chat")
	rec.JobDispatched("openai")
	rec.RetryScheduled("anthropic", "fallback")
	rec.ResultIngested(domain.IngestFinalized)
	rec.OutboxProcessed(orchestrator.OutboxOutcomePublished)

	body := scrape(t, handler)
	assert.Contains(t, body, "jobs_accepted_total")
	assert.Contains(t, body, `task_type="chat"`)
	assert.Contains(t, body, "jobs_dispatched_total")
	assert.Contains(t, body, `provider="openai"`)
	assert.Contains(t, body, "job_retries_total")
	assert.Contains(t, body, `reason="fallback"`)
	assert.Contains(t, body, "results_ingested_total")
	assert.Contains(t, body, `outcome="finalized"`)
	assert.Contains(t, body, "outbox_processed_total")
	assert.Contains(t, body, `outcome="published"`)
}

func TestStatusAttr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{202, "2xx"},
		{404, "4xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusAttr(tt.code).Value.AsString())
	}
}
