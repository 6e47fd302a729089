package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/prompt-gateway/internal/api/handler"
	"github.com/cuongbtq/prompt-gateway/internal/observability"
)

// Options carries the optional observability wiring for the router
type Options struct {
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	if opts.Metrics != nil {
		r.Use(MetricsMiddleware(opts.Metrics))
	}
	r.Use(CORSMiddleware())

	r.GET("/health", handler.Health(deps))
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Accept, route and dispatch a job
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - List recently updated jobs
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get the job snapshot
			jobs.GET("/:job_id", jobHandler.GetJob)

			jobs.GET("/:job_id/result", jobHandler.GetResult)
			jobs.GET("/:job_id/events", jobHandler.GetEvents)
			jobs.GET("/:job_id/detail", jobHandler.GetJobDetail)
		}

		// POST /api/v1/results - Ingest a provider result
		v1.POST("/results", jobHandler.IngestResult)
	}

	return r
}

// SetupOpsRouter serves only /health and /metrics, for processes without the job API
func SetupOpsRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handler.Health(deps))
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	return r
}
