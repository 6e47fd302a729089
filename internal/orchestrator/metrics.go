package orchestrator

import "github.com/cuongbtq/prompt-gateway/internal/domain"

// Outbox processing outcomes reported to the Recorder
const (
	OutboxOutcomeIdle      = "idle"
	OutboxOutcomePublished = "published"
	OutboxOutcomeReleased  = "released"
	OutboxOutcomeFailed    = "failed"
)

// Recorder receives orchestration metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	JobAccepted(taskType string)
	JobDispatched(provider string)
	RetryScheduled(provider, reason string)
	ResultIngested(status domain.IngestStatus)
	OutboxProcessed(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) JobAccepted(string) {}
func (nopRecorder) JobDispatched(string) {}
func (nopRecorder) RetryScheduled(string, string) {}
func (nopRecorder) ResultIngested(domain.IngestStatus) {}
func (nopRecorder) OutboxProcessed(string) {}
