package domain

import "time"

// EventType names an entry in the job event log
type EventType string

const (
	EventCreated    EventType = "created"
	EventRouted     EventType = "routed"
	EventDispatched EventType = "dispatched"
	EventStarted    EventType = "started"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventRetried    EventType = "retried"
	EventCancelled  EventType = "cancelled"
	EventExpired    EventType = "expired"
)

// JobEvent is an append-only audit entry
type JobEvent struct {
	JobID      string            `json:"job_id"`
	AttemptID  string            `json:"attempt_id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewEvent creates an event, dropping empty attribute values
func NewEvent(jobID, attemptID string, typ EventType, at time.Time, attrs map[string]string) JobEvent {
	var clean map[string]string
	for k, v := range attrs {
		if v == "" {
			continue
		}
		if clean == nil {
			clean = make(map[string]string, len(attrs))
		}
		clean[k] = v
	}

	return JobEvent{
		JobID:      jobID,
		AttemptID:  attemptID,
		Type:       typ,
		OccurredAt: at,
		Attributes: clean,
	}
}
