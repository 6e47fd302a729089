package domain

import (
	"slices"
	"strings"
	"time"
)

// JobAttempt is one try of a job against one provider/model
type JobAttempt struct {
	AttemptID       string           `json:"attempt_id"`
	State           AttemptState     `json:"state"`
	Provider        string           `json:"provider,omitempty"`
	Model           string           `json:"model,omitempty"`
	RoutingDecision *RoutingDecision `json:"routing_decision,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsRouted reports whether the attempt carries a usable routing decision
func (a JobAttempt) IsRouted() bool {
	return a.RoutingDecision != nil && strings.TrimSpace(a.RoutingDecision.Provider) != ""
}

// JobRecord is an immutable snapshot of the job aggregate.
// Transition methods return a new snapshot and leave the receiver untouched.
type JobRecord struct {
	JobID            string              `json:"job_id"`
	TraceID          string              `json:"trace_id"`
	State            JobState            `json:"state"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CurrentAttemptID string              `json:"current_attempt_id"`
	Request          CanonicalJobRequest `json:"request"`
	Attempts         []JobAttempt        `json:"attempts"`

	// Version is the store revision this snapshot was read at
	Version int64 `json:"version"`
}

// NewJobRecord creates a job with a single attempt in the created state.
// The request must already carry job, attempt and trace ids.
func NewJobRecord(req CanonicalJobRequest, now time.Time) (JobRecord, error) {
	if strings.TrimSpace(req.TaskType) == "" {
		return JobRecord{}, Validation("task_type", "task type is required")
	}
	if req.JobID == "" || req.AttemptID == "" || req.TraceID == "" {
		return JobRecord{}, Validation("request", "job, attempt and trace ids are required")
	}

	return JobRecord{
		JobID:            req.JobID,
		TraceID:          req.TraceID,
		State:            JobStateCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
		CurrentAttemptID: req.AttemptID,
		Request:          req.WithIDs(req.JobID, req.AttemptID, req.TraceID),
		Attempts: []JobAttempt{{
			AttemptID: req.AttemptID,
			State:     AttemptStateCreated,
			CreatedAt: now,
			UpdatedAt: now,
		}},
	}, nil
}

// Attempt looks up an attempt by id
func (j JobRecord) Attempt(attemptID string) (JobAttempt, bool) {
	i := j.attemptIndex(attemptID)
	if i < 0 {
		return JobAttempt{}, false
	}
	return j.Attempts[i], true
}

// CurrentAttempt returns the attempt named by CurrentAttemptID
func (j JobRecord) CurrentAttempt() (JobAttempt, bool) {
	return j.Attempt(j.CurrentAttemptID)
}

// Summary returns the list view of the job
func (j JobRecord) Summary() JobSummary {
	return JobSummary{
		JobID:            j.JobID,
		TraceID:          j.TraceID,
		CurrentAttemptID: j.CurrentAttemptID,
		State:            j.State,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// UsedProviders returns the providers of every attempt, in attempt order
func (j JobRecord) UsedProviders() []string {
	out := make([]string, 0, len(j.Attempts))
	for _, a := range j.Attempts {
		if a.Provider != "" {
			out = append(out, a.Provider)
		}
	}
	return out
}

// ApplyRouting stamps a routing decision on an attempt and moves attempt and job to routed
func (j JobRecord) ApplyRouting(attemptID string, decision RoutingDecision, now time.Time) (JobRecord, error) {
	next, i, err := j.mutableAttempt(attemptID)
	if err != nil {
		return JobRecord{}, err
	}

	d := decision.clone()
	at := next.touch(now)
	next.Attempts[i].Provider = d.Provider
	next.Attempts[i].Model = d.Model
	next.Attempts[i].RoutingDecision = &d
	next.Attempts[i].State = AttemptStateRouted
	next.Attempts[i].UpdatedAt = maxTime(next.Attempts[i].UpdatedAt, at)
	next.State = JobStateRouted
	return next, nil
}

// MarkDispatched moves a routed attempt and the job to dispatched
func (j JobRecord) MarkDispatched(attemptID string, now time.Time) (JobRecord, error) {
	next, i, err := j.mutableAttempt(attemptID)
	if err != nil {
		return JobRecord{}, err
	}
	if !next.Attempts[i].IsRouted() {
		return JobRecord{}, InvalidState("attempt %q has not been routed", attemptID)
	}

	next.setAttemptState(i, AttemptStateDispatched, now)
	next.State = JobStateDispatched
	return next, nil
}

// CompleteAttempt records a successful result for the attempt
func (j JobRecord) CompleteAttempt(attemptID string, now time.Time) (JobRecord, error) {
	next, i, err := j.mutableAttempt(attemptID)
	if err != nil {
		return JobRecord{}, err
	}

	next.setAttemptState(i, AttemptStateCompleted, now)
	next.State = JobStateCompleted
	return next, nil
}

// FailAttempt records a terminal failure for the attempt and the job
func (j JobRecord) FailAttempt(attemptID string, now time.Time) (JobRecord, error) {
	next, i, err := j.mutableAttempt(attemptID)
	if err != nil {
		return JobRecord{}, err
	}

	next.setAttemptState(i, AttemptStateFailed, now)
	next.State = JobStateFailed
	return next, nil
}

// AddRetryAttempt fails the given attempt and appends a new one routed by decision.
// The new attempt becomes current and is recorded as dispatched because the caller
// enqueues its dispatch in the same write.
func (j JobRecord) AddRetryAttempt(failedAttemptID, newAttemptID string, decision RoutingDecision, now time.Time) (JobRecord, error) {
	if newAttemptID == "" {
		return JobRecord{}, Validation("attempt_id", "new attempt id is required")
	}
	if j.attemptIndex(newAttemptID) >= 0 {
		return JobRecord{}, InvalidState("attempt %q already exists on job %q", newAttemptID, j.JobID)
	}
	if strings.TrimSpace(decision.Provider) == "" {
		return JobRecord{}, Validation("provider", "retry provider is required")
	}

	next, i, err := j.mutableAttempt(failedAttemptID)
	if err != nil {
		return JobRecord{}, err
	}
	next.setAttemptState(i, AttemptStateFailed, now)

	d := decision.clone()
	at := next.touch(now)
	next.Attempts = append(next.Attempts, JobAttempt{
		AttemptID:       newAttemptID,
		State:           AttemptStateDispatched,
		Provider:        d.Provider,
		Model:           d.Model,
		RoutingDecision: &d,
		CreatedAt:       at,
		UpdatedAt:       at,
	})
	next.CurrentAttemptID = newAttemptID
	next.State = JobStateRetrying
	return next, nil
}

// mutableAttempt returns a copy of the record safe to modify, plus the index of a
// non-terminal attempt
func (j JobRecord) mutableAttempt(attemptID string) (JobRecord, int, error) {
	i := j.attemptIndex(attemptID)
	if i < 0 {
		return JobRecord{}, -1, NotFound("attempt", attemptID)
	}
	if j.Attempts[i].State.IsTerminal() {
		return JobRecord{}, -1, InvalidState("attempt %q is already %s", attemptID, j.Attempts[i].State)
	}
	return j.Clone(), i, nil
}

// Clone returns a deep copy of the record
func (j JobRecord) Clone() JobRecord {
	out := j
	out.Attempts = make([]JobAttempt, len(j.Attempts), len(j.Attempts)+1)
	for i, a := range j.Attempts {
		if a.RoutingDecision != nil {
			d := a.RoutingDecision.clone()
			a.RoutingDecision = &d
		}
		out.Attempts[i] = a
	}
	out.Request = j.Request.WithIDs(j.Request.JobID, j.Request.AttemptID, j.Request.TraceID)
	return out
}

func (j JobRecord) attemptIndex(attemptID string) int {
	return slices.IndexFunc(j.Attempts, func(a JobAttempt) bool {
		return a.AttemptID == attemptID
	})
}

// touch advances UpdatedAt without ever moving it backwards
func (j *JobRecord) touch(now time.Time) time.Time {
	j.UpdatedAt = maxTime(j.UpdatedAt, now)
	return j.UpdatedAt
}

func (j *JobRecord) setAttemptState(i int, state AttemptState, now time.Time) {
	at := j.touch(now)
	j.Attempts[i].State = state
	j.Attempts[i].UpdatedAt = maxTime(j.Attempts[i].UpdatedAt, at)
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
