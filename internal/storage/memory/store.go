// Package memory provides an in-memory implementation of every orchestrator
// store. It is safe for concurrent use and intended for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

var (
	_ orchestrator.JobStore          = (*Store)(nil)
	_ orchestrator.EventStore        = (*Store)(nil)
	_ orchestrator.OutboxStore       = (*Store)(nil)
	_ orchestrator.DedupStore        = (*Store)(nil)
	_ orchestrator.ResultStore       = (*Store)(nil)
	_ orchestrator.DispatchCommitter = (*Store)(nil)
)

// Defaults applied when no option overrides them
const (
	DefaultLeaseTTL       = 5 * time.Minute
	DefaultProcessingTTL  = 15 * time.Minute
	DefaultCompletedTTL   = 7 * 24 * time.Hour
	defaultOwner          = "memory"
	dedupStatusProcessing = "processing"
	dedupStatusCompleted  = "completed"
)

// OutboxEntry is the stored state of one outbox item
type OutboxEntry struct {
	Message  domain.OutboxMessage
	Status   domain.OutboxStatus
	Owner    string
	LeasedAt time.Time
	Reason   string
	seq      int64
}

type dedupEntry struct {
	status    string
	expiresAt time.Time
}

// Store is a fully in-memory composite store
type Store struct {
	mu sync.RWMutex

	jobs           map[string]domain.JobRecord
	events         map[string][]domain.JobEvent
	outbox         map[string]*OutboxEntry
	dedup          map[string]dedupEntry
	attemptResults map[string]domain.CanonicalResponse
	finalResults   map[string]domain.CanonicalResponse
	seq            int64

	now           func() time.Time
	owner         string
	leaseTTL      time.Duration
	processingTTL time.Duration
	completedTTL  time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for leases and dedup expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLeaseTTL sets how long an outbox claim blocks other processors.
// Non-positive values keep the default.
func WithLeaseTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

// WithOwner sets the lease owner recorded on claimed outbox entries
func WithOwner(owner string) Option {
	return func(s *Store) {
		if owner != "" {
			s.owner = owner
		}
	}
}

// WithDedupTTL sets the lifetime of processing and completed dedup entries.
// Non-positive values keep the defaults.
func WithDedupTTL(processing, completed time.Duration) Option {
	return func(s *Store) {
		if processing > 0 {
			s.processingTTL = processing
		}
		if completed > 0 {
			s.completedTTL = completed
		}
	}
}

// New returns a new empty Store
func New(opts ...Option) *Store {
	s := &Store{
		jobs:           make(map[string]domain.JobRecord),
		events:         make(map[string][]domain.JobEvent),
		outbox:         make(map[string]*OutboxEntry),
		dedup:          make(map[string]dedupEntry),
		attemptResults: make(map[string]domain.CanonicalResponse),
		finalResults:   make(map[string]domain.CanonicalResponse),
		now:            func() time.Time { return time.Now().UTC() },
		owner:          defaultOwner,
		leaseTTL:       DefaultLeaseTTL,
		processingTTL:  DefaultProcessingTTL,
		completedTTL:   DefaultCompletedTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job domain.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return domain.Conflict("job", job.JobID)
	}
	stored := job.Clone()
	stored.Version = 1
	s.jobs[job.JobID] = stored
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.JobRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.JobRecord{}, domain.NotFound("job", jobID)
	}
	return job.Clone(), nil
}

func (s *Store) UpdateJob(ctx context.Context, job domain.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(job)
}

func (s *Store) updateLocked(job domain.JobRecord) error {
	current, ok := s.jobs[job.JobID]
	if !ok {
		return domain.NotFound("job", job.JobID)
	}
	if current.Version != job.Version {
		return domain.Transient("update job", domain.Conflict("job version", job.JobID))
	}
	stored := job.Clone()
	stored.Version = job.Version + 1
	s.jobs[job.JobID] = stored
	return nil
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.JobSummary, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Summary())
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].UpdatedAt.Equal(out[k].UpdatedAt) {
			return out[i].UpdatedAt.After(out[k].UpdatedAt)
		}
		return out[i].JobID < out[k].JobID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CommitDispatch applies a job update and enqueues msg under one lock
func (s *Store) CommitDispatch(ctx context.Context, job domain.JobRecord, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.outbox[msg.OutboxID]; exists {
		return domain.Conflict("outbox entry", msg.OutboxID)
	}
	if err := s.updateLocked(job); err != nil {
		return err
	}
	s.enqueueLocked(msg)
	return nil
}

// Events

func (s *Store) AppendEvent(ctx context.Context, event domain.JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.JobID] = append(s.events[event.JobID], event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.JobEvent(nil), s.events[jobID]...)
	sort.SliceStable(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if a.AttemptID != b.AttemptID {
			return a.AttemptID < b.AttemptID
		}
		return a.Type < b.Type
	})
	return out, nil
}

// Outbox

func (s *Store) EnqueueDispatch(ctx context.Context, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.outbox[msg.OutboxID]; exists {
		return domain.Conflict("outbox entry", msg.OutboxID)
	}
	s.enqueueLocked(msg)
	return nil
}

func (s *Store) enqueueLocked(msg domain.OutboxMessage) {
	s.seq++
	if msg.Dispatch != nil {
		d := *msg.Dispatch
		msg.Dispatch = &d
	}
	s.outbox[msg.OutboxID] = &OutboxEntry{
		Message: msg,
		Status:  domain.OutboxStatusPending,
		seq:     s.seq,
	}
}

func (s *Store) TryDequeue(ctx context.Context) (*domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var claimed *OutboxEntry
	for _, e := range s.outbox {
		if !s.eligible(e, now) {
			continue
		}
		if claimed == nil || e.Message.CreatedAt.Before(claimed.Message.CreatedAt) ||
			(e.Message.CreatedAt.Equal(claimed.Message.CreatedAt) && e.seq < claimed.seq) {
			claimed = e
		}
	}
	if claimed == nil {
		return nil, nil
	}

	claimed.Status = domain.OutboxStatusProcessing
	claimed.Owner = s.owner
	claimed.LeasedAt = now

	msg := claimed.Message
	if msg.Dispatch != nil {
		d := *msg.Dispatch
		msg.Dispatch = &d
	}
	return &msg, nil
}

func (s *Store) eligible(e *OutboxEntry, now time.Time) bool {
	switch e.Status {
	case domain.OutboxStatusPending:
		return true
	case domain.OutboxStatusProcessing:
		return !e.LeasedAt.After(now.Add(-s.leaseTTL))
	}
	return false
}

func (s *Store) MarkDispatched(ctx context.Context, outboxID string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusDispatched, "")
}

func (s *Store) Release(ctx context.Context, outboxID string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusPending, "")
}

func (s *Store) MarkFailed(ctx context.Context, outboxID, reason string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusFailed, reason)
}

func (s *Store) setOutboxStatus(ctx context.Context, outboxID string, status domain.OutboxStatus, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.outbox[outboxID]
	if !ok {
		return domain.NotFound("outbox entry", outboxID)
	}
	if e.Status != domain.OutboxStatusProcessing {
		return domain.InvalidState("outbox entry %q is %s, not %s", outboxID, e.Status, domain.OutboxStatusProcessing)
	}
	e.Status = status
	e.Owner = ""
	e.LeasedAt = time.Time{}
	e.Reason = reason
	return nil
}

// OutboxEntries returns a copy of every outbox entry in enqueue order
func (s *Store) OutboxEntries() []OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OutboxEntry, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].seq < out[k].seq })
	return out
}

// Dedup

func dedupKey(jobID, attemptID string) string {
	return jobID + "\x00" + attemptID
}

func (s *Store) TryStart(ctx context.Context, jobID, attemptID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := dedupKey(jobID, attemptID)
	if e, ok := s.dedup[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	s.dedup[key] = dedupEntry{status: dedupStatusProcessing, expiresAt: now.Add(s.processingTTL)}
	return true, nil
}

func (s *Store) MarkCompleted(ctx context.Context, jobID, attemptID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dedup[dedupKey(jobID, attemptID)] = dedupEntry{status: dedupStatusCompleted, expiresAt: s.now().Add(s.completedTTL)}
	return nil
}

func (s *Store) Abandon(ctx context.Context, jobID, attemptID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(jobID, attemptID)
	if e, ok := s.dedup[key]; ok && e.status == dedupStatusProcessing {
		delete(s.dedup, key)
	}
	return nil
}

// Results

func (s *Store) SaveAttemptResult(ctx context.Context, jobID, attemptID string, resp domain.CanonicalResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptResults[dedupKey(jobID, attemptID)] = resp
	return nil
}

func (s *Store) SaveFinalResult(ctx context.Context, jobID string, resp domain.CanonicalResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalResults[jobID] = resp
	return nil
}

func (s *Store) GetFinalResult(ctx context.Context, jobID string) (domain.CanonicalResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.CanonicalResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.finalResults[jobID]
	if !ok {
		return domain.CanonicalResponse{}, domain.NotFound("result", jobID)
	}
	return resp, nil
}

// AttemptResult returns the stored response of one attempt
func (s *Store) AttemptResult(jobID, attemptID string) (domain.CanonicalResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.attemptResults[dedupKey(jobID, attemptID)]
	return resp, ok
}
