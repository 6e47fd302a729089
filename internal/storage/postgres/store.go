// Package postgres persists jobs, events, outbox entries, results and dedup
// markers in PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

var (
	_ orchestrator.JobStore          = (*Store)(nil)
	_ orchestrator.EventStore        = (*Store)(nil)
	_ orchestrator.OutboxStore       = (*Store)(nil)
	_ orchestrator.ResultStore       = (*Store)(nil)
	_ orchestrator.DedupStore        = (*Store)(nil)
	_ orchestrator.DispatchCommitter = (*Store)(nil)
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const (
	dedupStatusProcessing = "processing"
	dedupStatusCompleted  = "completed"
)

// Store implements every orchestrator store on one database
type Store struct {
	db            *sqlx.DB
	logger        *slog.Logger
	now           func() time.Time
	owner         string
	leaseTTL      time.Duration
	processingTTL time.Duration
	completedTTL  time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for timestamps and leases
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOwner sets the lease owner written on claimed outbox entries.
// An empty owner keeps the default.
func WithOwner(owner string) Option {
	return func(s *Store) {
		if owner != "" {
			s.owner = owner
		}
	}
}

// WithLeaseTTL sets how long a claimed outbox entry stays leased.
// Non-positive values keep the default.
func WithLeaseTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

// WithDedupTTL sets the lifetime of processing and completed dedup markers.
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

// New creates a Store on db
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:            db,
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
		owner:         "control-plane",
		leaseTTL:      5 * time.Minute,
		processingTTL: 15 * time.Minute,
		completedTTL:  7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("PostgreSQL schema applied")
	return nil
}

type jobRow struct {
	Snapshot []byte `db:"snapshot"`
	Version  int64  `db:"version"`
}

type summaryRow struct {
	JobID            string    `db:"job_id"`
	TraceID          string    `db:"trace_id"`
	CurrentAttemptID string    `db:"current_attempt_id"`
	State            string    `db:"state"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type eventRow struct {
	JobID      string    `db:"job_id"`
	AttemptID  string    `db:"attempt_id"`
	EventType  string    `db:"event_type"`
	OccurredAt time.Time `db:"occurred_at"`
	Attributes []byte    `db:"attributes"`
}

// CreateJob inserts a new job at version 1
func (s *Store) CreateJob(ctx context.Context, job domain.JobRecord) error {
	job.Version = 1
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertJobQuery,
		job.JobID, job.TraceID, string(job.State), job.CurrentAttemptID, snapshot, job.Version,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return domain.Conflict("job", job.JobID)
	}
	if err != nil {
		return domain.Transient("create job", err)
	}
	return nil
}

// GetJob loads a job snapshot together with its current version
func (s *Store) GetJob(ctx context.Context, jobID string) (domain.JobRecord, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, getJobQuery, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobRecord{}, domain.NotFound("job", jobID)
	}
	if err != nil {
		return domain.JobRecord{}, domain.Transient("get job", err)
	}

	var job domain.JobRecord
	if err := json.Unmarshal(row.Snapshot, &job); err != nil {
		return domain.JobRecord{}, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	job.Version = row.Version
	return job, nil
}

// UpdateJob writes job if the stored version still equals job.Version
func (s *Store) UpdateJob(ctx context.Context, job domain.JobRecord) error {
	return updateJob(ctx, s.db, job)
}

func updateJob(ctx context.Context, ex sqlx.ExecerContext, job domain.JobRecord) error {
	expected := job.Version
	job.Version = expected + 1
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	res, err := ex.ExecContext(ctx, updateJobQuery,
		string(job.State), job.CurrentAttemptID, snapshot, job.Version, job.UpdatedAt.UTC(),
		job.JobID, expected,
	)
	if err != nil {
		return domain.Transient("update job", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.Transient("update job", err)
	}
	if n == 0 {
		return domain.Transient("update job", domain.Conflict("job version", job.JobID))
	}
	return nil
}

// ListJobs returns the most recently updated jobs first
func (s *Store) ListJobs(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, listJobsQuery, limit); err != nil {
		return nil, domain.Transient("list jobs", err)
	}

	out := make([]domain.JobSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.JobSummary{
			JobID:            r.JobID,
			TraceID:          r.TraceID,
			CurrentAttemptID: r.CurrentAttemptID,
			State:            domain.JobState(r.State),
			CreatedAt:        r.CreatedAt.UTC(),
			UpdatedAt:        r.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

// CommitDispatch updates the job and inserts the outbox entry in one transaction
func (s *Store) CommitDispatch(ctx context.Context, job domain.JobRecord, msg domain.OutboxMessage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Transient("begin dispatch transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := updateJob(ctx, tx, job); err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, msg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.Transient("commit dispatch transaction", err)
	}
	return nil
}

// AppendEvent adds an entry to the job audit log
func (s *Store) AppendEvent(ctx context.Context, event domain.JobEvent) error {
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal event attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertEventQuery,
		event.JobID, event.AttemptID, string(event.Type), event.OccurredAt.UTC(), attrs,
	)
	if err != nil {
		return domain.Transient("append event", err)
	}
	return nil
}

// ListEvents returns a job's events in occurrence order
func (s *Store) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, listEventsQuery, jobID); err != nil {
		return nil, domain.Transient("list events", err)
	}

	out := make([]domain.JobEvent, 0, len(rows))
	for _, r := range rows {
		ev := domain.JobEvent{
			JobID:      r.JobID,
			AttemptID:  r.AttemptID,
			Type:       domain.EventType(r.EventType),
			OccurredAt: r.OccurredAt.UTC(),
		}
		if len(r.Attributes) > 0 {
			if err := json.Unmarshal(r.Attributes, &ev.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode event attributes: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// EnqueueDispatch inserts a pending outbox entry
func (s *Store) EnqueueDispatch(ctx context.Context, msg domain.OutboxMessage) error {
	return insertOutbox(ctx, s.db, msg)
}

func insertOutbox(ctx context.Context, ex sqlx.ExecerContext, msg domain.OutboxMessage) error {
	payload, err := json.Marshal(msg.Dispatch)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch: %w", err)
	}

	_, err = ex.ExecContext(ctx, insertOutboxQuery,
		msg.OutboxID, payload, string(domain.OutboxStatusPending), msg.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return domain.Conflict("outbox entry", msg.OutboxID)
	}
	if err != nil {
		return domain.Transient("enqueue dispatch", err)
	}
	return nil
}

// TryDequeue claims one eligible outbox entry, or returns nil when none is eligible.
// An entry whose payload cannot be decoded is returned with a nil Dispatch.
func (s *Store) TryDequeue(ctx context.Context) (*domain.OutboxMessage, error) {
	now := s.now()
	cutoff := now.Add(-s.leaseTTL)

	var (
		outboxID  string
		payload   []byte
		createdAt time.Time
	)
	err := s.db.QueryRowxContext(ctx, claimOutboxQuery,
		string(domain.OutboxStatusProcessing), s.owner, now, string(domain.OutboxStatusPending), cutoff,
	).Scan(&outboxID, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Transient("claim outbox entry", err)
	}

	msg := &domain.OutboxMessage{OutboxID: outboxID, CreatedAt: createdAt.UTC()}
	if len(payload) > 0 {
		var dispatch *domain.DispatchMessage
		if err := json.Unmarshal(payload, &dispatch); err != nil {
			s.logger.Warn("Failed to decode outbox payload",
				slog.String("outbox_id", outboxID),
				slog.String("error", err.Error()),
			)
		} else {
			msg.Dispatch = dispatch
		}
	}
	return msg, nil
}

// MarkDispatched records a successful publish and clears the lease
func (s *Store) MarkDispatched(ctx context.Context, outboxID string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusDispatched, "")
}

// Release returns a claimed entry to pending, keeping its payload
func (s *Store) Release(ctx context.Context, outboxID string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusPending, "")
}

// MarkFailed parks an entry that can never be published
func (s *Store) MarkFailed(ctx context.Context, outboxID, reason string) error {
	return s.setOutboxStatus(ctx, outboxID, domain.OutboxStatusFailed, reason)
}

// setOutboxStatus moves a claimed entry out of processing. Entries another
// processor already settled are left alone.
func (s *Store) setOutboxStatus(ctx context.Context, outboxID string, status domain.OutboxStatus, reason string) error {
	res, err := s.db.ExecContext(ctx, setOutboxStatusQuery,
		string(status), reason, s.now(), outboxID, string(domain.OutboxStatusProcessing),
	)
	if err != nil {
		return domain.Transient("set outbox status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Transient("set outbox status", err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.GetContext(ctx, &current, getOutboxStatusQuery, outboxID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("outbox entry", outboxID)
	}
	if err != nil {
		return domain.Transient("get outbox status", err)
	}
	return domain.InvalidState("outbox entry %q is %s, not %s", outboxID, current, domain.OutboxStatusProcessing)
}

// SaveAttemptResult stores the response of one attempt
func (s *Store) SaveAttemptResult(ctx context.Context, jobID, attemptID string, resp domain.CanonicalResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertAttemptResultQuery, jobID, attemptID, body, s.now()); err != nil {
		return domain.Transient("save attempt result", err)
	}
	return nil
}

// SaveFinalResult stores the job's final response
func (s *Store) SaveFinalResult(ctx context.Context, jobID string, resp domain.CanonicalResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertFinalResultQuery, jobID, body, s.now()); err != nil {
		return domain.Transient("save final result", err)
	}
	return nil
}

// GetFinalResult loads the job's final response
func (s *Store) GetFinalResult(ctx context.Context, jobID string) (domain.CanonicalResponse, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, getFinalResultQuery, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CanonicalResponse{}, domain.NotFound("result", jobID)
	}
	if err != nil {
		return domain.CanonicalResponse{}, domain.Transient("get final result", err)
	}

	var resp domain.CanonicalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.CanonicalResponse{}, fmt.Errorf("failed to decode result for %s: %w", jobID, err)
	}
	return resp, nil
}

// TryStart inserts a processing marker; only the first caller within the TTL wins
func (s *Store) TryStart(ctx context.Context, jobID, attemptID string) (bool, error) {
	now := s.now()
	var winner string
	err := s.db.QueryRowxContext(ctx, tryStartDedupQuery,
		jobID, attemptID, dedupStatusProcessing, now.Add(s.processingTTL), now,
	).Scan(&winner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.Transient("start dedup", err)
	}
	return true, nil
}

// MarkCompleted turns the marker into a long-lived completed entry
func (s *Store) MarkCompleted(ctx context.Context, jobID, attemptID string) error {
	_, err := s.db.ExecContext(ctx, completeDedupQuery,
		jobID, attemptID, dedupStatusCompleted, s.now().Add(s.completedTTL),
	)
	if err != nil {
		return domain.Transient("complete dedup", err)
	}
	return nil
}

// Abandon deletes a processing marker; completed markers stay
func (s *Store) Abandon(ctx context.Context, jobID, attemptID string) error {
	if _, err := s.db.ExecContext(ctx, abandonDedupQuery, jobID, attemptID, dedupStatusProcessing); err != nil {
		return domain.Transient("abandon dedup", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
