// Package redis implements the result dedup store on Redis. A key per
// (job, attempt) holds "processing" while an ingest runs and "completed"
// afterwards, each with its own expiry.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	dedup := redis.NewDedupStore(client)
package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

var _ orchestrator.DedupStore = (*DedupStore)(nil)

const (
	defaultKeyPrefix     = "prompt-gateway:dedup:"
	defaultProcessingTTL = 15 * time.Minute
	defaultCompletedTTL  = 7 * 24 * time.Hour

	statusProcessing = "processing"
	statusCompleted  = "completed"
)

// Option configures the DedupStore.
type Option func(*DedupStore)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DedupStore) { s.logger = l }
}

// WithKeyPrefix namespaces the dedup keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *DedupStore) { s.prefix = prefix }
}

// WithTTL sets the lifetime of processing and completed markers. Zero values
// keep the defaults.
func WithTTL(processing, completed time.Duration) Option {
	return func(s *DedupStore) {
		if processing > 0 {
			s.processingTTL = processing
		}
		if completed > 0 {
			s.completedTTL = completed
		}
	}
}

// DedupStore guards result ingestion with Redis keys. The caller owns the
// client lifecycle.
type DedupStore struct {
	client        goredis.Cmdable
	logger        *slog.Logger
	prefix        string
	processingTTL time.Duration
	completedTTL  time.Duration
}

// NewDedupStore creates a dedup store on client.
func NewDedupStore(client goredis.Cmdable, opts ...Option) *DedupStore {
	s := &DedupStore{
		client:        client,
		logger:        slog.Default(),
		prefix:        defaultKeyPrefix,
		processingTTL: defaultProcessingTTL,
		completedTTL:  defaultCompletedTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TryStart sets the processing marker if no marker exists yet.
func (s *DedupStore) TryStart(ctx context.Context, jobID, attemptID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(jobID, attemptID), statusProcessing, s.processingTTL).Result()
	if err != nil {
		return false, domain.Transient("redis dedup start", err)
	}
	if !ok {
		s.logger.Debug("Dedup marker already present",
			slog.String("job_id", jobID),
			slog.String("attempt_id", attemptID),
		)
	}
	return ok, nil
}

// MarkCompleted overwrites the marker with a long-lived completed entry.
func (s *DedupStore) MarkCompleted(ctx context.Context, jobID, attemptID string) error {
	if err := s.client.Set(ctx, s.key(jobID, attemptID), statusCompleted, s.completedTTL).Err(); err != nil {
		return domain.Transient("redis dedup complete", err)
	}
	return nil
}

// abandonScript deletes KEYS[1] only while it still holds ARGV[1]
var abandonScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Abandon deletes the marker if it is still processing.
func (s *DedupStore) Abandon(ctx context.Context, jobID, attemptID string) error {
	if err := abandonScript.Run(ctx, s.client, []string{s.key(jobID, attemptID)}, statusProcessing).Err(); err != nil {
		return domain.Transient("redis dedup abandon", err)
	}
	return nil
}

// key returns prefix{jobID}:{attemptID}
func (s *DedupStore) key(jobID, attemptID string) string {
	return s.prefix + jobID + ":" + attemptID
}
