package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuongbtq/prompt-gateway/internal/backoff"
)

// OutboxProcessor publishes at most one outbox entry per call
type OutboxProcessor interface {
	ProcessOnce(ctx context.Context) (bool, error)
}

// RelayConfig holds outbox relay configuration
type RelayConfig struct {
	Logger       *slog.Logger
	Processor    OutboxProcessor
	IdleDelay    time.Duration
	ErrorBackoff backoff.Config

	// RateLimit caps outbox iterations per second. Zero disables it.
	RateLimit float64
	// RateBurst defaults to 1 when RateLimit is set
	RateBurst int
}

// OutboxRelay drains the outbox in a loop, sleeping when it is empty and
// backing off while publishing fails
type OutboxRelay struct {
	logger       *slog.Logger
	processor    OutboxProcessor
	idleDelay    time.Duration
	errorBackoff backoff.Config
	limiter      *rate.Limiter
}

// NewOutboxRelay creates a relay. IdleDelay defaults to 1s and the error
// backoff to 2s doubling up to 1m.
func NewOutboxRelay(cfg *RelayConfig) *OutboxRelay {
	idle := cfg.IdleDelay
	if idle <= 0 {
		idle = time.Second
	}
	eb := cfg.ErrorBackoff
	if eb.Initial <= 0 {
		eb.Initial = 2 * time.Second
	}
	if eb.Max <= 0 {
		eb.Max = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &OutboxRelay{
		logger:       logger,
		processor:    cfg.Processor,
		idleDelay:    idle,
		errorBackoff: eb,
		limiter:      limiter,
	}
}

// Run processes the outbox until ctx is canceled
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info("Outbox relay started",
		slog.Duration("idle_delay", r.idleDelay),
	)

	failures := 0
	for {
		if ctx.Err() != nil {
			r.logger.Info("Outbox relay stopped")
			return nil
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				r.logger.Info("Outbox relay stopped")
				return nil
			}
		}

		published, err := r.processor.ProcessOnce(ctx)
		var delay time.Duration
		switch {
		case err != nil:
			failures++
			delay = backoff.Exponential(failures, &r.errorBackoff)
			r.logger.Warn("Outbox relay iteration failed",
				slog.Int("consecutive_failures", failures),
				slog.Duration("retry_after", delay),
				slog.String("error", err.Error()),
			)
		case published:
			failures = 0
			continue
		default:
			failures = 0
			delay = r.idleDelay
		}

		if !backoff.Sleep(ctx, delay) {
			r.logger.Info("Outbox relay stopped")
			return nil
		}
	}
}
