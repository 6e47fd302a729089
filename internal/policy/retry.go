package policy

import (
	"strings"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// DefaultMaxAttempts bounds the attempts of a job when unset
const DefaultMaxAttempts = 3

// FallbackRetryPlanner retries failed attempts on the next unused fallback provider
type FallbackRetryPlanner struct {
	maxAttempts int
}

// NewFallbackRetryPlanner creates a planner; maxAttempts <= 0 uses DefaultMaxAttempts
func NewFallbackRetryPlanner(maxAttempts int) *FallbackRetryPlanner {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &FallbackRetryPlanner{maxAttempts: maxAttempts}
}

// MaxAttempts returns the configured attempt bound
func (p *FallbackRetryPlanner) MaxAttempts() int {
	return p.maxAttempts
}

// PlanRetry decides whether the job gets another attempt after result
func (p *FallbackRetryPlanner) PlanRetry(job domain.JobRecord, attempt domain.JobAttempt, result domain.ProviderResultEvent) domain.RetryPlan {
	if result.IsSuccess {
		return domain.NoRetry(domain.RetryReasonSuccess)
	}

	if len(job.Attempts) >= p.maxAttempts {
		return domain.NoRetry(domain.RetryReasonMaxAttempts)
	}

	if attempt.RoutingDecision == nil || len(attempt.RoutingDecision.FallbackProviders) == 0 {
		return domain.NoRetry(domain.RetryReasonNoFallbacks)
	}

	used := make(map[string]struct{}, len(job.Attempts))
	for _, provider := range job.UsedProviders() {
		used[strings.ToLower(provider)] = struct{}{}
	}

	for _, candidate := range attempt.RoutingDecision.FallbackProviders {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if _, ok := used[strings.ToLower(candidate)]; ok {
			continue
		}
		return domain.RetryWith(candidate, attempt.Model, domain.RetryReasonFallback)
	}

	return domain.NoRetry(domain.RetryReasonFallbacksExhausted)
}
