package policy

import (
	"context"
	"strings"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// DefaultPolicyVersion is stamped on decisions when none is configured
const DefaultPolicyVersion = "static"

// RoutingOptions configures StaticRoutingPolicy
type RoutingOptions struct {
	Provider          string
	Model             string
	PolicyVersion     string
	FallbackProviders []string
}

// StaticRoutingPolicy routes every job to one configured provider/model
type StaticRoutingPolicy struct {
	opts RoutingOptions
}

// NewStaticRoutingPolicy creates a routing policy from options
func NewStaticRoutingPolicy(opts RoutingOptions) *StaticRoutingPolicy {
	if opts.PolicyVersion == "" {
		opts.PolicyVersion = DefaultPolicyVersion
	}
	opts.FallbackProviders = append([]string{}, opts.FallbackProviders...)
	return &StaticRoutingPolicy{opts: opts}
}

// Decide returns the configured decision. The request is not inspected.
func (p *StaticRoutingPolicy) Decide(_ context.Context, _ domain.CanonicalJobRequest) (domain.RoutingDecision, error) {
	if strings.TrimSpace(p.opts.Provider) == "" {
		return domain.RoutingDecision{}, domain.Configuration("routing provider is required")
	}

	return domain.RoutingDecision{
		Provider:          p.opts.Provider,
		Model:             p.opts.Model,
		PolicyVersion:     p.opts.PolicyVersion,
		FallbackProviders: append([]string{}, p.opts.FallbackProviders...),
	}, nil
}
