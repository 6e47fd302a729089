// Package queue publishes dispatch messages to provider workers over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
	"github.com/cuongbtq/prompt-gateway/shared/rabbitmq"
)

var _ orchestrator.DispatchQueue = (*DispatchPublisher)(nil)

const (
	contentTypeJSON = "application/json"

	headerProvider = "x-provider"
	headerTraceID  = "x-trace-id"
)

// Publisher is the subset of the RabbitMQ client used for dispatches
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string, opts ...rabbitmq.PublishOption) error
}

// DispatchPublisher sends DispatchMessages as JSON. The message id is the
// dispatch idempotency key so consumers can drop redeliveries.
type DispatchPublisher struct {
	publisher Publisher
}

// NewDispatchPublisher creates a DispatchPublisher
func NewDispatchPublisher(publisher Publisher) *DispatchPublisher {
	return &DispatchPublisher{publisher: publisher}
}

// Publish encodes msg and hands it to the broker
func (p *DispatchPublisher) Publish(ctx context.Context, msg domain.DispatchMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}

	err = p.publisher.PublishWithRetry(ctx, body, contentTypeJSON,
		rabbitmq.WithMessageID(msg.IdempotencyKey),
		rabbitmq.WithCorrelationID(msg.JobID),
		rabbitmq.WithHeader(headerProvider, msg.Provider),
		rabbitmq.WithHeader(headerTraceID, msg.TraceID),
	)
	if err != nil {
		return domain.Transient("publish dispatch", err)
	}
	return nil
}
