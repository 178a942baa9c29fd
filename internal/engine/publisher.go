package engine

import (
	"context"
	"fmt"

	"github.com/palinopr/leadrouter/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing so the
// webhook endpoint can acknowledge the provider quickly.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("engine: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes one inbound message job.
func (p *Publisher) EnqueueInbound(ctx context.Context, jobID string, msg InboundMessage) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{ID: jobID, Inbound: msg})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("engine: failed to enqueue inbound: %w", err)
	}

	p.logger.Debug("inbound job enqueued", "job_id", payload.ID, "delivery_id", msg.DeliveryID)
	return nil
}
