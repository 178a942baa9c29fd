package engine

import (
	"context"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/pkg/logging"
)

// Delivery dispatches the assistant reply back to the channel the message
// arrived on. Transport integrations (SMS, web chat, messenger) implement
// this; the engine only guarantees the reply text and its thread.
type Delivery interface {
	Send(ctx context.Context, key identity.ThreadKey, text string) error
}

// LogDelivery is the default no-op dispatcher: it records the reply in the
// logs and sends nothing. Useful for local runs and the simulator.
type LogDelivery struct {
	logger *logging.Logger
}

// NewLogDelivery creates a logging dispatcher.
func NewLogDelivery(logger *logging.Logger) *LogDelivery {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogDelivery{logger: logger}
}

// Send implements Delivery.
func (d *LogDelivery) Send(_ context.Context, key identity.ThreadKey, text string) error {
	d.logger.Info("outbound reply", "thread_key", key.String(), "text", text)
	return nil
}
