package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
)

// Worker consumes inbound jobs from the queue and runs them through the
// engine. Per-thread ordering still holds: the engine's keyed lock
// serializes turns for the same thread even across workers.
type Worker struct {
	engine *Engine
	queue  queueClient
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewWorker creates a queue consumer bound to the engine.
func NewWorker(eng *Engine, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if eng == nil {
		panic("engine: worker needs an engine")
	}
	if queue == nil {
		panic("engine: worker needs a queue")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		engine: eng,
		queue:  queue,
		logger: logger,
		cfg:    cfg,
	}
}

// Start launches the consumer goroutines. They stop when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("inbound worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("inbound worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive inbound jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode inbound job", "error", err, "message_id", msg.ID)
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	outcome, err := w.engine.HandleInbound(ctx, payload.Inbound)
	if err != nil {
		var identityErr *identity.IdentityError
		if errors.As(err, &identityErr) {
			// Unresolvable payloads will never succeed on redelivery; flag
			// for manual triage and drop from the queue.
			w.logger.Error("inbound flagged for manual triage",
				"job_id", payload.ID, "delivery_id", payload.Inbound.DeliveryID, "error", err)
			w.deleteMessage(ctx, msg.ReceiptHandle)
			return
		}
		// Transient failure: leave the message for redelivery.
		w.logger.Error("inbound job failed", "job_id", payload.ID, "error", err)
		return
	}

	w.logger.Info("inbound job processed",
		"job_id", payload.ID,
		"thread_key", outcome.ThreadKey.String(),
		"tier", outcome.Tier,
		"score", outcome.Score,
		"duplicate", outcome.Duplicate,
		"degraded", outcome.Degraded)
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound job", "error", err)
	}
}
