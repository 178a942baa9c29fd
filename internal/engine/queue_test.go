package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palinopr/leadrouter/internal/dedup"
	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/store"
	"github.com/palinopr/leadrouter/pkg/logging"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "one"))
	require.NoError(t, q.Send(ctx, "two"))

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Body)
	assert.Equal(t, "two", messages[1].Body)
	assert.NotEmpty(t, messages[0].ID)
	assert.NotEmpty(t, messages[0].ReceiptHandle)
}

func TestMemoryQueueReceiveTimeout(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueReceiveCanceled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPublisherAssignsJobID(t *testing.T) {
	q := NewMemoryQueue(1)
	p := NewPublisher(q, logging.Default())

	err := p.EnqueueInbound(context.Background(), "", InboundMessage{ContactID: "c1", Text: "hola"})
	require.NoError(t, err)

	messages, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Body, `"contact_id":"c1"`)
}

func TestWorkerProcessesInbound(t *testing.T) {
	st := store.NewMemoryStore()
	machine, err := routing.NewMachine(routing.DefaultPolicy())
	require.NoError(t, err)
	eng, err := New(st, dedup.NewMemoryGate(dedup.DefaultWindow), machine)
	require.NoError(t, err)

	q := NewMemoryQueue(8)
	p := NewPublisher(q, logging.Default())
	w := NewWorker(eng, q, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, p.EnqueueInbound(ctx, "job-1", InboundMessage{
		ContactID: "w1",
		Text:      "tengo una barberia",
		Timestamp: time.Now().UTC(),
	}))

	key := identity.ThreadKey("contact-w1")
	deadline := time.After(3 * time.Second)
	for {
		if _, err := st.Load(context.Background(), key); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not process inbound in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	w.Wait()

	state, err := st.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "barberia", state.Profile.Value("business_type"))
}

func TestWorkerDropsUnresolvablePayloads(t *testing.T) {
	st := store.NewMemoryStore()
	machine, err := routing.NewMachine(routing.DefaultPolicy())
	require.NoError(t, err)
	eng, err := New(st, dedup.NewMemoryGate(dedup.DefaultWindow), machine)
	require.NoError(t, err)

	q := NewMemoryQueue(8)
	w := NewWorker(eng, q, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	p := NewPublisher(q, logging.Default())
	require.NoError(t, p.EnqueueInbound(ctx, "job-bad", InboundMessage{Text: "sin identidad"}))

	// The job is flagged and deleted, never retried; the store stays empty.
	time.Sleep(200 * time.Millisecond)
	cancel()
	w.Wait()
	assert.Equal(t, 0, st.Len())
}
