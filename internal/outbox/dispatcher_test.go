package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/outbox"
	"github.com/memophor/synagraph/internal/repository/memstore"
)

// TestMain enables goroutine leak detection: a dispatcher that outlives its
// context is a bug.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingBus captures published payloads per subject.
type recordingBus struct {
	mu        sync.Mutex
	published map[string][]json.RawMessage
	fail      bool
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(map[string][]json.RawMessage)}
}

func (b *recordingBus) Publish(_ context.Context, subject string, payload json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return errors.New("bus unavailable")
	}
	b.published[subject] = append(b.published[subject], payload)
	return nil
}

func (b *recordingBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[subject])
}

func TestDispatcher_DispatchOnce(t *testing.T) {
	t.Parallel()

	queue := memstore.NewOutbox()
	bus := newRecordingBus()
	ctx := context.Background()
	tenant := uuid.New()

	for range 3 {
		_, err := queue.Enqueue(ctx, tenant, graph.OutboxUpsert, json.RawMessage(`{"key":"faq:refund"}`))
		require.NoError(t, err)
	}

	d := outbox.NewDispatcher(queue, bus, "scedge:events", 10, time.Second, log.NewNop())

	published, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, published)
	assert.Equal(t, 3, bus.count("scedge:events"))

	// The envelope carries the event identity, kind, and tenant.
	var envelope outbox.Envelope
	bus.mu.Lock()
	raw := bus.published["scedge:events"][0]
	bus.mu.Unlock()
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, graph.OutboxUpsert, envelope.Type)
	assert.Equal(t, tenant.String(), envelope.TenantID)
	assert.JSONEq(t, `{"key":"faq:refund"}`, string(envelope.Payload))

	published, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, published, "drained queue publishes nothing")
}

func TestDispatcher_BatchSizeBoundsClaim(t *testing.T) {
	t.Parallel()

	queue := memstore.NewOutbox()
	bus := newRecordingBus()
	ctx := context.Background()

	for range 5 {
		_, err := queue.Enqueue(ctx, uuid.New(), graph.OutboxRevokeCapsule, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	d := outbox.NewDispatcher(queue, bus, "scedge:events", 2, time.Second, log.NewNop())

	published, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Equal(t, 3, queue.Pending())
}

func TestDispatcher_PublishFailureDoesNotError(t *testing.T) {
	t.Parallel()

	queue := memstore.NewOutbox()
	bus := newRecordingBus()
	bus.fail = true
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, uuid.New(), graph.OutboxUpsert, json.RawMessage(`{}`))
	require.NoError(t, err)

	d := outbox.NewDispatcher(queue, bus, "scedge:events", 10, time.Second, log.NewNop())

	published, err := d.DispatchOnce(ctx)
	require.NoError(t, err, "publish failures are logged, not propagated")
	assert.Equal(t, 0, published)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	queue := memstore.NewOutbox()
	bus := newRecordingBus()
	tenant := uuid.New()

	_, err := queue.Enqueue(context.Background(), tenant, graph.OutboxUpsert, json.RawMessage(`{}`))
	require.NoError(t, err)

	d := outbox.NewDispatcher(queue, bus, "scedge:events", 10, 5*time.Millisecond, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.count("scedge:events") == 1
	}, time.Second, 5*time.Millisecond, "background loop drains the queue")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}

func TestDispatcher_Defaults(t *testing.T) {
	t.Parallel()

	// Zero batch size and interval fall back to usable defaults instead of
	// a dispatcher that claims nothing or spins.
	d := outbox.NewDispatcher(memstore.NewOutbox(), newRecordingBus(), "scedge:events", 0, 0, nil)

	published, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
}
