package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
)

// Outbox is the in-process OutboxRepository: a FIFO queue behind a single
// mutex. Claiming marks events published in the same critical section, so
// mutual exclusion between concurrent claimers is trivial — the price is
// that publication happens at claim time and MarkPublished has nothing
// left to do.
type Outbox struct {
	mu     sync.Mutex
	nextID int64
	events []graph.OutboxEvent
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue appends a queued event and returns its sequential identity.
func (o *Outbox) Enqueue(_ context.Context, tenant uuid.UUID, kind graph.OutboxKind, payload json.RawMessage) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	o.events = append(o.events, graph.OutboxEvent{
		ID:        o.nextID,
		TenantID:  tenant,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	return o.nextID, nil
}

// ClaimBatch returns up to size oldest unpublished events, marking each
// published before releasing the lock. No two claimers can see the same
// event.
func (o *Outbox) ClaimBatch(_ context.Context, size int) ([]graph.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now().UTC()
	claimed := make([]graph.OutboxEvent, 0, size)
	for i := range o.events {
		if len(claimed) == size {
			break
		}
		if o.events[i].PublishedAt != nil {
			continue
		}
		published := now
		o.events[i].PublishedAt = &published
		claimed = append(claimed, o.events[i])
	}
	return claimed, nil
}

// MarkPublished is a no-op here: publication happened at claim time.
func (o *Outbox) MarkPublished(context.Context, []int64) error {
	return nil
}

// Pending reports how many events are still unpublished. Used by tests and
// the dashboard, not part of the repository contract.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for i := range o.events {
		if o.events[i].PublishedAt == nil {
			n++
		}
	}
	return n
}
