// Package outbox drains the durable event queue into the external bus.
//
// Delivery is at-least-once: events are marked published when claimed, so a
// dispatcher that dies between claiming and publishing loses nothing on the
// storage side but may leave a claimed event unsent. Downstream consumers
// must be idempotent; that trade-off is deliberate and keeps the claim path
// a single atomic statement.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

const (
	// DefaultBatchSize bounds one claim.
	DefaultBatchSize = 32

	// DefaultInterval is the idle polling period of the background loop.
	DefaultInterval = 2 * time.Second
)

// Envelope is the wire shape published to the bus for each event.
type Envelope struct {
	ID        int64            `json:"id"`
	Type      graph.OutboxKind `json:"type"`
	TenantID  string           `json:"tenant_id"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// Dispatcher claims event batches and publishes them to the bus.
type Dispatcher struct {
	outbox    repository.OutboxRepository
	bus       repository.EventBus
	subject   string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher publishing to subject. Zero batchSize
// and interval fall back to the defaults.
func NewDispatcher(outbox repository.OutboxRepository, bus repository.EventBus, subject string, batchSize int, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outbox:    outbox,
		bus:       bus,
		subject:   subject,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until ctx is canceled, draining the outbox on each tick.
// Callers must track the goroutine with a WaitGroup.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				d.logger.Warn("outbox dispatch failed", "error", err)
			}
		}
	}
}

// DispatchOnce claims one batch and publishes each event, returning how
// many were published. Publish failures are logged and do not retry: the
// storage mutation behind the event is the source of truth.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.outbox.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claiming outbox batch: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	ids := make([]int64, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
		envelope, marshalErr := json.Marshal(Envelope{
			ID:        event.ID,
			Type:      event.Kind,
			TenantID:  event.TenantID.String(),
			Payload:   event.Payload,
			CreatedAt: event.CreatedAt,
		})
		if marshalErr != nil {
			d.logger.Error("marshaling outbox envelope", "event_id", event.ID, "error", marshalErr)
			continue
		}
		if pubErr := d.bus.Publish(ctx, d.subject, envelope); pubErr != nil {
			d.logger.Error("publishing outbox event", "event_id", event.ID, "kind", event.Kind, "error", pubErr)
			continue
		}
		published++
	}

	if err := d.outbox.MarkPublished(ctx, ids); err != nil {
		d.logger.Warn("marking outbox events published", "error", err)
	}
	return published, nil
}
