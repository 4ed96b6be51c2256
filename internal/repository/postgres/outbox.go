package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memophor/synagraph/internal/graph"
)

// Outbox is the PostgreSQL OutboxRepository. Claiming uses a locking read
// that skips rows already locked by a concurrent claimer, so claimers make
// progress under contention instead of serializing. The trade-off: a
// claimer may skip a currently-locked older event and claim a younger one,
// so global FIFO order across concurrent claimers is not guaranteed — only
// mutual exclusion and eventual publication of every event.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox creates an outbox over the pool.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Enqueue appends a queued event for the tenant and returns its identity.
func (o *Outbox) Enqueue(ctx context.Context, tenant uuid.UUID, kind graph.OutboxKind, payload json.RawMessage) (int64, error) {
	var id int64
	err := withTenant(ctx, o.pool, tenant, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO outbox_events (tenant_id, kind, payload)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			tenant, string(kind), payload).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("enqueueing outbox event: %w", err)
	}
	return id, nil
}

const claimBatchSQL = `
	UPDATE outbox_events
	SET published_at = now()
	WHERE id IN (
		SELECT id
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, tenant_id, kind, payload, created_at, published_at`

// ClaimBatch atomically selects, marks published, and returns up to size of
// the oldest unpublished events across all tenants. Claiming spans all
// tenants by design, so it runs outside the tenant marker (the outbox table
// carries no RLS policy; see db/migrations).
func (o *Outbox) ClaimBatch(ctx context.Context, size int) ([]graph.OutboxEvent, error) {
	rows, err := o.pool.Query(ctx, claimBatchSQL, size)
	if err != nil {
		return nil, fmt.Errorf("claiming outbox batch: %w", err)
	}
	defer rows.Close()

	var events []graph.OutboxEvent
	for rows.Next() {
		var (
			event       graph.OutboxEvent
			kind        string
			publishedAt *time.Time
		)
		if err := rows.Scan(&event.ID, &event.TenantID, &kind, &event.Payload, &event.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox event: %w", err)
		}
		parsed, err := graph.ParseOutboxKind(kind)
		if err != nil {
			return nil, fmt.Errorf("deserializing outbox event %d: %w", event.ID, err)
		}
		event.Kind = parsed
		event.PublishedAt = publishedAt
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkPublished stamps publication on any of the given events still
// unpublished. Already-published events are untouched, so repeated calls
// are safe.
func (o *Outbox) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := o.pool.Exec(ctx,
		`UPDATE outbox_events SET published_at = now() WHERE id = ANY($1) AND published_at IS NULL`,
		ids)
	if err != nil {
		return fmt.Errorf("marking outbox events published: %w", err)
	}
	return nil
}
