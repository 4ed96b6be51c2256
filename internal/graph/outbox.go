package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxKind enumerates the change events propagated to subscribers. The
// wire strings are part of the external contract: anything else read back
// from storage is a deserialization error, never a silently-ignored unknown.
type OutboxKind string

const (
	// OutboxUpsert fires on first-time capsule creation.
	OutboxUpsert OutboxKind = "UPSERT"

	// OutboxSupersededBy fires when an ingest overwrites a capsule whose
	// hash changed. Payload carries old_hash and new_hash.
	OutboxSupersededBy OutboxKind = "SUPERSEDED_BY"

	// OutboxRevokeCapsule fires on explicit purge. Payload carries
	// capsule_id and hash.
	OutboxRevokeCapsule OutboxKind = "REVOKE_CAPSULE"
)

// ParseOutboxKind validates a wire string read back from storage.
func ParseOutboxKind(s string) (OutboxKind, error) {
	switch OutboxKind(s) {
	case OutboxUpsert, OutboxSupersededBy, OutboxRevokeCapsule:
		return OutboxKind(s), nil
	default:
		return "", fmt.Errorf("unknown outbox kind %q", s)
	}
}

// OutboxEvent is a queued fact awaiting publication. PublishedAt is set
// exactly once, by exactly one claimer; unpublished events are visible to
// claim attempts in creation order, published events are terminal.
type OutboxEvent struct {
	ID          int64           `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	Kind        OutboxKind      `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}
