// Package repository defines the persistence contracts SynaGraph's core is
// written against, plus the Bundle that wires one implementation of each
// capability set into a single handle for transport adapters.
//
// Two implementations satisfy these contracts: memstore (transient,
// in-process) and postgres (relational, row-level tenant isolation). They
// are selected at startup by configuration presence of a database URL —
// never by runtime type inspection — and must behave identically under the
// shared contract tests.
//
// Absence is never an error: Get-style operations return a nil result for
// missing entities. Every operation takes an explicit tenant identity;
// no query path may cross tenants.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
)

// ErrUnsupportedHops is returned by Neighbors for hop counts beyond 1.
// Deeper traversal is a documented extension point, not a silent truncation.
var ErrUnsupportedHops = errors.New("multi-hop traversal not supported")

// UpsertOutcome reports which branch of an atomic insert-or-update fired.
type UpsertOutcome int

const (
	// Created means the node identity was unseen for the tenant.
	Created UpsertOutcome = iota
	// Updated means an existing row was replaced in place.
	Updated
)

// String returns the lowercase wire form used in API responses.
func (o UpsertOutcome) String() string {
	if o == Created {
		return "created"
	}
	return "updated"
}

// NodeRepository stores knowledge nodes. Upsert must be safe under
// concurrent callers racing on the same identity: the final state is
// deterministic, though which caller observes Created is resolved by
// arrival order.
type NodeRepository interface {
	// Upsert inserts the node if its identity is unseen for the tenant,
	// else replaces kind/payload/provenance/policy in place, preserving
	// CreatedAt and bumping UpdatedAt.
	Upsert(ctx context.Context, tenant uuid.UUID, node graph.KnowledgeNode) (UpsertOutcome, error)

	// Get returns the node or nil if absent.
	Get(ctx context.Context, tenant uuid.UUID, id uuid.UUID) (*graph.KnowledgeNode, error)

	// GetByKey returns the capsule node stored under the given logical key,
	// or nil if absent.
	GetByKey(ctx context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error)

	// DeleteByKey removes the capsule node stored under the key and returns
	// it, or nil if nothing was stored. Deletion is terminal; outbox events
	// already enqueued for the node persist.
	DeleteByKey(ctx context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error)

	// QueryByKind pages nodes of one kind ordered by (created_at, id)
	// ascending, exclusive of the cursor row. The cursor is the identity of
	// a previous page's last element (keyset pagination, stable under
	// concurrent inserts).
	QueryByKind(ctx context.Context, tenant uuid.UUID, kind string, limit int, cursor *uuid.UUID) ([]graph.KnowledgeNode, error)

	// SearchSimilar ranks nodes carrying a stored vector by descending
	// dot-product similarity to the query vector. An empty query vector
	// yields an empty result.
	SearchSimilar(ctx context.Context, tenant uuid.UUID, vector []float32, limit int) ([]graph.KnowledgeNode, error)

	// HealthCheck is a cheap liveness probe; its failure is a storage
	// failure, distinguishable from not-found everywhere else.
	HealthCheck(ctx context.Context) error
}

// EdgeRepository stores directed weighted relations. Link appends; there is
// no edge deletion or weight update in the contract.
type EdgeRepository interface {
	Link(ctx context.Context, tenant uuid.UUID, src, dst uuid.UUID, rel string, weight float32, props json.RawMessage) error

	// Neighbors returns destination nodes reachable from id over one hop,
	// optionally restricted to one relation type. hops > 1 returns
	// ErrUnsupportedHops.
	Neighbors(ctx context.Context, tenant uuid.UUID, id uuid.UUID, rel *string, hops int, limit int) ([]graph.KnowledgeNode, error)
}

// EmbeddingRepository stores per-model node vectors, keyed (node, model).
type EmbeddingRepository interface {
	UpsertEmbedding(ctx context.Context, tenant uuid.UUID, embedding graph.NodeEmbedding) error
	GetEmbeddings(ctx context.Context, tenant uuid.UUID, nodeID uuid.UUID) ([]graph.NodeEmbedding, error)
}

// OutboxRepository is the durable queue behind at-least-once delivery.
type OutboxRepository interface {
	// Enqueue appends an event; ordering key is creation time.
	Enqueue(ctx context.Context, tenant uuid.UUID, kind graph.OutboxKind, payload json.RawMessage) (int64, error)

	// ClaimBatch atomically selects up to size oldest unpublished events
	// across all tenants, marks them published, and returns them. No two
	// concurrent claimers may return the same event.
	ClaimBatch(ctx context.Context, size int) ([]graph.OutboxEvent, error)

	// MarkPublished is an idempotent no-op on already-published events.
	MarkPublished(ctx context.Context, ids []int64) error
}

// ArtifactCache is the capsule-view cache consulted by lookups. Both
// shipped implementations are intentionally inert placeholders; the
// interface exists so a real cache can be wired without touching the core.
type ArtifactCache interface {
	Get(ctx context.Context, tenant uuid.UUID, key string) (json.RawMessage, error)
	Set(ctx context.Context, tenant uuid.UUID, key string, value json.RawMessage, ttlSeconds int64) error
	Purge(ctx context.Context, tenant uuid.UUID, key string) error
}

// EventBus delivers published outbox payloads to external subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload json.RawMessage) error
}

// Bundle composes one implementation of each capability set. It is the
// single handle passed to transport adapters.
type Bundle struct {
	Nodes      NodeRepository
	Edges      EdgeRepository
	Embeddings EmbeddingRepository
	Outbox     OutboxRepository
	Cache      ArtifactCache
	Bus        EventBus
}
