package memstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/repository"
)

// Cache is an intentionally inert ArtifactCache: lookups always miss and
// writes succeed silently. It exists so the cache concern stays wired
// through the Bundle without forcing a cache dependency on every deploy.
type Cache struct{}

// NewCache creates the no-op cache.
func NewCache() *Cache { return &Cache{} }

// Get always reports a miss.
func (*Cache) Get(context.Context, uuid.UUID, string) (json.RawMessage, error) {
	return nil, nil
}

// Set discards the value.
func (*Cache) Set(context.Context, uuid.UUID, string, json.RawMessage, int64) error {
	return nil
}

// Purge has nothing to remove.
func (*Cache) Purge(context.Context, uuid.UUID, string) error {
	return nil
}

// Bus is an inert EventBus that drops published payloads.
type Bus struct{}

// NewBus creates the no-op bus.
func NewBus() *Bus { return &Bus{} }

// Publish discards the payload.
func (*Bus) Publish(context.Context, string, json.RawMessage) error {
	return nil
}

// NewBundle wires a complete in-process repository bundle.
func NewBundle() repository.Bundle {
	nodes := NewNodeStore()
	return repository.Bundle{
		Nodes:      nodes,
		Edges:      NewEdgeStore(nodes),
		Embeddings: NewEmbeddingStore(),
		Outbox:     NewOutbox(),
		Cache:      NewCache(),
		Bus:        NewBus(),
	}
}
