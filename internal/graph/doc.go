// Package graph defines the entity model persisted by SynaGraph: typed
// knowledge nodes, directed weighted edges between them, per-model vector
// embeddings, and the outbox events that propagate state changes to
// subscribers.
//
// Entities are pure data. Constructors only establish invariants (fresh
// identities, timestamp initialization); all behavior lives in the
// repository backends and the capsule translation layer.
package graph
