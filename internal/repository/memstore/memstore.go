// Package memstore provides the transient in-process implementation of the
// repository contracts. Each collection is guarded by its own RWMutex:
// readers do not block readers, writers exclude all other access to that
// collection for the duration of the read-modify-write.
//
// memstore is the backend used when no database URL is configured, and the
// reference implementation the contract tests are written against.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

// capsuleKey extracts the logical capsule key from a node payload. Nodes
// whose payload is not a capsule envelope simply have no key.
func capsuleKey(payload json.RawMessage) string {
	var envelope struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.Key
}

// NodeStore is the in-process NodeRepository.
type NodeStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]map[uuid.UUID]graph.KnowledgeNode
}

// NewNodeStore creates an empty node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{tenants: make(map[uuid.UUID]map[uuid.UUID]graph.KnowledgeNode)}
}

func (s *NodeStore) tenantNodes(tenant uuid.UUID) map[uuid.UUID]graph.KnowledgeNode {
	nodes, ok := s.tenants[tenant]
	if !ok {
		nodes = make(map[uuid.UUID]graph.KnowledgeNode)
		s.tenants[tenant] = nodes
	}
	return nodes
}

// Upsert inserts or replaces the node under an exclusive write lock.
// CreatedAt survives updates; UpdatedAt is stamped here.
func (s *NodeStore) Upsert(_ context.Context, tenant uuid.UUID, node graph.KnowledgeNode) (repository.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.tenantNodes(tenant)
	node.TenantID = tenant
	now := time.Now().UTC()

	if existing, ok := nodes[node.ID]; ok {
		node.CreatedAt = existing.CreatedAt
		node.UpdatedAt = now
		nodes[node.ID] = node
		return repository.Updated, nil
	}

	node.CreatedAt = now
	node.UpdatedAt = now
	nodes[node.ID] = node
	return repository.Created, nil
}

// Get returns the node or nil. Never sees another tenant's map.
func (s *NodeStore) Get(_ context.Context, tenant uuid.UUID, id uuid.UUID) (*graph.KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}
	node, ok := nodes[id]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

// GetByKey returns the most recently updated capsule node stored under the
// logical key. Supersession writes a new node identity for the same key, so
// the latest update wins.
func (s *NodeStore) GetByKey(_ context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestByKeyLocked(tenant, key), nil
}

func (s *NodeStore) latestByKeyLocked(tenant uuid.UUID, key string) *graph.KnowledgeNode {
	nodes, ok := s.tenants[tenant]
	if !ok || key == "" {
		return nil
	}
	var latest *graph.KnowledgeNode
	for id := range nodes {
		node := nodes[id]
		if node.Kind != graph.KindCapsule || capsuleKey(node.Payload) != key {
			continue
		}
		if latest == nil || node.UpdatedAt.After(latest.UpdatedAt) {
			latest = &node
		}
	}
	return latest
}

// DeleteByKey removes every node stored under the key and returns the most
// recently updated one, or nil if nothing matched.
func (s *NodeStore) DeleteByKey(_ context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.latestByKeyLocked(tenant, key)
	if latest == nil {
		return nil, nil
	}

	nodes := s.tenants[tenant]
	for id := range nodes {
		if nodes[id].Kind == graph.KindCapsule && capsuleKey(nodes[id].Payload) == key {
			delete(nodes, id)
		}
	}
	return latest, nil
}

// QueryByKind pages nodes ordered by (created_at, id) ascending, exclusive
// of the cursor row. A cursor whose node no longer exists yields an empty
// page rather than restarting the scan.
func (s *NodeStore) QueryByKind(_ context.Context, tenant uuid.UUID, kind string, limit int, cursor *uuid.UUID) ([]graph.KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}

	var after *graph.KnowledgeNode
	if cursor != nil {
		row, exists := nodes[*cursor]
		if !exists {
			return nil, nil
		}
		after = &row
	}

	matched := make([]graph.KnowledgeNode, 0, len(nodes))
	for id := range nodes {
		if nodes[id].Kind == kind {
			matched = append(matched, nodes[id])
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if after != nil {
		for len(matched) > 0 && !keysetAfter(matched[0], *after) {
			matched = matched[1:]
		}
	}

	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// keysetAfter reports whether node sorts strictly after the cursor row in
// (created_at, id) order.
func keysetAfter(node, cursor graph.KnowledgeNode) bool {
	if !node.CreatedAt.Equal(cursor.CreatedAt) {
		return node.CreatedAt.After(cursor.CreatedAt)
	}
	return node.ID.String() > cursor.ID.String()
}

// SearchSimilar is a flat O(n·d) scan ranking stored vectors by
// unnormalized dot product. Callers wanting cosine similarity present
// pre-normalized vectors. Ties break on node identity so results are
// deterministic within one process.
func (s *NodeStore) SearchSimilar(_ context.Context, tenant uuid.UUID, vector []float32, limit int) ([]graph.KnowledgeNode, error) {
	if len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}

	type scored struct {
		score float32
		node  graph.KnowledgeNode
	}
	candidates := make([]scored, 0, len(nodes))
	for id := range nodes {
		node := nodes[id]
		if len(node.Vector) == 0 {
			continue
		}
		candidates = append(candidates, scored{score: dot(node.Vector, vector), node: node})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.ID.String() < candidates[j].node.ID.String()
	})

	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	results := make([]graph.KnowledgeNode, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.node)
	}
	return results, nil
}

// HealthCheck always succeeds for the in-process store.
func (s *NodeStore) HealthCheck(context.Context) error {
	return nil
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
