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

// EdgeStore is the in-process EdgeRepository. Edges are append-only rows
// per tenant; node hydration for Neighbors goes through the node store.
type EdgeStore struct {
	mu      sync.RWMutex
	nextID  int64
	tenants map[uuid.UUID][]graph.KnowledgeEdge
	nodes   *NodeStore
}

// NewEdgeStore creates an edge store resolving neighbor nodes from nodes.
func NewEdgeStore(nodes *NodeStore) *EdgeStore {
	return &EdgeStore{tenants: make(map[uuid.UUID][]graph.KnowledgeEdge), nodes: nodes}
}

// Link appends a new edge row. Repeated calls with the same endpoints
// append further rows; the contract has no edge identity to conflict on.
func (s *EdgeStore) Link(_ context.Context, tenant uuid.UUID, src, dst uuid.UUID, rel string, weight float32, props json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.tenants[tenant] = append(s.tenants[tenant], graph.KnowledgeEdge{
		ID:        s.nextID,
		TenantID:  tenant,
		Src:       src,
		Dst:       dst,
		Rel:       rel,
		Weight:    weight,
		Props:     props,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Neighbors returns destination nodes one hop out from id, newest edges
// first. Deeper traversal is an explicit extension point.
func (s *EdgeStore) Neighbors(ctx context.Context, tenant uuid.UUID, id uuid.UUID, rel *string, hops int, limit int) ([]graph.KnowledgeNode, error) {
	if hops > 1 {
		return nil, repository.ErrUnsupportedHops
	}

	s.mu.RLock()
	edges := make([]graph.KnowledgeEdge, 0)
	for _, edge := range s.tenants[tenant] {
		if edge.Src != id {
			continue
		}
		if rel != nil && edge.Rel != *rel {
			continue
		}
		edges = append(edges, edge)
	}
	s.mu.RUnlock()

	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return edges[i].ID > edges[j].ID
	})

	nodes := make([]graph.KnowledgeNode, 0, len(edges))
	for _, edge := range edges {
		if limit >= 0 && len(nodes) == limit {
			break
		}
		node, err := s.nodes.Get(ctx, tenant, edge.Dst)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes, nil
}
