package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
)

type embeddingKey struct {
	nodeID uuid.UUID
	model  string
}

// EmbeddingStore is the in-process EmbeddingRepository, keyed
// (node, model) per tenant.
type EmbeddingStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]map[embeddingKey]graph.NodeEmbedding
}

// NewEmbeddingStore creates an empty embedding store.
func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{tenants: make(map[uuid.UUID]map[embeddingKey]graph.NodeEmbedding)}
}

// UpsertEmbedding replaces the vector stored for (node, model).
func (s *EmbeddingStore) UpsertEmbedding(_ context.Context, tenant uuid.UUID, embedding graph.NodeEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	embeddings, ok := s.tenants[tenant]
	if !ok {
		embeddings = make(map[embeddingKey]graph.NodeEmbedding)
		s.tenants[tenant] = embeddings
	}

	embedding.TenantID = tenant
	embedding.CreatedAt = time.Now().UTC()
	embeddings[embeddingKey{nodeID: embedding.NodeID, model: embedding.Model}] = embedding
	return nil
}

// GetEmbeddings returns every embedding stored for the node.
func (s *EmbeddingStore) GetEmbeddings(_ context.Context, tenant uuid.UUID, nodeID uuid.UUID) ([]graph.NodeEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	embeddings, ok := s.tenants[tenant]
	if !ok {
		return nil, nil
	}

	var out []graph.NodeEmbedding
	for key := range embeddings {
		if key.nodeID == nodeID {
			out = append(out, embeddings[key])
		}
	}
	return out, nil
}
