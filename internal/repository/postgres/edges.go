package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

// EdgeStore is the PostgreSQL EdgeRepository. Each Link call appends a new
// row; the contract has no edge deletion or weight update.
type EdgeStore struct {
	pool *pgxpool.Pool
}

// NewEdgeStore creates an edge store over the pool.
func NewEdgeStore(pool *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{pool: pool}
}

// Link inserts a directed weighted edge between two node identities.
func (s *EdgeStore) Link(ctx context.Context, tenant uuid.UUID, src, dst uuid.UUID, rel string, weight float32, props json.RawMessage) error {
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx,
			`INSERT INTO knowledge_edges (tenant_id, src, dst, rel, weight, props)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			tenant, src, dst, rel, weight, props)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("inserting edge %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Neighbors returns destination nodes one hop out from id, newest edges
// first. Deeper traversal is a documented extension point; hops > 1 fails
// with ErrUnsupportedHops rather than silently truncating.
func (s *EdgeStore) Neighbors(ctx context.Context, tenant uuid.UUID, id uuid.UUID, rel *string, hops int, limit int) ([]graph.KnowledgeNode, error) {
	if hops > 1 {
		return nil, repository.ErrUnsupportedHops
	}

	var nodes []graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		rows, queryErr := tx.Query(ctx,
			`SELECT n.id, n.tenant_id, n.kind, n.payload_json, n.provenance, n.policy, n.created_at, n.updated_at
			 FROM knowledge_edges e
			 JOIN knowledge_nodes n ON n.id = e.dst AND n.tenant_id = e.tenant_id
			 WHERE e.tenant_id = $1
			   AND e.src = $2
			   AND ($3::text IS NULL OR e.rel = $3)
			 ORDER BY e.created_at DESC, e.id DESC
			 LIMIT $4`,
			tenant, id, rel, limit)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := collectNodes(rows)
		if collectErr != nil {
			return collectErr
		}
		nodes = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching neighbors of %s: %w", id, err)
	}
	return nodes, nil
}
