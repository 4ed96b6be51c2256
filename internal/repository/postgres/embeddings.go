package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memophor/synagraph/internal/graph"
)

// EmbeddingStore is the PostgreSQL EmbeddingRepository. One row per
// (node, model); re-upserting replaces the vector in place.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewEmbeddingStore creates an embedding store over the pool.
func NewEmbeddingStore(pool *pgxpool.Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// UpsertEmbedding inserts or replaces the vector stored for (node, model).
func (s *EmbeddingStore) UpsertEmbedding(ctx context.Context, tenant uuid.UUID, embedding graph.NodeEmbedding) error {
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx,
			`INSERT INTO node_embeddings (node_id, tenant_id, model, dim, vec)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (node_id, model) DO UPDATE SET
				dim = EXCLUDED.dim,
				vec = EXCLUDED.vec,
				created_at = now()`,
			embedding.NodeID, tenant, embedding.Model, embedding.Dim, embedding.Vec)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upserting embedding %s/%s: %w", embedding.NodeID, embedding.Model, err)
	}
	return nil
}

// GetEmbeddings returns every embedding stored for the node.
func (s *EmbeddingStore) GetEmbeddings(ctx context.Context, tenant uuid.UUID, nodeID uuid.UUID) ([]graph.NodeEmbedding, error) {
	var embeddings []graph.NodeEmbedding
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		rows, queryErr := tx.Query(ctx,
			`SELECT node_id, tenant_id, model, dim, vec, created_at
			 FROM node_embeddings
			 WHERE tenant_id = $1 AND node_id = $2`,
			tenant, nodeID)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var e graph.NodeEmbedding
			if scanErr := rows.Scan(&e.NodeID, &e.TenantID, &e.Model, &e.Dim, &e.Vec, &e.CreatedAt); scanErr != nil {
				return fmt.Errorf("scanning embedding: %w", scanErr)
			}
			embeddings = append(embeddings, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetching embeddings for %s: %w", nodeID, err)
	}
	return embeddings, nil
}
