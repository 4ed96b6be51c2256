// Package postgres implements the repository contracts over PostgreSQL
// using pgx. Tenant isolation is structural twice over: every statement
// filters on the tenant column, and each operation additionally sets the
// app.current_tenant session marker inside its transaction so row-level
// security policies stop even a malformed query from crossing tenants.
//
// The service holds no locks across a request boundary; isolation is
// delegated entirely to the database's transaction and RLS mechanisms.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

// setTenantSQL installs the transaction-local tenant marker consumed by the
// RLS policies in db/migrations.
const setTenantSQL = `SELECT set_config('app.current_tenant', $1, true)`

// withTenant runs fn inside a transaction carrying the tenant marker.
func withTenant(ctx context.Context, pool *pgxpool.Pool, tenant uuid.UUID, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, setTenantSQL, tenant.String()); err != nil {
		return fmt.Errorf("setting tenant context: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// nodeCols is the standard SELECT column list for scanNode. The raw vector
// column is not read back; stored vectors are only consulted server-side by
// SearchSimilar.
const nodeCols = `id, tenant_id, kind, payload_json, provenance, policy, created_at, updated_at`

func scanNode(row pgx.Row) (*graph.KnowledgeNode, error) {
	var node graph.KnowledgeNode
	err := row.Scan(&node.ID, &node.TenantID, &node.Kind, &node.Payload,
		&node.Provenance, &node.Policy, &node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func collectNodes(rows pgx.Rows) ([]graph.KnowledgeNode, error) {
	defer rows.Close()

	var nodes []graph.KnowledgeNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning knowledge node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// NodeStore is the PostgreSQL NodeRepository.
type NodeStore struct {
	pool *pgxpool.Pool
}

// NewNodeStore creates a node store over the pool.
func NewNodeStore(pool *pgxpool.Pool) *NodeStore {
	return &NodeStore{pool: pool}
}

const upsertNodeSQL = `
	INSERT INTO knowledge_nodes (id, tenant_id, kind, payload_json, vector, provenance, policy)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		kind = EXCLUDED.kind,
		payload_json = EXCLUDED.payload_json,
		vector = EXCLUDED.vector,
		provenance = EXCLUDED.provenance,
		policy = EXCLUDED.policy,
		updated_at = now()
	RETURNING (xmax = 0) AS created`

// Upsert inserts or replaces atomically. The pre-update transaction-id
// marker (xmax = 0) reports which branch fired, so concurrent callers
// racing on one identity each get a truthful outcome.
func (s *NodeStore) Upsert(ctx context.Context, tenant uuid.UUID, node graph.KnowledgeNode) (repository.UpsertOutcome, error) {
	var vec *pgvector.Vector
	if len(node.Vector) > 0 {
		v := pgvector.NewVector(node.Vector)
		vec = &v
	}

	var created bool
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, upsertNodeSQL,
			node.ID, tenant, node.Kind, node.Payload, vec, node.Provenance, node.Policy,
		).Scan(&created)
	})
	if err != nil {
		return repository.Updated, fmt.Errorf("upserting knowledge node %s: %w", node.ID, err)
	}
	if created {
		return repository.Created, nil
	}
	return repository.Updated, nil
}

// Get returns the node or nil.
func (s *NodeStore) Get(ctx context.Context, tenant uuid.UUID, id uuid.UUID) (*graph.KnowledgeNode, error) {
	var node *graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		found, scanErr := scanNode(tx.QueryRow(ctx,
			`SELECT `+nodeCols+` FROM knowledge_nodes WHERE tenant_id = $1 AND id = $2`,
			tenant, id))
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		node = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching knowledge node %s: %w", id, err)
	}
	return node, nil
}

// GetByKey returns the most recently updated capsule node stored under the
// logical key, or nil. Supersession writes a new identity for the same key,
// so the latest update wins.
func (s *NodeStore) GetByKey(ctx context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error) {
	var node *graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		found, scanErr := scanNode(tx.QueryRow(ctx,
			`SELECT `+nodeCols+` FROM knowledge_nodes
			 WHERE tenant_id = $1 AND kind = 'capsule' AND payload_json->>'key' = $2
			 ORDER BY updated_at DESC
			 LIMIT 1`,
			tenant, key))
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		node = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching capsule node %q: %w", key, err)
	}
	return node, nil
}

// DeleteByKey removes every capsule node stored under the key and returns
// the most recently updated one, or nil if nothing matched.
func (s *NodeStore) DeleteByKey(ctx context.Context, tenant uuid.UUID, key string) (*graph.KnowledgeNode, error) {
	var latest *graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		rows, queryErr := tx.Query(ctx,
			`DELETE FROM knowledge_nodes
			 WHERE tenant_id = $1 AND kind = 'capsule' AND payload_json->>'key' = $2
			 RETURNING `+nodeCols,
			tenant, key)
		if queryErr != nil {
			return queryErr
		}
		deleted, collectErr := collectNodes(rows)
		if collectErr != nil {
			return collectErr
		}
		for i := range deleted {
			if latest == nil || deleted[i].UpdatedAt.After(latest.UpdatedAt) {
				latest = &deleted[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deleting capsule node %q: %w", key, err)
	}
	return latest, nil
}

// QueryByKind pages nodes ordered by (created_at, id) ascending using
// keyset pagination: the cursor is the identity of a previous page's last
// row and the comparison is exclusive, so the scan stays correct under
// concurrent inserts.
func (s *NodeStore) QueryByKind(ctx context.Context, tenant uuid.UUID, kind string, limit int, cursor *uuid.UUID) ([]graph.KnowledgeNode, error) {
	var nodes []graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		rows, queryErr := tx.Query(ctx,
			`SELECT `+nodeCols+` FROM knowledge_nodes
			 WHERE tenant_id = $1 AND kind = $2
			   AND ($3::uuid IS NULL OR (created_at, id) > (
			       SELECT created_at, id FROM knowledge_nodes WHERE tenant_id = $1 AND id = $3))
			 ORDER BY created_at ASC, id ASC
			 LIMIT $4`,
			tenant, kind, cursor, limit)
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
		return nil, fmt.Errorf("querying knowledge nodes by kind %q: %w", kind, err)
	}
	return nodes, nil
}

// SearchSimilar ranks stored vectors by descending inner product using
// pgvector's <#> operator (negative inner product, ascending scan order).
// Identity breaks score ties so rankings are deterministic.
func (s *NodeStore) SearchSimilar(ctx context.Context, tenant uuid.UUID, vector []float32, limit int) ([]graph.KnowledgeNode, error) {
	if len(vector) == 0 {
		return nil, nil
	}

	query := pgvector.NewVector(vector)
	var nodes []graph.KnowledgeNode
	err := withTenant(ctx, s.pool, tenant, func(tx pgx.Tx) error {
		rows, queryErr := tx.Query(ctx,
			`SELECT `+nodeCols+` FROM knowledge_nodes
			 WHERE tenant_id = $1 AND vector IS NOT NULL
			 ORDER BY vector <#> $2 ASC, id ASC
			 LIMIT $3`,
			tenant, query, limit)
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
		return nil, fmt.Errorf("searching similar nodes: %w", err)
	}
	return nodes, nil
}

// HealthCheck pings with the cheapest possible statement.
func (s *NodeStore) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

// NewBundle wires the PostgreSQL-backed repository bundle. Cache and bus
// default to the provided implementations; pass the inert memstore variants
// when no external cache or bus is deployed.
func NewBundle(pool *pgxpool.Pool, cache repository.ArtifactCache, bus repository.EventBus) repository.Bundle {
	return repository.Bundle{
		Nodes:      NewNodeStore(pool),
		Edges:      NewEdgeStore(pool),
		Embeddings: NewEmbeddingStore(pool),
		Outbox:     NewOutbox(pool),
		Cache:      cache,
		Bus:        bus,
	}
}
