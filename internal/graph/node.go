package graph

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// KindCapsule is the kind tag stamped on capsule nodes. Key addressing
// (GetByKey, DeleteByKey) resolves nodes of this kind only, in every
// backend.
const KindCapsule = "capsule"

// KnowledgeNode is the fundamental vertex of the graph. The payload is an
// opaque JSON document owned by the caller; provenance and policy are
// denormalized JSON blobs so lookups never need a join.
//
// CreatedAt is immutable after the first write; UpdatedAt increases
// monotonically on every write. Both are stamped by the storage backend,
// not by callers.
type KnowledgeNode struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload_json"`
	Vector     []float32       `json:"vector,omitempty"`
	Provenance json.RawMessage `json:"provenance,omitempty"`
	Policy     json.RawMessage `json:"policy,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewNode creates a node with a fresh random identity and both timestamps
// set to now. Callers that need a deterministic identity (capsule ingest)
// overwrite ID before upserting. A nil payload becomes an empty JSON
// object so backends with a NOT NULL payload column accept the node.
func NewNode(tenantID uuid.UUID, kind string, payload json.RawMessage) KnowledgeNode {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	return KnowledgeNode{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the update timestamp.
func (n *KnowledgeNode) Touch() {
	n.UpdatedAt = time.Now().UTC()
}

// KnowledgeEdge is a directed, weighted relation between two node
// identities within one tenant. Edges are append-only: there is no delete
// or weight-update operation in the contract.
type KnowledgeEdge struct {
	ID        int64           `json:"id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Src       uuid.UUID       `json:"src"`
	Dst       uuid.UUID       `json:"dst"`
	Rel       string          `json:"rel"`
	Weight    float32         `json:"weight"`
	Props     json.RawMessage `json:"props,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NodeEmbedding associates a node with a named vector model. A node may
// carry one embedding per model; (NodeID, Model) is the natural key.
type NodeEmbedding struct {
	NodeID    uuid.UUID `json:"node_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Model     string    `json:"model"`
	Dim       int32     `json:"dim"`
	Vec       []float32 `json:"vec"`
	CreatedAt time.Time `json:"created_at"`
}
