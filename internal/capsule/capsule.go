// Package capsule materializes cache-friendly answer artifacts over stored
// knowledge nodes and translates between the two representations.
//
// A capsule is the unit downstream answer caches consume: an answer value,
// a policy block, provenance records, a content hash, and a TTL. Capsules
// are not stored separately — the ingest request is the node payload, and
// the lookup response is derived from it plus the node's timestamps.
package capsule

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
)

// NodeKind is the kind tag carried by every capsule node.
const NodeKind = graph.KindCapsule

// DefaultTenant is the sentinel slug substituted for an empty policy tenant
// on the lookup path.
const DefaultTenant = "default"

var (
	// ErrMissingTenant rejects ingests whose policy.tenant is empty.
	ErrMissingTenant = errors.New("capsule policy.tenant is required")

	// ErrMissingHash rejects ingests whose artifact.hash is empty.
	ErrMissingHash = errors.New("capsule artifact.hash is required")
)

// Provenance records where an answer came from.
type Provenance struct {
	Source      string     `json:"source"`
	Hash        string     `json:"hash,omitempty"`
	Version     *string    `json:"version,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

// Policy is the compliance block attached to every capsule.
type Policy struct {
	Tenant         string   `json:"tenant"`
	PHI            bool     `json:"phi"`
	PII            bool     `json:"pii"`
	Region         *string  `json:"region,omitempty"`
	ComplianceTags []string `json:"compliance_tags,omitempty"`
}

// Artifact is the cached-answer payload. Hash is the content address and is
// mandatory on ingest; TTLSeconds and the envelope's ExpiresAt are two
// representations of the same fact, kept mutually derivable.
type Artifact struct {
	Answer     json.RawMessage `json:"answer"`
	Policy     Policy          `json:"policy"`
	Provenance []Provenance    `json:"provenance"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
	TTLSeconds *int64          `json:"ttl_seconds,omitempty"`
	Hash       string          `json:"hash"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// ensureDefaults guarantees the provenance list is never empty.
func (a *Artifact) ensureDefaults() {
	if len(a.Provenance) == 0 {
		a.Provenance = []Provenance{{}}
	}
}

// IngestRequest is the inbound capsule shape. It is stored verbatim as the
// node payload.
type IngestRequest struct {
	Key       string     `json:"key"`
	Artifact  Artifact   `json:"artifact"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LookupResponse is the outbound capsule shape: the artifact plus the
// computed expiry and remaining TTL, both present only when a TTL or expiry
// was ever established.
type LookupResponse struct {
	Key                 string     `json:"key"`
	Artifact            Artifact   `json:"artifact"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	TTLRemainingSeconds *int64     `json:"ttl_remaining_seconds,omitempty"`
}

// NodeID derives the capsule's stable node identity from its logical key
// and content hash. Re-ingesting the same (key, hash) pair therefore maps
// onto the same row, making unchanged ingests idempotent updates.
func NodeID(key, hash string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key+":"+hash))
}

// Node converts the ingest request into a storable knowledge node. The
// request must carry a policy tenant and a content hash; policy and
// provenance are denormalized alongside the payload so lookups need no join.
func (r IngestRequest) Node(tenantID uuid.UUID) (graph.KnowledgeNode, error) {
	r.Artifact.ensureDefaults()
	if r.Artifact.Policy.Tenant == "" {
		return graph.KnowledgeNode{}, ErrMissingTenant
	}
	if r.Artifact.Hash == "" {
		return graph.KnowledgeNode{}, ErrMissingHash
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return graph.KnowledgeNode{}, fmt.Errorf("marshaling capsule payload: %w", err)
	}
	policy, err := json.Marshal(r.Artifact.Policy)
	if err != nil {
		return graph.KnowledgeNode{}, fmt.Errorf("marshaling capsule policy: %w", err)
	}
	provenance, err := json.Marshal(r.Artifact.Provenance)
	if err != nil {
		return graph.KnowledgeNode{}, fmt.Errorf("marshaling capsule provenance: %w", err)
	}

	node := graph.NewNode(tenantID, NodeKind, payload)
	node.ID = NodeID(r.Key, r.Artifact.Hash)
	node.Policy = policy
	node.Provenance = provenance
	return node, nil
}

// FromNode derives the capsule view of a stored node. Missing fields are
// defaulted (one empty provenance record, the "default" tenant sentinel,
// the node identity as hash), and TTL/expiry are reconciled against the
// node's last update so both representations are always populated together.
// The remaining TTL is recomputed per call, never cached.
func FromNode(node *graph.KnowledgeNode) (*LookupResponse, error) {
	return fromNodeAt(node, time.Now().UTC())
}

func fromNodeAt(node *graph.KnowledgeNode, now time.Time) (*LookupResponse, error) {
	var req IngestRequest
	if err := json.Unmarshal(node.Payload, &req); err != nil {
		return nil, fmt.Errorf("knowledge node payload is not a capsule: %w", err)
	}

	req.Artifact.ensureDefaults()
	if req.Artifact.Policy.Tenant == "" {
		req.Artifact.Policy.Tenant = DefaultTenant
	}
	if req.Artifact.Hash == "" {
		req.Artifact.Hash = node.ID.String()
	}

	// TTL absent but expiry present: derive TTL against the node's last
	// update, clamped at zero.
	if req.Artifact.TTLSeconds == nil && req.ExpiresAt != nil {
		ttl := wholeSecondsFloor(req.ExpiresAt.Sub(node.UpdatedAt))
		req.Artifact.TTLSeconds = &ttl
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && req.Artifact.TTLSeconds != nil {
		exp := node.UpdatedAt.Add(time.Duration(*req.Artifact.TTLSeconds) * time.Second)
		expiresAt = &exp
	}

	var remaining *int64
	if expiresAt != nil {
		r := wholeSecondsFloor(expiresAt.Sub(now))
		remaining = &r
	}

	return &LookupResponse{
		Key:                 req.Key,
		Artifact:            req.Artifact,
		ExpiresAt:           expiresAt,
		TTLRemainingSeconds: remaining,
	}, nil
}

// wholeSecondsFloor truncates to whole seconds and clamps at zero.
func wholeSecondsFloor(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 0 {
		return 0
	}
	return s
}
