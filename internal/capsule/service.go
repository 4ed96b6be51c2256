package capsule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

// Service owns the capsule ingest/lookup/purge flow: translation, storage,
// supersession detection, and outbox eventing. Transport adapters call it
// and stay thin.
//
// Event emission is best-effort relative to storage: a write that succeeds
// but whose event enqueue fails is logged and the write stands. The storage
// mutation is the source of truth; downstream consumers must be idempotent.
type Service struct {
	repos         repository.Bundle
	eventsEnabled bool
	logger        *slog.Logger
}

// NewService creates a capsule service over the repository bundle.
// eventsEnabled gates all outbox emission.
func NewService(repos repository.Bundle, eventsEnabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, eventsEnabled: eventsEnabled, logger: logger}
}

// IngestResult reports the storage outcome of one capsule ingest.
type IngestResult struct {
	Outcome    repository.UpsertOutcome
	Key        string
	Hash       string
	Superseded bool
}

// Ingest validates and stores a capsule. If a capsule already exists at the
// same key with a different hash, the ingest is a supersession and emits
// exactly one SUPERSEDED_BY event; a brand-new key emits exactly one UPSERT
// event; re-ingesting unchanged content is a silent idempotent update.
func (s *Service) Ingest(ctx context.Context, tenant uuid.UUID, req IngestRequest) (IngestResult, error) {
	node, err := req.Node(tenant)
	if err != nil {
		return IngestResult{}, err
	}

	existing, err := s.repos.Nodes.GetByKey(ctx, tenant, req.Key)
	if err != nil {
		return IngestResult{}, fmt.Errorf("reading existing capsule %q: %w", req.Key, err)
	}

	var previous *LookupResponse
	if existing != nil {
		if prev, prevErr := FromNode(existing); prevErr == nil {
			previous = prev
		}
	}

	outcome, err := s.repos.Nodes.Upsert(ctx, tenant, node)
	if err != nil {
		return IngestResult{}, fmt.Errorf("storing capsule %q: %w", req.Key, err)
	}

	result := IngestResult{Outcome: outcome, Key: req.Key, Hash: req.Artifact.Hash}

	if ttl := req.Artifact.TTLSeconds; ttl != nil {
		// Cache writes are placeholders; failures never surface.
		if cacheErr := s.repos.Cache.Set(ctx, tenant, req.Key, node.Payload, *ttl); cacheErr != nil {
			s.logger.Debug("capsule cache set failed", "key", req.Key, "error", cacheErr)
		}
	}

	switch {
	case previous != nil && previous.Artifact.Hash != req.Artifact.Hash:
		result.Superseded = true
		s.emit(ctx, tenant, graph.OutboxSupersededBy, map[string]any{
			"tenant":   req.Artifact.Policy.Tenant,
			"key":      req.Key,
			"old_hash": previous.Artifact.Hash,
			"new_hash": req.Artifact.Hash,
		})
	case previous == nil:
		s.emit(ctx, tenant, graph.OutboxUpsert, map[string]any{
			"tenant": req.Artifact.Policy.Tenant,
			"key":    req.Key,
			"hash":   req.Artifact.Hash,
		})
	}

	return result, nil
}

// Lookup returns the capsule stored under key, or nil on a miss. When the
// caller supplied a tenant slug at the boundary, a stored capsule whose
// policy tenant disagrees is treated as a miss, not an error.
func (s *Service) Lookup(ctx context.Context, tenant uuid.UUID, key string, expectedSlug *string) (*LookupResponse, error) {
	node, err := s.repos.Nodes.GetByKey(ctx, tenant, key)
	if err != nil {
		return nil, fmt.Errorf("fetching capsule %q: %w", key, err)
	}
	if node == nil {
		return nil, nil
	}

	resp, err := FromNode(node)
	if err != nil {
		return nil, err
	}
	if expectedSlug != nil && resp.Artifact.Policy.Tenant != *expectedSlug {
		return nil, nil
	}
	return resp, nil
}

// PurgeResult reports how many capsules one purge removed and which content
// hashes were revoked.
type PurgeResult struct {
	Purged        int      `json:"purged"`
	RevokedHashes []string `json:"revoked_hashes"`
}

// Purge deletes the capsules stored under the given keys and emits one
// REVOKE_CAPSULE event per removed capsule. Missing keys are skipped.
func (s *Service) Purge(ctx context.Context, tenant uuid.UUID, keys []string) (PurgeResult, error) {
	result := PurgeResult{RevokedHashes: []string{}}

	for _, key := range keys {
		if key == "" {
			continue
		}
		node, err := s.repos.Nodes.DeleteByKey(ctx, tenant, key)
		if err != nil {
			return result, fmt.Errorf("purging capsule %q: %w", key, err)
		}
		if node == nil {
			continue
		}
		result.Purged++

		if cacheErr := s.repos.Cache.Purge(ctx, tenant, key); cacheErr != nil {
			s.logger.Debug("capsule cache purge failed", "key", key, "error", cacheErr)
		}

		resp, err := FromNode(node)
		if err != nil {
			s.logger.Warn("purged node is not a capsule, skipping revoke event", "key", key, "error", err)
			continue
		}
		result.RevokedHashes = append(result.RevokedHashes, resp.Artifact.Hash)
		s.emit(ctx, tenant, graph.OutboxRevokeCapsule, map[string]any{
			"tenant":     resp.Artifact.Policy.Tenant,
			"capsule_id": resp.Key,
			"hash":       resp.Artifact.Hash,
		})
	}

	return result, nil
}

// emit enqueues an outbox event. Failures are logged, never propagated: the
// storage mutation that triggered the event already committed.
func (s *Service) emit(ctx context.Context, tenant uuid.UUID, kind graph.OutboxKind, payload map[string]any) {
	if !s.eventsEnabled {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshaling outbox payload", "kind", kind, "error", err)
		return
	}
	if _, err := s.repos.Outbox.Enqueue(ctx, tenant, kind, raw); err != nil {
		s.logger.Error("enqueueing outbox event", "kind", kind, "error", err)
	}
}
