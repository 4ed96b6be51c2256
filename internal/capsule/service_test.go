package capsule_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memophor/synagraph/internal/capsule"
	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/repository"
	"github.com/memophor/synagraph/internal/repository/memstore"
)

func newService(t *testing.T) (*capsule.Service, repository.Bundle) {
	t.Helper()

	repos := memstore.NewBundle()
	svc := capsule.NewService(repos, true, log.NewNop())
	return svc, repos
}

func ingestRequest(key, hash, tenant string) capsule.IngestRequest {
	return capsule.IngestRequest{
		Key: key,
		Artifact: capsule.Artifact{
			Answer: json.RawMessage(`"refunds within 30 days"`),
			Policy: capsule.Policy{Tenant: tenant},
			Hash:   hash,
		},
	}
}

// drain claims every pending outbox event.
func drain(t *testing.T, outbox repository.OutboxRepository) []graph.OutboxEvent {
	t.Helper()

	events, err := outbox.ClaimBatch(context.Background(), 100)
	require.NoError(t, err)
	return events
}

func TestService_Ingest_NewKeyEmitsUpsert(t *testing.T) {
	t.Parallel()

	svc, repos := newService(t)
	tenant := uuid.New()

	result, err := svc.Ingest(context.Background(), tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)

	assert.Equal(t, repository.Created, result.Outcome)
	assert.Equal(t, "faq:refund", result.Key)
	assert.Equal(t, "sha256:abc", result.Hash)
	assert.False(t, result.Superseded)

	events := drain(t, repos.Outbox)
	require.Len(t, events, 1)
	assert.Equal(t, graph.OutboxUpsert, events[0].Kind)
	assert.Equal(t, tenant, events[0].TenantID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "faq:refund", payload["key"])
	assert.Equal(t, "sha256:abc", payload["hash"])
	assert.Equal(t, "acme", payload["tenant"])
}

func TestService_Ingest_ChangedHashSupersedes(t *testing.T) {
	t.Parallel()

	svc, repos := newService(t)
	tenant := uuid.New()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:old", "acme"))
	require.NoError(t, err)
	drain(t, repos.Outbox)

	result, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:new", "acme"))
	require.NoError(t, err)
	assert.True(t, result.Superseded)

	events := drain(t, repos.Outbox)
	require.Len(t, events, 1, "supersession emits exactly one event")
	assert.Equal(t, graph.OutboxSupersededBy, events[0].Kind)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "sha256:old", payload["old_hash"])
	assert.Equal(t, "sha256:new", payload["new_hash"])
	assert.Equal(t, "faq:refund", payload["key"])

	// The lookup now serves the new content.
	resp, err := svc.Lookup(ctx, tenant, "faq:refund", nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "sha256:new", resp.Artifact.Hash)
}

func TestService_Ingest_UnchangedHashIsSilent(t *testing.T) {
	t.Parallel()

	svc, repos := newService(t)
	tenant := uuid.New()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)
	drain(t, repos.Outbox)

	result, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)

	assert.Equal(t, repository.Updated, result.Outcome)
	assert.False(t, result.Superseded)
	assert.Empty(t, drain(t, repos.Outbox), "re-ingest of identical content emits nothing")
}

func TestService_Ingest_EventsDisabled(t *testing.T) {
	t.Parallel()

	repos := memstore.NewBundle()
	svc := capsule.NewService(repos, false, log.NewNop())
	tenant := uuid.New()

	_, err := svc.Ingest(context.Background(), tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)

	assert.Empty(t, drain(t, repos.Outbox))
}

func TestService_Ingest_ValidationErrors(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	tenant := uuid.New()

	_, err := svc.Ingest(context.Background(), tenant, ingestRequest("faq:refund", "", "acme"))
	assert.ErrorIs(t, err, capsule.ErrMissingHash)

	_, err = svc.Ingest(context.Background(), tenant, ingestRequest("faq:refund", "sha256:abc", ""))
	assert.ErrorIs(t, err, capsule.ErrMissingTenant)
}

func TestService_Lookup(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	tenant := uuid.New()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)

	t.Run("hit", func(t *testing.T) {
		resp, err := svc.Lookup(ctx, tenant, "faq:refund", nil)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "faq:refund", resp.Key)
	})

	t.Run("miss on unknown key", func(t *testing.T) {
		resp, err := svc.Lookup(ctx, tenant, "faq:unknown", nil)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("matching slug", func(t *testing.T) {
		slug := "acme"
		resp, err := svc.Lookup(ctx, tenant, "faq:refund", &slug)
		require.NoError(t, err)
		assert.NotNil(t, resp)
	})

	t.Run("slug mismatch is a miss", func(t *testing.T) {
		slug := "globex"
		resp, err := svc.Lookup(ctx, tenant, "faq:refund", &slug)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestService_Purge(t *testing.T) {
	t.Parallel()

	svc, repos := newService(t)
	tenant := uuid.New()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, tenant, ingestRequest("faq:refund", "sha256:abc", "acme"))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, tenant, ingestRequest("faq:shipping", "sha256:def", "acme"))
	require.NoError(t, err)
	drain(t, repos.Outbox)

	result, err := svc.Purge(ctx, tenant, []string{"faq:refund", "faq:missing", "", "faq:shipping"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Purged)
	assert.ElementsMatch(t, []string{"sha256:abc", "sha256:def"}, result.RevokedHashes)

	events := drain(t, repos.Outbox)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, graph.OutboxRevokeCapsule, event.Kind)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Contains(t, []string{"faq:refund", "faq:shipping"}, payload["capsule_id"])
		assert.NotEmpty(t, payload["hash"])
	}

	resp, err := svc.Lookup(ctx, tenant, "faq:refund", nil)
	require.NoError(t, err)
	assert.Nil(t, resp, "purged capsule no longer resolves")
}

func TestService_Purge_EmptyKeys(t *testing.T) {
	t.Parallel()

	svc, repos := newService(t)

	result, err := svc.Purge(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Purged)
	assert.NotNil(t, result.RevokedHashes, "revoked list serializes as [], not null")
	assert.Empty(t, drain(t, repos.Outbox))
}
