package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memophor/synagraph/internal/graph"
)

func TestOutbox_EnqueueClaim(t *testing.T) {
	t.Parallel()

	outbox := NewOutbox()
	ctx := context.Background()
	tenant := uuid.New()

	id1, err := outbox.Enqueue(ctx, tenant, graph.OutboxUpsert, json.RawMessage(`{"key":"a"}`))
	require.NoError(t, err)
	id2, err := outbox.Enqueue(ctx, tenant, graph.OutboxSupersededBy, json.RawMessage(`{"key":"b"}`))
	require.NoError(t, err)
	assert.Greater(t, id2, id1, "identities are sequential")
	assert.Equal(t, 2, outbox.Pending())

	claimed, err := outbox.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id1, claimed[0].ID, "oldest event is claimed first")
	require.NotNil(t, claimed[0].PublishedAt)
	assert.Equal(t, 1, outbox.Pending())

	claimed, err = outbox.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id2, claimed[0].ID)
	assert.Equal(t, 0, outbox.Pending())

	claimed, err = outbox.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "published events are terminal")
}

func TestOutbox_ConcurrentClaimers(t *testing.T) {
	t.Parallel()

	outbox := NewOutbox()
	ctx := context.Background()
	tenant := uuid.New()

	const total = 100
	for range total {
		_, err := outbox.Enqueue(ctx, tenant, graph.OutboxUpsert, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	const claimers = 8
	results := make(chan []graph.OutboxEvent, claimers)
	var wg sync.WaitGroup
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				events, err := outbox.ClaimBatch(ctx, 7)
				assert.NoError(t, err)
				if len(events) == 0 {
					return
				}
				results <- events
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for batch := range results {
		for _, event := range batch {
			assert.False(t, seen[event.ID], "event %d claimed twice", event.ID)
			seen[event.ID] = true
		}
	}
	assert.Len(t, seen, total, "every event claimed exactly once")
}

func TestOutbox_MarkPublishedIdempotent(t *testing.T) {
	t.Parallel()

	outbox := NewOutbox()
	ctx := context.Background()

	id, err := outbox.Enqueue(ctx, uuid.New(), graph.OutboxRevokeCapsule, json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = outbox.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, outbox.MarkPublished(ctx, []int64{id}))
	require.NoError(t, outbox.MarkPublished(ctx, []int64{id}))
	assert.Equal(t, 0, outbox.Pending())
}
