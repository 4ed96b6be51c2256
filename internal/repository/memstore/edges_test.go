package memstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/repository"
)

func seedNode(t *testing.T, nodes *NodeStore, tenant uuid.UUID, title string) uuid.UUID {
	t.Helper()

	node := graph.NewNode(tenant, "document", json.RawMessage(`{"title":"`+title+`"}`))
	_, err := nodes.Upsert(context.Background(), tenant, node)
	require.NoError(t, err)
	return node.ID
}

func TestEdgeStore_Neighbors(t *testing.T) {
	t.Parallel()

	nodes := NewNodeStore()
	edges := NewEdgeStore(nodes)
	ctx := context.Background()
	tenant := uuid.New()

	src := seedNode(t, nodes, tenant, "src")
	cites := seedNode(t, nodes, tenant, "cites")
	mentions := seedNode(t, nodes, tenant, "mentions")

	require.NoError(t, edges.Link(ctx, tenant, src, cites, "CITES", 1.0, nil))
	time.Sleep(time.Millisecond)
	require.NoError(t, edges.Link(ctx, tenant, src, mentions, "MENTIONS", 0.5, nil))

	t.Run("all relations", func(t *testing.T) {
		got, err := edges.Neighbors(ctx, tenant, src, nil, 1, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, mentions, got[0].ID, "newest edge first")
		assert.Equal(t, cites, got[1].ID)
	})

	t.Run("filtered by relation", func(t *testing.T) {
		rel := "CITES"
		got, err := edges.Neighbors(ctx, tenant, src, &rel, 1, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, cites, got[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := edges.Neighbors(ctx, tenant, src, nil, 1, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("multi-hop rejected", func(t *testing.T) {
		_, err := edges.Neighbors(ctx, tenant, src, nil, 2, 10)
		assert.ErrorIs(t, err, repository.ErrUnsupportedHops)
	})

	t.Run("no edges", func(t *testing.T) {
		got, err := edges.Neighbors(ctx, tenant, mentions, nil, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEdgeStore_DanglingDestination(t *testing.T) {
	t.Parallel()

	nodes := NewNodeStore()
	edges := NewEdgeStore(nodes)
	ctx := context.Background()
	tenant := uuid.New()

	src := seedNode(t, nodes, tenant, "src")
	require.NoError(t, edges.Link(ctx, tenant, src, uuid.New(), "CITES", 1.0, nil))

	got, err := edges.Neighbors(ctx, tenant, src, nil, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "edges to unknown nodes hydrate to nothing")
}

func TestEmbeddingStore(t *testing.T) {
	t.Parallel()

	store := NewEmbeddingStore()
	ctx := context.Background()
	tenant := uuid.New()
	nodeID := uuid.New()

	require.NoError(t, store.UpsertEmbedding(ctx, tenant, graph.NodeEmbedding{
		NodeID: nodeID,
		Model:  "text-embedding-3-small",
		Dim:    2,
		Vec:    []float32{0.1, 0.2},
	}))
	require.NoError(t, store.UpsertEmbedding(ctx, tenant, graph.NodeEmbedding{
		NodeID: nodeID,
		Model:  "text-embedding-3-large",
		Dim:    2,
		Vec:    []float32{0.3, 0.4},
	}))

	// Same (node, model) replaces rather than appends.
	require.NoError(t, store.UpsertEmbedding(ctx, tenant, graph.NodeEmbedding{
		NodeID: nodeID,
		Model:  "text-embedding-3-small",
		Dim:    2,
		Vec:    []float32{0.9, 0.9},
	}))

	got, err := store.GetEmbeddings(ctx, tenant, nodeID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byModel := make(map[string][]float32, len(got))
	for _, emb := range got {
		byModel[emb.Model] = emb.Vec
	}
	assert.Equal(t, []float32{0.9, 0.9}, byModel["text-embedding-3-small"])
	assert.Equal(t, []float32{0.3, 0.4}, byModel["text-embedding-3-large"])

	t.Run("other tenant sees nothing", func(t *testing.T) {
		got, err := store.GetEmbeddings(ctx, uuid.New(), nodeID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
