package capability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := DefaultRedisConfig()
	config.Addr = mr.Addr()

	store, err := NewRedisStore(config, nil, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return mr, store
}

func TestRedisStore_AgentRoundTrip(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("lightbulb-def")))

	got, err := store.GetAgent(ctx, "lightbulb-def")
	require.NoError(t, err)
	assert.Equal(t, "lightbulb-def", got.Name)
	assert.Equal(t, types.AgentTypeFactBase, got.Type)
	assert.Equal(t, "/query", got.IntentMap["define"])
	assert.False(t, got.RegisteredAt.IsZero())

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestRedisStore_GetAgent_NotFound(t *testing.T) {
	_, store := setupRedisStore(t)

	_, err := store.GetAgent(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestRedisStore_UpsertAgent_KeepsRegisteredAt(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	first, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)

	updated := testAgent("a1")
	updated.Endpoint = "http://localhost:6001"
	require.NoError(t, store.UpsertAgent(ctx, updated))

	got, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6001", got.Endpoint)
	assert.True(t, first.RegisteredAt.Equal(got.RegisteredAt))
}

func TestRedisStore_EdgeLifecycle(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	require.NoError(t, store.UpsertAgent(ctx, testAgent("a2")))

	err := store.UpsertEdge(ctx, "ghost", "lightbulb", "define", 0.5)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))

	require.NoError(t, store.UpsertEdge(ctx, "a1", "Lightbulb", "define", 0.4))
	require.NoError(t, store.UpsertEdge(ctx, "a2", "lightbulb", "define", 0.9))

	edges, err := store.FindEdges(ctx, "lightbulb", "define")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "a2", edges[0].AgentName)
	assert.Equal(t, "a1", edges[1].AgentName)

	// Overwrite updates in place, no duplicate edge.
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.95))
	edges, err = store.FindEdges(ctx, "lightbulb", "define")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "a1", edges[0].AgentName)
	assert.Equal(t, 0.95, edges[0].Weight)
}

func TestRedisStore_GetWeight(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	w, err := store.GetWeight(ctx, "a1", "lightbulb", "define")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeight, w)

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.65))

	w, err = store.GetWeight(ctx, "a1", "lightbulb", "define")
	require.NoError(t, err)
	assert.Equal(t, 0.65, w)
}

func TestRedisStore_TieBreakByRecency(t *testing.T) {
	_, store := setupRedisStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	require.NoError(t, store.UpsertAgent(ctx, testAgent("older")))
	require.NoError(t, store.UpsertAgent(ctx, testAgent("newer")))

	require.NoError(t, store.UpsertEdge(ctx, "older", "lightbulb", "define", 0.5))
	clock = base.Add(time.Minute)
	require.NoError(t, store.UpsertEdge(ctx, "newer", "lightbulb", "define", 0.5))

	edges, err := store.FindEdges(ctx, "lightbulb", "define")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "newer", edges[0].AgentName)
}

func TestRedisStore_FindEdges_Empty(t *testing.T) {
	_, store := setupRedisStore(t)

	edges, err := store.FindEdges(context.Background(), "unknown_widget", "define")
	require.NoError(t, err)
	assert.Empty(t, edges)
}
