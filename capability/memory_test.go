package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

func testAgent(name string) *types.Agent {
	return &types.Agent{
		Name:      name,
		Endpoint:  "http://localhost:5001",
		Type:      types.AgentTypeFactBase,
		IntentMap: map[string]string{"define": "/query", "explain": "/query"},
	}
}

func TestMemoryStore_UpsertAgent_Validation(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		agent *types.Agent
	}{
		{name: "nil agent", agent: nil},
		{name: "missing endpoint", agent: &types.Agent{
			Name: "a1", Type: types.AgentTypeFactBase,
			IntentMap: map[string]string{"define": "/query"},
		}},
		{name: "missing intent map", agent: &types.Agent{
			Name: "a1", Endpoint: "http://localhost:5001", Type: types.AgentTypeFactBase,
		}},
		{name: "unknown agent type", agent: &types.Agent{
			Name: "a1", Endpoint: "http://localhost:5001", Type: "Oracle",
			IntentMap: map[string]string{"define": "/query"},
		}},
		{name: "disallowed intent", agent: &types.Agent{
			Name: "a1", Endpoint: "http://localhost:5001", Type: types.AgentTypeFactBase,
			IntentMap: map[string]string{"drop table": "/query"},
		}},
		{name: "unsafe name", agent: &types.Agent{
			Name: "a1:b", Endpoint: "http://localhost:5001", Type: types.AgentTypeFactBase,
			IntentMap: map[string]string{"define": "/query"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.UpsertAgent(ctx, tt.agent)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err), "expected VALIDATION, got %v", err)
		})
	}
}

func TestMemoryStore_UpsertAgent_Idempotent(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("lightbulb-def")))
	first, err := store.GetAgent(ctx, "lightbulb-def")
	require.NoError(t, err)

	// Second registration updates rather than duplicates, and keeps the
	// original registration time.
	updated := testAgent("lightbulb-def")
	updated.Endpoint = "http://localhost:5002"
	require.NoError(t, store.UpsertAgent(ctx, updated))

	got, err := store.GetAgent(ctx, "lightbulb-def")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5002", got.Endpoint)
	assert.Equal(t, first.RegisteredAt, got.RegisteredAt)

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestMemoryStore_GetAgent_NotFound(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	_, err := store.GetAgent(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestMemoryStore_UpsertEdge_UnknownAgent(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	err := store.UpsertEdge(context.Background(), "ghost", "lightbulb", "define", 0.5)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestMemoryStore_UpsertEdge_ClampsWeight(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()
	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))

	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 1.7))
	w, err := store.GetWeight(ctx, "a1", "lightbulb", "define")
	require.NoError(t, err)
	assert.Equal(t, 1.0, w)

	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", -0.2))
	w, err = store.GetWeight(ctx, "a1", "lightbulb", "define")
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)
}

func TestMemoryStore_GetWeight_DefaultWhenAbsent(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	w, err := store.GetWeight(context.Background(), "anyone", "lightbulb", "define")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeight, w)
}

func TestMemoryStore_FindEdges_Ordering(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	for _, name := range []string{"a1", "a2", "a3"} {
		require.NoError(t, store.UpsertAgent(ctx, testAgent(name)))
	}

	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.4))
	require.NoError(t, store.UpsertEdge(ctx, "a2", "lightbulb", "define", 0.9))
	require.NoError(t, store.UpsertEdge(ctx, "a3", "lightbulb", "define", 0.6))

	edges, err := store.FindEdges(ctx, "lightbulb", "define")
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, "a2", edges[0].AgentName)
	assert.Equal(t, "a3", edges[1].AgentName)
	assert.Equal(t, "a1", edges[2].AgentName)
}

func TestMemoryStore_FindEdges_TieBreakByRecency(t *testing.T) {
	store := NewMemoryStore(nil, nil)
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

	// The most recently reinforced edge wins the tie.
	assert.Equal(t, "newer", edges[0].AgentName)
	assert.Equal(t, "older", edges[1].AgentName)
}

func TestMemoryStore_FindEdges_IntentScoped(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.8))

	// An edge never leaks into a different intent.
	edges, err := store.FindEdges(ctx, "lightbulb", "explain")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMemoryStore_ConceptNormalization(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	require.NoError(t, store.UpsertEdge(ctx, "a1", "  LightBulb ", "define", 0.7))

	edges, err := store.FindEdges(ctx, "lightbulb", "define")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "lightbulb", edges[0].Concept)

	w, err := store.GetWeight(ctx, "a1", "LIGHTBULB", "define")
	require.NoError(t, err)
	assert.Equal(t, 0.7, w)
}

func TestMemoryStore_MultiWordConcept(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	require.NoError(t, store.UpsertAgent(ctx, testAgent("a1")))
	require.NoError(t, store.UpsertEdge(ctx, "a1", "Compound Interest", "calculate", 0.7))

	// Either spelling resolves to the same edge.
	edges, err := store.FindEdges(ctx, "compound_interest", "calculate")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "compound_interest", edges[0].Concept)

	w, err := store.GetWeight(ctx, "a1", "compound interest", "calculate")
	require.NoError(t, err)
	assert.Equal(t, 0.7, w)
}

func TestMemoryStore_FindEdges_EmptyNotError(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	edges, err := store.FindEdges(context.Background(), "unknown_widget", "define")
	require.NoError(t, err)
	assert.Empty(t, edges)
}
