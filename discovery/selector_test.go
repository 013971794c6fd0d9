package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

func setupSelector(t *testing.T) (*Selector, *capability.MemoryStore) {
	t.Helper()
	store := capability.NewMemoryStore(nil, nil)
	return NewSelector(store, DefaultConfig(), zap.NewNop()), store
}

func addAgent(t *testing.T, store capability.Store, name string, inactive bool) {
	t.Helper()
	err := store.UpsertAgent(context.Background(), &types.Agent{
		Name:      name,
		Endpoint:  "http://localhost:5001",
		Type:      types.AgentTypeFactBase,
		IntentMap: map[string]string{"define": "/query"},
		Inactive:  inactive,
	})
	require.NoError(t, err)
}

func TestSelector_Hit(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "weak", false)
	addAgent(t, store, "strong", false)
	require.NoError(t, store.UpsertEdge(ctx, "weak", "lightbulb", "define", 0.4))
	require.NoError(t, store.UpsertEdge(ctx, "strong", "lightbulb", "define", 0.9))

	sel, err := selector.Select(ctx, "lightbulb", "define", 0.3)
	require.NoError(t, err)

	assert.False(t, sel.Miss)
	require.NotNil(t, sel.Agent)
	assert.Equal(t, "strong", sel.Agent.Name)
	assert.Equal(t, 0.9, sel.Edge.Weight)
	assert.True(t, sel.Known)
	assert.Equal(t, 0.9, sel.BestWeight)
}

func TestSelector_MissNoEdges(t *testing.T) {
	selector, _ := setupSelector(t)

	sel, err := selector.Select(context.Background(), "unknown_widget", "define", 0.3)
	require.NoError(t, err)

	assert.True(t, sel.Miss)
	assert.False(t, sel.Known)
	assert.Zero(t, sel.BestWeight)
	assert.Nil(t, sel.Agent)
}

func TestSelector_MissBelowConfidence(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "unreliable", false)
	require.NoError(t, store.UpsertEdge(ctx, "unreliable", "lightbulb", "define", 0.2))

	sel, err := selector.Select(ctx, "lightbulb", "define", 0.3)
	require.NoError(t, err)

	// A low-confidence hit looks exactly like a miss to the caller.
	assert.True(t, sel.Miss)
	assert.Nil(t, sel.Agent)
	// But the best-known weight records that we have seen this pair.
	assert.True(t, sel.Known)
	assert.Equal(t, 0.2, sel.BestWeight)
}

func TestSelector_NormalizesConcept(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "a1", false)
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.8))

	sel, err := selector.Select(ctx, "  LightBulb ", "define", 0.3)
	require.NoError(t, err)

	assert.False(t, sel.Miss)
	assert.Equal(t, "lightbulb", sel.Concept)
}

func TestSelector_IntentMustMatch(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "a1", false)
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.9))

	sel, err := selector.Select(ctx, "lightbulb", "explain", 0.3)
	require.NoError(t, err)
	assert.True(t, sel.Miss)
	assert.False(t, sel.Known)
}

func TestSelector_SkipsInactiveAgents(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "retired", true)
	addAgent(t, store, "active", false)
	require.NoError(t, store.UpsertEdge(ctx, "retired", "lightbulb", "define", 0.9))
	require.NoError(t, store.UpsertEdge(ctx, "active", "lightbulb", "define", 0.6))

	sel, err := selector.Select(ctx, "lightbulb", "define", 0.3)
	require.NoError(t, err)

	assert.False(t, sel.Miss)
	assert.Equal(t, "active", sel.Agent.Name)
}

func TestSelector_AllCandidatesInactive(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "retired", true)
	require.NoError(t, store.UpsertEdge(ctx, "retired", "lightbulb", "define", 0.9))

	sel, err := selector.Select(ctx, "lightbulb", "define", 0.3)
	require.NoError(t, err)
	assert.True(t, sel.Miss)
	assert.True(t, sel.Known)
}

func TestSelector_DefaultThreshold(t *testing.T) {
	selector, store := setupSelector(t)
	ctx := context.Background()

	addAgent(t, store, "a1", false)
	require.NoError(t, store.UpsertEdge(ctx, "a1", "lightbulb", "define", 0.35))

	// Zero threshold falls back to the configured 0.3 default.
	sel, err := selector.Select(ctx, "lightbulb", "define", 0)
	require.NoError(t, err)
	assert.False(t, sel.Miss)
}
