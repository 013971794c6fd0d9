package capability

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any set of edge weights, FindEdges returns them sorted by
// weight descending, and every stored weight stays within [0,1] even when
// the written value was out of range.
func TestProperty_FindEdgesOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("edges come back sorted by descending weight", prop.ForAll(
		func(weights []float64) bool {
			ctx := context.Background()
			store := NewMemoryStore(nil, nil)

			for i, w := range weights {
				name := fmt.Sprintf("agent-%d", i)
				if err := store.UpsertAgent(ctx, testAgent(name)); err != nil {
					t.Logf("upsert agent failed: %v", err)
					return false
				}
				if err := store.UpsertEdge(ctx, name, "lightbulb", "define", w); err != nil {
					t.Logf("upsert edge failed: %v", err)
					return false
				}
			}

			edges, err := store.FindEdges(ctx, "lightbulb", "define")
			if err != nil {
				t.Logf("find edges failed: %v", err)
				return false
			}
			if len(edges) != len(weights) {
				t.Logf("expected %d edges, got %d", len(weights), len(edges))
				return false
			}

			for i, e := range edges {
				if e.Weight < MinWeight || e.Weight > MaxWeight {
					t.Logf("weight %f out of range", e.Weight)
					return false
				}
				if i > 0 && edges[i-1].Weight < e.Weight {
					t.Logf("edges not sorted at index %d", i)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-0.5, 1.5)),
	))

	properties.TestingRun(t)
}

// Property: GetWeight always agrees with the last UpsertEdge for the same
// key, modulo clamping.
func TestProperty_LastWriteWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("GetWeight returns the clamped last written value", prop.ForAll(
		func(writes []float64) bool {
			if len(writes) == 0 {
				return true
			}
			ctx := context.Background()
			store := NewMemoryStore(nil, nil)
			if err := store.UpsertAgent(ctx, testAgent("a1")); err != nil {
				return false
			}

			for _, w := range writes {
				if err := store.UpsertEdge(ctx, "a1", "lightbulb", "define", w); err != nil {
					return false
				}
			}

			got, err := store.GetWeight(ctx, "a1", "lightbulb", "define")
			if err != nil {
				return false
			}
			return got == ClampWeight(writes[len(writes)-1])
		},
		gen.SliceOf(gen.Float64Range(-1, 2)),
	))

	properties.TestingRun(t)
}
