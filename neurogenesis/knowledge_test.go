package neurogenesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

func testCorpus() *CorpusSource {
	return NewCorpusSource(map[string]CorpusEntry{
		"Lightbulb": {
			Definition:      "a device that produces light from electricity",
			Principles:      []string{"incandescence", "electrical resistance"},
			Applications:    []string{"illumination"},
			RelatedConcepts: []string{"filament", "electricity"},
			Sources:         []string{"corpus:physics", "corpus:engineering"},
		},
		"bare": {
			Definition: "an entry with no listed sources",
		},
	})
}

func TestCorpusSource_DiscoverSources(t *testing.T) {
	corpus := testCorpus()
	ctx := context.Background()

	sources, err := corpus.DiscoverSources(ctx, "  LIGHTBULB ")
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus:physics", "corpus:engineering"}, sources)

	// An entry without explicit sources still counts as one source.
	sources, err = corpus.DiscoverSources(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus"}, sources)

	sources, err = corpus.DiscoverSources(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestCorpusSource_Acquire(t *testing.T) {
	corpus := testCorpus()

	acq, err := corpus.Acquire(context.Background(), "Lightbulb", []string{"corpus:physics"})
	require.NoError(t, err)
	assert.Equal(t, "lightbulb", acq.Concept)
	assert.Equal(t, "a device that produces light from electricity", acq.Definition)
	assert.Equal(t, []string{"incandescence", "electrical resistance"}, acq.Principles)
	assert.Equal(t, []string{"corpus:physics"}, acq.Sources)

	_, err = corpus.Acquire(context.Background(), "unknown", nil)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestRateLimitedSource_PassesThrough(t *testing.T) {
	limited := NewRateLimitedSource(testCorpus(), rate.Limit(100), 1)

	sources, err := limited.DiscoverSources(context.Background(), "lightbulb")
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	acq, err := limited.Acquire(context.Background(), "lightbulb", sources)
	require.NoError(t, err)
	assert.Equal(t, "lightbulb", acq.Concept)
}

func TestRateLimitedSource_Throttles(t *testing.T) {
	// 10 lookups/s with burst 1: the second call waits roughly 100ms.
	limited := NewRateLimitedSource(testCorpus(), rate.Limit(10), 1)
	ctx := context.Background()

	_, err := limited.DiscoverSources(ctx, "lightbulb")
	require.NoError(t, err)

	start := time.Now()
	_, err = limited.DiscoverSources(ctx, "lightbulb")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimitedSource_CanceledWait(t *testing.T) {
	limited := NewRateLimitedSource(testCorpus(), rate.Limit(0.001), 1)
	ctx := context.Background()

	_, err := limited.DiscoverSources(ctx, "lightbulb")
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = limited.DiscoverSources(cctx, "lightbulb")
	require.Error(t, err)
	assert.True(t, types.IsTransport(err))
}
