package neurogenesis

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// KnowledgeAcquisition is the synthesized knowledge for one concept. It is
// owned by the session that produced it; on a successful expansion its
// facts are folded into the new edge and the artifact is discarded.
type KnowledgeAcquisition struct {
	Concept         string    `json:"concept"`
	Definition      string    `json:"definition"`
	Principles      []string  `json:"principles,omitempty"`
	Applications    []string  `json:"applications,omitempty"`
	RelatedConcepts []string  `json:"related_concepts,omitempty"`
	Confidence      float64   `json:"confidence"`
	Sources         []string  `json:"sources"`
	Timestamp       time.Time `json:"timestamp"`
}

// KnowledgeSource is the external collaborator the research phase consults.
type KnowledgeSource interface {
	// DiscoverSources returns identifiers of sources that cover the
	// concept. An empty slice is a normal answer, not an error.
	DiscoverSources(ctx context.Context, concept string) ([]string, error)

	// Acquire folds the given sources into a knowledge artifact. The
	// controller computes the final confidence; implementations may leave
	// it zero.
	Acquire(ctx context.Context, concept string, sources []string) (*KnowledgeAcquisition, error)
}

// CorpusEntry is one concept's worth of knowledge in a static corpus.
type CorpusEntry struct {
	Definition      string   `yaml:"definition" json:"definition"`
	Principles      []string `yaml:"principles" json:"principles"`
	Applications    []string `yaml:"applications" json:"applications"`
	RelatedConcepts []string `yaml:"related_concepts" json:"related_concepts"`
	Sources         []string `yaml:"sources" json:"sources"`
}

// CorpusSource serves knowledge from an in-memory corpus. It is the
// embedded default and the test double for remote sources.
type CorpusSource struct {
	entries map[string]CorpusEntry
}

// NewCorpusSource builds a CorpusSource. Concept keys are normalized.
func NewCorpusSource(entries map[string]CorpusEntry) *CorpusSource {
	normalized := make(map[string]CorpusEntry, len(entries))
	for concept, entry := range entries {
		normalized[types.NormalizeConcept(concept)] = entry
	}
	return &CorpusSource{entries: normalized}
}

// DiscoverSources implements KnowledgeSource.
func (s *CorpusSource) DiscoverSources(ctx context.Context, concept string) ([]string, error) {
	entry, ok := s.entries[types.NormalizeConcept(concept)]
	if !ok {
		return nil, nil
	}
	if len(entry.Sources) == 0 {
		return []string{"corpus"}, nil
	}
	return entry.Sources, nil
}

// Acquire implements KnowledgeSource.
func (s *CorpusSource) Acquire(ctx context.Context, concept string, sources []string) (*KnowledgeAcquisition, error) {
	normalized := types.NormalizeConcept(concept)
	entry, ok := s.entries[normalized]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "concept %q not in corpus", normalized)
	}
	return &KnowledgeAcquisition{
		Concept:         normalized,
		Definition:      entry.Definition,
		Principles:      entry.Principles,
		Applications:    entry.Applications,
		RelatedConcepts: entry.RelatedConcepts,
		Sources:         sources,
	}, nil
}

var _ KnowledgeSource = (*CorpusSource)(nil)

// RateLimitedSource wraps a KnowledgeSource with a token-bucket limiter so
// expansion bursts cannot hammer an external source.
type RateLimitedSource struct {
	inner   KnowledgeSource
	limiter *rate.Limiter
}

// NewRateLimitedSource wraps src, allowing limit lookups per second with
// the given burst.
func NewRateLimitedSource(src KnowledgeSource, limit rate.Limit, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		inner:   src,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// DiscoverSources implements KnowledgeSource.
func (s *RateLimitedSource) DiscoverSources(ctx context.Context, concept string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrTransport, "source lookup canceled").WithCause(err)
	}
	return s.inner.DiscoverSources(ctx, concept)
}

// Acquire implements KnowledgeSource.
func (s *RateLimitedSource) Acquire(ctx context.Context, concept string, sources []string) (*KnowledgeAcquisition, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrTransport, "source acquire canceled").WithCause(err)
	}
	return s.inner.Acquire(ctx, concept, sources)
}

var _ KnowledgeSource = (*RateLimitedSource)(nil)
