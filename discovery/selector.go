// Package discovery ranks and selects the best-fitting agent for a
// (concept, intent) query from the capability graph. A hit below the
// confidence threshold is reported exactly like a miss: unreliable agents
// must trigger graph expansion, never be silently preferred.
package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Config holds discovery configuration.
type Config struct {
	// MinConfidence is the admission threshold: the best edge must carry
	// at least this weight to count as a hit.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{MinConfidence: 0.3}
}

// Selection is the outcome of one agent lookup.
type Selection struct {
	// Miss is true when no edge met the confidence threshold. A miss is
	// the trigger for neurogenesis, not an error.
	Miss bool

	// Agent and Edge are set on a hit.
	Agent *types.Agent
	Edge  *capability.Edge

	// Known is true when at least one edge exists for the pair, even if
	// below threshold. Distinguishes "never seen" from "known but
	// unreliable".
	Known bool

	// BestWeight is the best weight found, threshold or not. Zero when
	// the pair has never been seen.
	BestWeight float64

	// Concept is the normalized concept the selection was made for.
	Concept string

	// Intent echoes the requested intent.
	Intent string
}

// Selector picks agents from the capability store.
type Selector struct {
	store  capability.Store
	config Config
	logger *zap.Logger
}

// NewSelector creates a Selector on top of the given store.
func NewSelector(store capability.Store, config Config, logger *zap.Logger) *Selector {
	if config.MinConfidence <= 0 {
		config.MinConfidence = DefaultConfig().MinConfidence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// Select finds the best agent for (concept, intent). minConfidence
// overrides the configured threshold when positive. Candidates are walked
// in ranked order; edges pointing at inactive or missing agents are
// skipped so discovery never hands out a dead endpoint.
func (s *Selector) Select(ctx context.Context, concept, intent string, minConfidence float64) (*Selection, error) {
	concept = types.NormalizeConcept(concept)
	if minConfidence <= 0 {
		minConfidence = s.config.MinConfidence
	}

	sel := &Selection{Miss: true, Concept: concept, Intent: intent}

	edges, err := s.store.FindEdges(ctx, concept, intent)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		s.logger.Debug("selection miss: no edges",
			zap.String("concept", concept),
			zap.String("intent", intent),
		)
		return sel, nil
	}

	sel.Known = true
	sel.BestWeight = edges[0].Weight

	for i := range edges {
		edge := edges[i]
		if edge.Weight < minConfidence {
			// Edges are sorted, nothing further can pass the threshold.
			break
		}
		agent, err := s.store.GetAgent(ctx, edge.AgentName)
		if err != nil {
			if types.IsNotFound(err) {
				s.logger.Warn("edge references missing agent",
					zap.String("agent", edge.AgentName),
					zap.String("concept", concept),
				)
				continue
			}
			return nil, err
		}
		if agent.Inactive {
			continue
		}

		sel.Miss = false
		sel.Agent = agent
		sel.Edge = &edge
		s.logger.Debug("selection hit",
			zap.String("agent", agent.Name),
			zap.String("concept", concept),
			zap.String("intent", intent),
			zap.Float64("weight", edge.Weight),
		)
		return sel, nil
	}

	s.logger.Debug("selection miss: below confidence",
		zap.String("concept", concept),
		zap.String("intent", intent),
		zap.Float64("best_weight", sel.BestWeight),
		zap.Float64("min_confidence", minConfidence),
	)
	return sel, nil
}
