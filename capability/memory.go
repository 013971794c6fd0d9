package capability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// MemoryStore is an in-memory Store backed by maps. It is the embedded
// backend used by tests and single-process deployments.
type MemoryStore struct {
	mu sync.RWMutex

	// agents stores registered agents by name.
	agents map[string]*types.Agent

	// edges indexes edges by concept -> intent -> agent name.
	edges map[string]map[string]map[string]*Edge

	intents *IntentSet
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryStore creates an in-memory capability store. A nil intent set
// falls back to the default allow-list.
func NewMemoryStore(intents *IntentSet, logger *zap.Logger) *MemoryStore {
	if intents == nil {
		intents = NewIntentSet(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		agents:  make(map[string]*types.Agent),
		edges:   make(map[string]map[string]map[string]*Edge),
		intents: intents,
		logger:  logger.With(zap.String("component", "memory_store")),
		now:     time.Now,
	}
}

// UpsertAgent implements Store.
func (s *MemoryStore) UpsertAgent(ctx context.Context, agent *types.Agent) error {
	if err := validateAgent(agent, s.intents); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyAgent(agent)
	if existing, ok := s.agents[agent.Name]; ok {
		stored.RegisteredAt = existing.RegisteredAt
	} else if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = s.now().UTC()
	}
	s.agents[agent.Name] = stored

	s.logger.Debug("agent upserted",
		zap.String("agent", agent.Name),
		zap.String("type", string(agent.Type)),
	)
	return nil
}

// GetAgent implements Store.
func (s *MemoryStore) GetAgent(ctx context.Context, name string) (*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[name]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "agent %s not found", name)
	}
	return copyAgent(agent), nil
}

// ListAgents implements Store.
func (s *MemoryStore) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]*types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, copyAgent(a))
	}
	return agents, nil
}

// UpsertEdge implements Store.
func (s *MemoryStore) UpsertEdge(ctx context.Context, agentName, concept, intent string, weight float64) error {
	concept = types.NormalizeConcept(concept)
	if err := validateEdgeKey(agentName, concept, intent, s.intents); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[agentName]; !ok {
		return types.NewErrorf(types.ErrNotFound, "agent %s not found", agentName)
	}

	byIntent, ok := s.edges[concept]
	if !ok {
		byIntent = make(map[string]map[string]*Edge)
		s.edges[concept] = byIntent
	}
	byAgent, ok := byIntent[intent]
	if !ok {
		byAgent = make(map[string]*Edge)
		byIntent[intent] = byAgent
	}

	byAgent[agentName] = &Edge{
		AgentName:   agentName,
		Concept:     concept,
		Intent:      intent,
		Weight:      ClampWeight(weight),
		LastUpdated: s.now().UTC(),
	}

	s.logger.Debug("edge upserted",
		zap.String("agent", agentName),
		zap.String("concept", concept),
		zap.String("intent", intent),
		zap.Float64("weight", ClampWeight(weight)),
	)
	return nil
}

// FindEdges implements Store.
func (s *MemoryStore) FindEdges(ctx context.Context, concept, intent string) ([]Edge, error) {
	concept = types.NormalizeConcept(concept)

	s.mu.RLock()
	defer s.mu.RUnlock()

	byAgent := s.edges[concept][intent]
	edges := make([]Edge, 0, len(byAgent))
	for _, e := range byAgent {
		edges = append(edges, *e)
	}
	sortEdges(edges)
	return edges, nil
}

// GetWeight implements Store.
func (s *MemoryStore) GetWeight(ctx context.Context, agentName, concept, intent string) (float64, error) {
	concept = types.NormalizeConcept(concept)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.edges[concept][intent][agentName]; ok {
		return e.Weight, nil
	}
	return DefaultWeight, nil
}

// Close implements Store. It is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

func copyAgent(a *types.Agent) *types.Agent {
	cp := *a
	if a.IntentMap != nil {
		cp.IntentMap = make(map[string]string, len(a.IntentMap))
		for k, v := range a.IntentMap {
			cp.IntentMap[k] = v
		}
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
