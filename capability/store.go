package capability

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

const (
	// DefaultWeight is the weight reported for an absent edge. It means
	// "no prior evidence", not failure.
	DefaultWeight = 0.5

	// MinWeight and MaxWeight bound every stored edge weight.
	MinWeight = 0.0
	MaxWeight = 1.0
)

// DefaultIntents is the built-in intent allow-list. Intents outside the
// allow-list are rejected before reaching any backend.
var DefaultIntents = []string{
	"define",
	"explain",
	"calculate",
	"analyze",
	"summarize",
	"compare",
}

// nameRe restricts agent and concept names to a charset that is safe to
// embed in any backend key or label.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]*$`)

// Edge is one directed HandlesConcept relation from an agent to a concept,
// scoped to a single intent. At most one edge exists per
// (agent, concept, intent) triple.
type Edge struct {
	// AgentName is the owning agent.
	AgentName string `json:"agent_name"`

	// Concept is the normalized concept name.
	Concept string `json:"concept"`

	// Intent is the intent this edge authorizes.
	Intent string `json:"intent"`

	// Weight is the routing confidence, always in [0,1].
	Weight float64 `json:"weight"`

	// LastUpdated is when the weight was last written (UTC).
	LastUpdated time.Time `json:"last_updated"`
}

// Store is the query/write surface of the capability graph. Implementations
// must provide single-edge atomicity: one UpsertEdge call is one atomic
// write on one (agent, concept, intent) key. No cross-edge transactions are
// offered or needed.
type Store interface {
	// UpsertAgent idempotently creates or updates an agent by name.
	// Returns a VALIDATION error when the endpoint or intent map is missing.
	UpsertAgent(ctx context.Context, agent *types.Agent) error

	// GetAgent returns the agent with the given name, or NOT_FOUND.
	GetAgent(ctx context.Context, name string) (*types.Agent, error)

	// ListAgents returns all registered agents.
	ListAgents(ctx context.Context) ([]*types.Agent, error)

	// UpsertEdge creates the edge if absent, else overwrites its weight and
	// LastUpdated. Returns NOT_FOUND when the agent is unknown. The weight
	// is clamped to [MinWeight, MaxWeight].
	UpsertEdge(ctx context.Context, agentName, concept, intent string, weight float64) error

	// FindEdges returns all edges matching (concept, intent), ordered by
	// weight descending, ties broken by LastUpdated descending. No match is
	// an empty slice, not an error.
	FindEdges(ctx context.Context, concept, intent string) ([]Edge, error)

	// GetWeight returns the current weight of the edge, or DefaultWeight
	// when the edge is absent.
	GetWeight(ctx context.Context, agentName, concept, intent string) (float64, error)

	// Close releases backend resources.
	Close() error
}

// ClampWeight bounds w to [MinWeight, MaxWeight].
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// IntentSet is a validated, immutable intent allow-list.
type IntentSet struct {
	allowed map[string]struct{}
}

// NewIntentSet builds an IntentSet from the given intents. An empty list
// falls back to DefaultIntents.
func NewIntentSet(intents []string) *IntentSet {
	if len(intents) == 0 {
		intents = DefaultIntents
	}
	s := &IntentSet{allowed: make(map[string]struct{}, len(intents))}
	for _, it := range intents {
		s.allowed[it] = struct{}{}
	}
	return s
}

// Allowed reports whether intent is in the allow-list.
func (s *IntentSet) Allowed(intent string) bool {
	_, ok := s.allowed[intent]
	return ok
}

// validateAgent checks the structural invariants of an agent record against
// the allow-list before it can reach a backend.
func validateAgent(agent *types.Agent, intents *IntentSet) error {
	if agent == nil {
		return types.NewError(types.ErrValidation, "agent is nil")
	}
	if !nameRe.MatchString(agent.Name) {
		return types.NewErrorf(types.ErrValidation, "invalid agent name %q", agent.Name)
	}
	if agent.Endpoint == "" {
		return types.NewErrorf(types.ErrValidation, "agent %s has no endpoint", agent.Name)
	}
	if len(agent.IntentMap) == 0 {
		return types.NewErrorf(types.ErrValidation, "agent %s has no intent map", agent.Name)
	}
	if !types.ValidAgentType(agent.Type) {
		return types.NewErrorf(types.ErrValidation, "agent %s has unknown type %q", agent.Name, agent.Type)
	}
	for intent := range agent.IntentMap {
		if !intents.Allowed(intent) {
			return types.NewErrorf(types.ErrValidation, "agent %s maps disallowed intent %q", agent.Name, intent)
		}
	}
	return nil
}

// validateEdgeKey checks the (agent, concept, intent) key fields. The
// concept must already be normalized by the caller.
func validateEdgeKey(agentName, concept, intent string, intents *IntentSet) error {
	if !nameRe.MatchString(agentName) {
		return types.NewErrorf(types.ErrValidation, "invalid agent name %q", agentName)
	}
	if !nameRe.MatchString(concept) {
		return types.NewErrorf(types.ErrValidation, "invalid concept name %q", concept)
	}
	if !intents.Allowed(intent) {
		return types.NewErrorf(types.ErrValidation, "intent %q is not in the allow-list", intent)
	}
	return nil
}

// sortEdges orders edges by weight descending, ties broken by the most
// recently updated edge first.
func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].LastUpdated.After(edges[j].LastUpdated)
	})
}
