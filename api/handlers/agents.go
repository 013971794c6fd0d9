package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/discovery"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// AgentsHandler exposes the agent registry and a read-only selection probe.
type AgentsHandler struct {
	store    capability.Store
	selector *discovery.Selector
	logger   *zap.Logger
}

// NewAgentsHandler creates an AgentsHandler.
func NewAgentsHandler(store capability.Store, selector *discovery.Selector, logger *zap.Logger) *AgentsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentsHandler{
		store:    store,
		selector: selector,
		logger:   logger.With(zap.String("handler", "agents")),
	}
}

// RegisterAgentRequest registers or updates an agent.
type RegisterAgentRequest struct {
	Name      string            `json:"name"`
	Endpoint  string            `json:"endpoint"`
	Type      types.AgentType   `json:"agent_type"`
	IntentMap map[string]string `json:"intent_map"`
	Inactive  bool              `json:"inactive,omitempty"`
}

// HandleRegister registers or updates an agent.
// POST /v1/agents
func (h *AgentsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	agent := &types.Agent{
		Name:      req.Name,
		Endpoint:  req.Endpoint,
		Type:      req.Type,
		IntentMap: req.IntentMap,
		Inactive:  req.Inactive,
	}
	if err := h.store.UpsertAgent(r.Context(), agent); err != nil {
		writeTypedError(w, err, h.logger)
		return
	}

	h.logger.Info("agent registered",
		zap.String("agent", agent.Name),
		zap.String("agent_type", string(agent.Type)),
	)
	WriteSuccess(w, agent)
}

// HandleList lists all registered agents.
// GET /v1/agents
func (h *AgentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}
	WriteSuccess(w, agents)
}

// HandleGet returns one agent by name.
// GET /v1/agents/{name}
func (h *AgentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	agent, err := h.store.GetAgent(r.Context(), name)
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}
	WriteSuccess(w, agent)
}

// SelectionProbe is the read-only view of one selection.
type SelectionProbe struct {
	Miss       bool             `json:"miss"`
	Known      bool             `json:"known"`
	BestWeight float64          `json:"best_weight"`
	Concept    string           `json:"concept"`
	Intent     string           `json:"intent"`
	AgentName  string           `json:"agent_name,omitempty"`
	Edge       *capability.Edge `json:"edge,omitempty"`
}

// HandleSelect probes discovery without dispatching or reinforcing.
// GET /v1/select?concept=...&intent=...&min_confidence=...
func (h *AgentsHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	concept := r.URL.Query().Get("concept")
	intent := r.URL.Query().Get("intent")
	if concept == "" || intent == "" {
		WriteErrorMessage(w, types.ErrValidation, "concept and intent query parameters are required", h.logger)
		return
	}

	minConfidence := 0.0
	if raw := r.URL.Query().Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			WriteErrorMessage(w, types.ErrValidation, "min_confidence must be a number in [0, 1]", h.logger)
			return
		}
		minConfidence = v
	}

	sel, err := h.selector.Select(r.Context(), concept, intent, minConfidence)
	if err != nil {
		writeTypedError(w, err, h.logger)
		return
	}

	probe := SelectionProbe{
		Miss:       sel.Miss,
		Known:      sel.Known,
		BestWeight: sel.BestWeight,
		Concept:    sel.Concept,
		Intent:     sel.Intent,
		Edge:       sel.Edge,
	}
	if sel.Agent != nil {
		probe.AgentName = sel.Agent.Name
	}
	WriteSuccess(w, probe)
}
