package neurogenesis

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// State is the phase of one expansion session.
type State string

const (
	StateIdle         State = "idle"
	StateResearching  State = "researching"
	StateSynthesizing State = "synthesizing"

	// StateEdgeCreated means an existing agent absorbed the concept via a
	// new edge.
	StateEdgeCreated State = "edge_created"
	// StateAgentProvisioned means a new agent was provisioned and wired.
	StateAgentProvisioned State = "agent_provisioned"
	// StateKnowledgeOnly means knowledge was synthesized below the creation
	// threshold: usable for the single task, but the graph is unchanged.
	StateKnowledgeOnly State = "knowledge_only"
	// StateFailed is the terminal failure: no sources, no synthesis, or no
	// way to host the concept.
	StateFailed State = "failed"
)

// Config controls expansion behavior.
type Config struct {
	// CreationThreshold is the minimum confidence required before the
	// graph is mutated.
	CreationThreshold float64 `yaml:"creation_threshold" json:"creation_threshold"`

	// BaseConfidence and SourceWeight feed the confidence formula:
	// min(MaxConfidence, BaseConfidence + SourceWeight * sources).
	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence"`
	SourceWeight   float64 `yaml:"source_weight" json:"source_weight"`

	// MaxConfidence caps synthesized confidence. Autogenerated knowledge
	// is never fully trusted, so this stays below 1.
	MaxConfidence float64 `yaml:"max_confidence" json:"max_confidence"`

	// TransferFactor discounts weights seeded by cross-concept transfer.
	TransferFactor float64 `yaml:"transfer_factor" json:"transfer_factor"`

	// SessionTimeout is the hard ceiling on one expansion session.
	SessionTimeout time.Duration `yaml:"session_timeout" json:"session_timeout"`

	// MaxSources caps how many discovered sources are folded in.
	MaxSources int `yaml:"max_sources" json:"max_sources"`

	// Intents is the allow-list transfer sweeps over. Empty means the
	// default set.
	Intents []string `yaml:"intents" json:"intents"`
}

// DefaultConfig returns the default expansion configuration.
func DefaultConfig() Config {
	return Config{
		CreationThreshold: 0.5,
		BaseConfidence:    0.3,
		SourceWeight:      0.2,
		MaxConfidence:     0.9,
		TransferFactor:    0.8,
		SessionTimeout:    30 * time.Second,
		MaxSources:        5,
	}
}

// Outcome is the terminal result of one expansion session.
type Outcome struct {
	// SessionID identifies the session in logs.
	SessionID string

	// State is the terminal state reached.
	State State

	// Agent is the agent now wired to the concept. Nil unless State is
	// EdgeCreated or AgentProvisioned.
	Agent *types.Agent

	// Acquisition is the synthesized knowledge, present whenever research
	// got far enough to produce one.
	Acquisition *KnowledgeAcquisition
}

// Controller runs neurogenesis: when routing finds no adequate agent for a
// concept, it researches the concept, synthesizes knowledge, and expands
// the capability graph with a new edge or a newly provisioned agent.
type Controller struct {
	store       capability.Store
	source      KnowledgeSource
	provisioner Provisioner
	config      Config
	intents     []string
	logger      *zap.Logger
	group       singleflight.Group
	now         func() time.Time
}

// NewController creates a Controller. provisioner may be nil; expansion
// then never creates agents, only edges on existing ones.
func NewController(store capability.Store, source KnowledgeSource, provisioner Provisioner, config Config, logger *zap.Logger) *Controller {
	defaults := DefaultConfig()
	if config.CreationThreshold <= 0 || config.CreationThreshold > 1 {
		config.CreationThreshold = defaults.CreationThreshold
	}
	if config.BaseConfidence <= 0 {
		config.BaseConfidence = defaults.BaseConfidence
	}
	if config.SourceWeight <= 0 {
		config.SourceWeight = defaults.SourceWeight
	}
	if config.MaxConfidence <= 0 || config.MaxConfidence >= 1 {
		config.MaxConfidence = defaults.MaxConfidence
	}
	if config.TransferFactor <= 0 || config.TransferFactor >= 1 {
		config.TransferFactor = defaults.TransferFactor
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = defaults.SessionTimeout
	}
	if config.MaxSources <= 0 {
		config.MaxSources = defaults.MaxSources
	}
	intents := config.Intents
	if len(intents) == 0 {
		intents = capability.DefaultIntents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:       store,
		source:      source,
		provisioner: provisioner,
		config:      config,
		intents:     intents,
		logger:      logger.With(zap.String("component", "neurogenesis")),
		now:         time.Now,
	}
}

// Confidence computes synthesized confidence from the source count.
func (c *Controller) Confidence(sources int) float64 {
	conf := c.config.BaseConfidence + c.config.SourceWeight*float64(sources)
	return math.Min(c.config.MaxConfidence, conf)
}

// Expand runs one expansion session for (concept, intent). Concurrent
// expansions of the same pair are collapsed into a single session whose
// outcome is shared. The returned error is terminal; the caller does not
// retry expansion for the same task.
func (c *Controller) Expand(ctx context.Context, concept, intent string) (*Outcome, error) {
	concept = types.NormalizeConcept(concept)
	key := concept + "\x00" + intent
	out, err, _ := c.group.Do(key, func() (any, error) {
		return c.runSession(ctx, concept, intent)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Outcome), nil
}

func (c *Controller) runSession(ctx context.Context, concept, intent string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.SessionTimeout)
	defer cancel()

	session := uuid.NewString()
	logger := c.logger.With(
		zap.String("session_id", session),
		zap.String("concept", concept),
		zap.String("intent", intent),
	)
	outcome := &Outcome{SessionID: session, State: StateIdle}

	logger.Info("expansion started")

	outcome.State = StateResearching
	sources, err := c.source.DiscoverSources(ctx, concept)
	if err != nil {
		outcome.State = StateFailed
		logger.Warn("source discovery failed", zap.Error(err))
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"source discovery for %q", concept).WithCause(err)
	}
	if len(sources) == 0 {
		outcome.State = StateFailed
		logger.Info("no knowledge sources found")
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"no knowledge sources for %q", concept)
	}
	if len(sources) > c.config.MaxSources {
		sources = sources[:c.config.MaxSources]
	}

	outcome.State = StateSynthesizing
	acq, err := c.source.Acquire(ctx, concept, sources)
	if err != nil {
		outcome.State = StateFailed
		logger.Warn("knowledge synthesis failed", zap.Error(err))
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"knowledge synthesis for %q", concept).WithCause(err)
	}
	acq.Concept = concept
	acq.Confidence = c.Confidence(len(sources))
	acq.Timestamp = c.now().UTC()
	outcome.Acquisition = acq

	logger.Info("knowledge synthesized",
		zap.Int("sources", len(sources)),
		zap.Float64("confidence", acq.Confidence),
	)

	if acq.Confidence < c.config.CreationThreshold {
		outcome.State = StateKnowledgeOnly
		logger.Info("confidence below creation threshold, graph unchanged",
			zap.Float64("threshold", c.config.CreationThreshold),
		)
		return outcome, nil
	}

	agent, err := c.hostAgent(ctx, intent)
	if err != nil {
		outcome.State = StateFailed
		return nil, err
	}
	if agent != nil {
		if err := c.store.UpsertEdge(ctx, agent.Name, concept, intent, acq.Confidence); err != nil {
			outcome.State = StateFailed
			logger.Error("edge creation failed", zap.String("agent", agent.Name), zap.Error(err))
			return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
				"edge creation on %q", agent.Name).WithCause(err)
		}
		outcome.State = StateEdgeCreated
		outcome.Agent = agent
		logger.Info("edge created",
			zap.String("agent", agent.Name),
			zap.Float64("weight", acq.Confidence),
		)
		return outcome, nil
	}

	return c.provision(ctx, logger, outcome, concept, intent)
}

// hostAgent finds an active agent whose type can host the intent and that
// actually serves it. Nil without error means none exists yet.
func (c *Controller) hostAgent(ctx context.Context, intent string) (*types.Agent, error) {
	agents, err := c.store.ListAgents(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrNeurogenesisFailed, "list agents").WithCause(err)
	}
	for _, agent := range agents {
		if agent.Inactive {
			continue
		}
		if !canHost(agent.Type, intent) {
			continue
		}
		if _, ok := agent.IntentPath(intent); !ok {
			continue
		}
		return agent, nil
	}
	return nil, nil
}

func (c *Controller) provision(ctx context.Context, logger *zap.Logger, outcome *Outcome, concept, intent string) (*Outcome, error) {
	if c.provisioner == nil {
		outcome.State = StateFailed
		logger.Info("no host agent and no provisioner configured")
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"no agent can host %q and provisioning is disabled", concept)
	}

	agentType := InferAgentType(intent)
	agent, err := c.provisioner.Provision(ctx, concept, agentType)
	if err != nil {
		outcome.State = StateFailed
		logger.Warn("provisioning failed", zap.Error(err))
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"provisioning for %q", concept).WithCause(err)
	}

	if err := c.store.UpsertAgent(ctx, agent); err != nil {
		outcome.State = StateFailed
		logger.Error("registering provisioned agent failed",
			zap.String("agent", agent.Name), zap.Error(err))
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"registering %q", agent.Name).WithCause(err)
	}
	if err := c.store.UpsertEdge(ctx, agent.Name, concept, intent, outcome.Acquisition.Confidence); err != nil {
		outcome.State = StateFailed
		logger.Error("edge creation failed",
			zap.String("agent", agent.Name), zap.Error(err))
		return nil, types.NewErrorf(types.ErrNeurogenesisFailed,
			"edge creation on %q", agent.Name).WithCause(err)
	}

	outcome.State = StateAgentProvisioned
	outcome.Agent = agent
	logger.Info("agent provisioned and wired",
		zap.String("agent", agent.Name),
		zap.String("agent_type", string(agentType)),
		zap.Float64("weight", outcome.Acquisition.Confidence),
	)
	return outcome, nil
}

// Transfer seeds edges for targetConcept from the edges of sourceConcept,
// discounting each weight by the transfer factor. Unverified transfer is
// less trustworthy than direct acquisition, so the factor stays below 1.
// Returns how many edges were created.
func (c *Controller) Transfer(ctx context.Context, sourceConcept, targetConcept string) (int, error) {
	source := types.NormalizeConcept(sourceConcept)
	target := types.NormalizeConcept(targetConcept)
	if source == target {
		return 0, types.NewError(types.ErrValidation, "transfer onto the same concept")
	}

	created := 0
	for _, intent := range c.intents {
		edges, err := c.store.FindEdges(ctx, source, intent)
		if err != nil {
			return created, types.NewErrorf(types.ErrNeurogenesisFailed,
				"reading edges of %q", source).WithCause(err)
		}
		for _, edge := range edges {
			seed := capability.ClampWeight(edge.Weight * c.config.TransferFactor)
			if err := c.store.UpsertEdge(ctx, edge.AgentName, target, intent, seed); err != nil {
				c.logger.Warn("transfer edge skipped",
					zap.String("agent", edge.AgentName),
					zap.String("target", target),
					zap.String("intent", intent),
					zap.Error(err),
				)
				continue
			}
			created++
		}
	}

	c.logger.Info("knowledge transferred",
		zap.String("source", source),
		zap.String("target", target),
		zap.Int("edges", created),
	)
	return created, nil
}

// InferAgentType maps an intent to the agent type that should host it.
func InferAgentType(intent string) types.AgentType {
	switch intent {
	case "calculate", "analyze":
		return types.AgentTypeFunctionExecutor
	case "define", "explain", "summarize", "compare":
		return types.AgentTypeFactBase
	default:
		return types.AgentTypeHybrid
	}
}

func canHost(agentType types.AgentType, intent string) bool {
	if agentType == types.AgentTypeHybrid {
		return true
	}
	return InferAgentType(intent) == agentType
}
