// Package reinforce implements the Hebbian weight update engine of the
// routing graph: success strengthens an (agent, concept, intent) edge,
// failure weakens it, and decay models forgetting over time. Updates are
// asymptotic in both directions, so no single event can saturate a weight
// to 1 or zero it out.
package reinforce

import (
	"context"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Config holds the learning parameters of the engine.
type Config struct {
	// LearningRate is the Hebbian step size α. On success the weight moves
	// α·(1−w) toward 1, on failure α·w toward 0.
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	// DecayFloor is the lowest weight decay may produce. A fully zeroed
	// edge could never be rediscovered by ranking, so decay stops here.
	DecayFloor float64 `yaml:"decay_floor" json:"decay_floor"`

	// Intents is the intent allow-list decay sweeps over. Empty means the
	// store's default allow-list.
	Intents []string `yaml:"intents" json:"intents"`

	// LockStripes is the number of mutex stripes serializing concurrent
	// updates on the same edge.
	LockStripes int `yaml:"lock_stripes" json:"lock_stripes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.1,
		DecayFloor:   0.05,
		LockStripes:  64,
	}
}

// Engine applies reinforcement and decay to edge weights through the
// capability store. Concurrent updates on the same edge serialize on a
// striped lock so no write is lost to a racing read-modify-write.
type Engine struct {
	store   capability.Store
	config  Config
	intents []string
	logger  *zap.Logger
	locks   []sync.Mutex
}

// NewEngine creates a weight update engine on top of the given store.
func NewEngine(store capability.Store, config Config, logger *zap.Logger) *Engine {
	if config.LearningRate <= 0 || config.LearningRate >= 1 {
		config.LearningRate = DefaultConfig().LearningRate
	}
	if config.DecayFloor < 0 || config.DecayFloor >= 1 {
		config.DecayFloor = DefaultConfig().DecayFloor
	}
	if config.LockStripes <= 0 {
		config.LockStripes = DefaultConfig().LockStripes
	}
	intents := config.Intents
	if len(intents) == 0 {
		intents = capability.DefaultIntents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		config:  config,
		intents: intents,
		logger:  logger.With(zap.String("component", "reinforce_engine")),
		locks:   make([]sync.Mutex, config.LockStripes),
	}
}

// Reinforce applies one Hebbian update to the (agent, concept, intent)
// edge and returns the new weight. Success: w' = w + α·(1−w). Failure:
// w' = w − α·w. The result is clamped to [0,1] and written back through
// the store; an absent edge starts from the store default of 0.5.
func (e *Engine) Reinforce(ctx context.Context, agentName, concept, intent string, success bool) (float64, error) {
	concept = types.NormalizeConcept(concept)

	lock := e.edgeLock(agentName, concept, intent)
	lock.Lock()
	defer lock.Unlock()

	w, err := e.store.GetWeight(ctx, agentName, concept, intent)
	if err != nil {
		e.logger.Error("weight read failed",
			zap.String("agent", agentName),
			zap.String("concept", concept),
			zap.String("intent", intent),
			zap.Error(err),
		)
		return 0, err
	}

	updated := e.apply(w, success)
	if err := e.store.UpsertEdge(ctx, agentName, concept, intent, updated); err != nil {
		e.logger.Error("weight write failed",
			zap.String("agent", agentName),
			zap.String("concept", concept),
			zap.String("intent", intent),
			zap.Error(err),
		)
		return 0, err
	}

	e.logger.Debug("edge reinforced",
		zap.String("agent", agentName),
		zap.String("concept", concept),
		zap.String("intent", intent),
		zap.Bool("success", success),
		zap.Float64("weight", updated),
	)
	return updated, nil
}

// Decay weakens every edge on the concept by the given rate:
// w' = w·(1−rate), never below the configured floor. A concept with no
// edges is a no-op, not an error. Decay is independent of reinforcement
// and is typically driven by an external scheduler.
func (e *Engine) Decay(ctx context.Context, concept string, rate float64) (int, error) {
	concept = types.NormalizeConcept(concept)
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}

	touched := 0
	for _, intent := range e.intents {
		edges, err := e.store.FindEdges(ctx, concept, intent)
		if err != nil {
			return touched, err
		}
		for _, edge := range edges {
			lock := e.edgeLock(edge.AgentName, concept, intent)
			lock.Lock()

			w, err := e.store.GetWeight(ctx, edge.AgentName, concept, intent)
			if err != nil {
				lock.Unlock()
				e.logger.Error("decay read failed",
					zap.String("agent", edge.AgentName),
					zap.String("concept", concept),
					zap.Error(err),
				)
				continue
			}
			decayed := w * (1 - rate)
			if decayed < e.config.DecayFloor {
				decayed = e.config.DecayFloor
			}
			if err := e.store.UpsertEdge(ctx, edge.AgentName, concept, intent, decayed); err != nil {
				lock.Unlock()
				e.logger.Error("decay write failed",
					zap.String("agent", edge.AgentName),
					zap.String("concept", concept),
					zap.Error(err),
				)
				continue
			}
			lock.Unlock()
			touched++
		}
	}

	if touched > 0 {
		e.logger.Debug("concept decayed",
			zap.String("concept", concept),
			zap.Float64("rate", rate),
			zap.Int("edges", touched),
		)
	}
	return touched, nil
}

// apply computes one Hebbian step from the current weight.
func (e *Engine) apply(w float64, success bool) float64 {
	alpha := e.config.LearningRate
	if success {
		w += alpha * (1 - w)
	} else {
		w -= alpha * w
	}
	return capability.ClampWeight(w)
}

// edgeLock picks the mutex stripe for one (agent, concept, intent) key.
func (e *Engine) edgeLock(agentName, concept, intent string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(agentName))
	h.Write([]byte{0})
	h.Write([]byte(concept))
	h.Write([]byte{0})
	h.Write([]byte(intent))
	return &e.locks[h.Sum32()%uint32(len(e.locks))]
}
