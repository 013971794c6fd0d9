// Package myriad provides a top-level convenience entry point for embedding
// the routing engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001"
//
//	engine, err := myriad.New()
//	engine, err := myriad.New(myriad.WithStore(store), myriad.WithMinConfidence(0.4))
//
// This wires an in-memory capability graph, discovery, reinforcement, and
// the batch coordinator. Use the individual packages when you need custom
// backends or a full server; use this package when you just want to route.
package myriad

import (
	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/discovery"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/dispatch"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/reinforce"
)

// Engine bundles the assembled routing components.
type Engine struct {
	// Store is the capability graph backing everything else.
	Store capability.Store

	// Selector answers (concept, intent) discovery queries.
	Selector *discovery.Selector

	// Reinforcer applies Hebbian weight updates and decay.
	Reinforcer *reinforce.Engine

	// Coordinator processes task batches end to end.
	Coordinator *dispatch.Coordinator
}

type options struct {
	store         capability.Store
	expander      dispatch.Expander
	logger        *zap.Logger
	minConfidence float64
	learningRate  float64
	maxWorkers    int
}

// Option configures the engine created by [New].
type Option func(*options)

// WithStore sets a pre-built capability store. Defaults to an in-memory
// store.
func WithStore(store capability.Store) Option {
	return func(o *options) { o.store = store }
}

// WithExpander sets the hook invoked on discovery misses. Nil leaves
// misses as routing failures.
func WithExpander(expander dispatch.Expander) Option {
	return func(o *options) { o.expander = expander }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMinConfidence overrides the discovery admission threshold.
func WithMinConfidence(threshold float64) Option {
	return func(o *options) { o.minConfidence = threshold }
}

// WithLearningRate overrides the Hebbian step size.
func WithLearningRate(alpha float64) Option {
	return func(o *options) { o.learningRate = alpha }
}

// WithMaxWorkers overrides the per-batch concurrency cap.
func WithMaxWorkers(n int) Option {
	return func(o *options) { o.maxWorkers = n }
}

// New assembles a routing engine with defaults for anything not
// overridden by options.
func New(opts ...Option) (*Engine, error) {
	o := options{
		logger:        zap.NewNop(),
		minConfidence: discovery.DefaultConfig().MinConfidence,
		learningRate:  reinforce.DefaultConfig().LearningRate,
		maxWorkers:    dispatch.DefaultConfig().MaxWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = capability.NewMemoryStore(nil, o.logger)
	}

	selector := discovery.NewSelector(o.store, discovery.Config{MinConfidence: o.minConfidence}, o.logger)

	engineCfg := reinforce.DefaultConfig()
	engineCfg.LearningRate = o.learningRate
	reinforcer := reinforce.NewEngine(o.store, engineCfg, o.logger)

	client := dispatch.NewClient(dispatch.DefaultClientConfig(), o.logger, nil)

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.MaxWorkers = o.maxWorkers
	coordinator := dispatch.NewCoordinator(selector, client, reinforcer, o.expander, nil, dispatchCfg, o.logger)

	return &Engine{
		Store:       o.store,
		Selector:    selector,
		Reinforcer:  reinforcer,
		Coordinator: coordinator,
	}, nil
}
