package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/discovery"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/metrics"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/pool"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/reinforce"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Config controls batch processing.
type Config struct {
	// MaxWorkers caps concurrent task execution per batch. A batch smaller
	// than the cap uses one worker per task.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// BatchTimeout bounds a whole batch. Tasks not finalized when it fires
	// are reported as deadline_exceeded.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
}

// DefaultConfig returns the default dispatch configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   8,
		BatchTimeout: 30 * time.Second,
	}
}

// Expansion is the outcome of growing the capability graph for an
// unroutable task.
type Expansion struct {
	// Agent is the agent now wired to the concept, existing or freshly
	// provisioned. Nil when knowledge was synthesized but no agent could
	// absorb it; the task then finishes as neurogenesis_partial.
	Agent *types.Agent

	// Data carries the synthesized knowledge for the task result.
	Data any
}

// Expander grows the capability graph when discovery misses. Implemented by
// the neurogenesis controller; kept as an interface so dispatch does not
// depend on how expansion happens.
type Expander interface {
	Expand(ctx context.Context, concept, intent string) (*Expansion, error)
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(ctx context.Context, concept, intent string) (*Expansion, error)

// Expand implements Expander.
func (f ExpanderFunc) Expand(ctx context.Context, concept, intent string) (*Expansion, error) {
	return f(ctx, concept, intent)
}

// Coordinator routes task batches: it selects an agent per task, queries it,
// feeds the outcome back into the reinforcement engine, and falls back to
// graph expansion when no agent qualifies.
type Coordinator struct {
	selector  *discovery.Selector
	client    *Client
	engine    *reinforce.Engine
	expander  Expander
	collector *metrics.Collector
	config    Config
	logger    *zap.Logger
}

// NewCoordinator creates a Coordinator. expander and collector may be nil;
// without an expander, discovery misses fail the task.
func NewCoordinator(selector *discovery.Selector, client *Client, engine *reinforce.Engine, expander Expander, collector *metrics.Collector, config Config, logger *zap.Logger) *Coordinator {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultConfig().BatchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		selector:  selector,
		client:    client,
		engine:    engine,
		expander:  expander,
		collector: collector,
		config:    config,
		logger:    logger.With(zap.String("component", "dispatch")),
	}
}

// ProcessBatch runs every task in the batch and returns exactly one result
// per task ID. Tasks run concurrently up to the worker cap; a task that is
// not finalized when the batch deadline fires gets a deadline_exceeded
// error result. ProcessBatch itself never returns an error: failures are
// per-task.
func (c *Coordinator) ProcessBatch(ctx context.Context, tasks []types.Task) map[string]types.TaskResult {
	start := time.Now()
	defer func() {
		if c.collector != nil {
			c.collector.RecordBatch(time.Since(start))
		}
	}()

	results := make(map[string]types.TaskResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	bctx, cancel := context.WithTimeout(ctx, c.config.BatchTimeout)
	defer cancel()

	// Tasks without an ID still need a unique results key.
	ids := make([]string, len(tasks))
	for i := range tasks {
		if tasks[i].TaskID == "" {
			tasks[i].TaskID = uuid.NewString()
		}
		ids[i] = tasks[i].TaskID
	}

	workers := min(len(tasks), c.config.MaxWorkers)
	p := pool.New(workers, len(tasks))

	var mu sync.Mutex
	var wg sync.WaitGroup
	setResult := func(r types.TaskResult) {
		mu.Lock()
		defer mu.Unlock()
		if _, done := results[r.TaskID]; !done {
			results[r.TaskID] = r
		}
	}

	for i := range tasks {
		task := tasks[i]
		wg.Add(1)
		err := p.Submit(bctx, func(ctx context.Context) error {
			defer wg.Done()
			setResult(c.processTask(ctx, task))
			return nil
		})
		if err != nil {
			wg.Done()
			setResult(types.TaskResult{
				TaskID:       task.TaskID,
				Status:       types.TaskStatusError,
				ErrorMessage: err.Error(),
			})
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-bctx.Done():
		c.logger.Warn("batch deadline exceeded",
			zap.Int("tasks", len(tasks)),
			zap.Duration("timeout", c.config.BatchTimeout),
		)
	}
	go p.Close()

	// Finalize stragglers under the same lock that task goroutines use, so
	// a late completion cannot overwrite a deadline result or vice versa.
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		if _, ok := results[id]; !ok {
			results[id] = types.TaskResult{
				TaskID:       id,
				Status:       types.TaskStatusError,
				ErrorMessage: "deadline_exceeded",
			}
		}
	}

	out := make(map[string]types.TaskResult, len(results))
	for id, r := range results {
		out[id] = r
	}
	return out
}

func (c *Coordinator) processTask(ctx context.Context, task types.Task) types.TaskResult {
	start := time.Now()
	result := c.routeTask(ctx, task)
	// A task cut down by the batch deadline reports deadline_exceeded no
	// matter which call the cancellation surfaced from.
	if result.Status == types.TaskStatusError && ctx.Err() != nil {
		result.ErrorMessage = "deadline_exceeded"
	}
	if c.collector != nil {
		c.collector.RecordTask(task.Intent, string(result.Status), time.Since(start))
	}
	return result
}

func (c *Coordinator) routeTask(ctx context.Context, task types.Task) types.TaskResult {
	sel, err := c.selector.Select(ctx, task.Concept, task.Intent, 0)
	if err != nil {
		c.logger.Error("agent selection failed",
			zap.String("task_id", task.TaskID),
			zap.String("concept", task.Concept),
			zap.String("intent", task.Intent),
			zap.Error(err),
		)
		return types.TaskResult{
			TaskID:       task.TaskID,
			Status:       types.TaskStatusError,
			ErrorMessage: err.Error(),
		}
	}
	if c.collector != nil {
		c.collector.RecordSelection(task.Intent, !sel.Miss, sel.BestWeight)
	}

	if sel.Miss {
		return c.expand(ctx, task, sel)
	}
	return c.query(ctx, task, sel.Concept, sel.Agent, nil)
}

// query issues the remote call and feeds the outcome back into the weight
// graph. When expansion is non-nil the task was routed through a fresh
// edge, so success and failure map to the neurogenesis statuses instead.
func (c *Coordinator) query(ctx context.Context, task types.Task, concept string, agent *types.Agent, expansion *Expansion) types.TaskResult {
	var expansionData any
	if expansion != nil {
		expansionData = expansion.Data
	}

	resp, err := c.client.Query(ctx, agent, &types.AgentRequest{
		Intent: task.Intent,
		Args:   task.Args,
	})
	if err != nil {
		c.reinforce(ctx, agent.Name, concept, task.Intent, false)
		if expansion != nil {
			return types.TaskResult{
				TaskID:           task.TaskID,
				Status:           types.TaskStatusNeurogenesisPartial,
				AgentName:        agent.Name,
				NeurogenesisData: expansionData,
				ErrorMessage:     err.Error(),
			}
		}
		return types.TaskResult{
			TaskID:       task.TaskID,
			Status:       types.TaskStatusError,
			AgentName:    agent.Name,
			ErrorMessage: err.Error(),
		}
	}
	if !resp.OK() {
		c.reinforce(ctx, agent.Name, concept, task.Intent, false)
		msg := resp.Message
		if msg == "" {
			msg = "agent reported failure"
		}
		if expansion != nil {
			return types.TaskResult{
				TaskID:           task.TaskID,
				Status:           types.TaskStatusNeurogenesisPartial,
				AgentName:        agent.Name,
				NeurogenesisData: expansionData,
				ErrorMessage:     msg,
			}
		}
		return types.TaskResult{
			TaskID:       task.TaskID,
			Status:       types.TaskStatusError,
			AgentName:    agent.Name,
			ErrorMessage: msg,
		}
	}

	c.reinforce(ctx, agent.Name, concept, task.Intent, true)
	status := types.TaskStatusSuccess
	if expansion != nil {
		status = types.TaskStatusNeurogenesisSuccess
	}
	return types.TaskResult{
		TaskID:           task.TaskID,
		Status:           status,
		AgentName:        agent.Name,
		Data:             resp.Data,
		NeurogenesisData: expansionData,
	}
}

func (c *Coordinator) expand(ctx context.Context, task types.Task, sel *discovery.Selection) types.TaskResult {
	if c.expander == nil {
		return types.TaskResult{
			TaskID:       task.TaskID,
			Status:       types.TaskStatusError,
			ErrorMessage: "no capable agent for concept",
		}
	}

	c.logger.Info("discovery miss, expanding graph",
		zap.String("task_id", task.TaskID),
		zap.String("concept", sel.Concept),
		zap.String("intent", task.Intent),
		zap.Bool("known", sel.Known),
		zap.Float64("best_weight", sel.BestWeight),
	)

	expansion, err := c.expander.Expand(ctx, sel.Concept, task.Intent)
	if err != nil {
		return types.TaskResult{
			TaskID:       task.TaskID,
			Status:       types.TaskStatusError,
			ErrorMessage: err.Error(),
		}
	}
	if expansion.Agent == nil {
		return types.TaskResult{
			TaskID:           task.TaskID,
			Status:           types.TaskStatusNeurogenesisPartial,
			NeurogenesisData: expansion.Data,
		}
	}
	// The graph now carries an edge for this concept; route the task
	// through it like any hit and let the outcome season the new edge.
	return c.query(ctx, task, sel.Concept, expansion.Agent, expansion)
}

// reinforce feeds a task outcome back into the weight graph. Reinforcement
// is best-effort: a store failure here must not fail the task.
func (c *Coordinator) reinforce(ctx context.Context, agentName, concept, intent string, success bool) {
	if c.engine == nil {
		return
	}
	if _, err := c.engine.Reinforce(context.WithoutCancel(ctx), agentName, concept, intent, success); err != nil {
		c.logger.Warn("reinforcement skipped",
			zap.String("agent", agentName),
			zap.String("concept", concept),
			zap.String("intent", intent),
			zap.Bool("success", success),
			zap.Error(err),
		)
		return
	}
	if c.collector != nil {
		c.collector.RecordWeightUpdate(success)
	}
}
