// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the Prometheus instruments for the routing engine.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Discovery metrics
	selectionsTotal *prometheus.CounterVec
	selectionWeight *prometheus.HistogramVec

	// Dispatch metrics
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	agentRetries  *prometheus.CounterVec
	batchesTotal  prometheus.Counter
	batchDuration prometheus.Histogram

	// Reinforcement metrics
	weightUpdatesTotal *prometheus.CounterVec
	decayRunsTotal     prometheus.Counter
	decayedEdges       prometheus.Counter

	// Neurogenesis metrics
	neurogenesisTotal    *prometheus.CounterVec
	neurogenesisDuration prometheus.Histogram

	// Store metrics

	logger *zap.Logger
}

// NewCollector creates the collector and registers every instrument on reg.
// A nil reg falls back to the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP metrics
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Discovery metrics
	c.selectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Total number of agent selections",
		},
		[]string{"intent", "outcome"}, // outcome: hit, miss
	)

	c.selectionWeight = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selection_weight",
			Help:      "Best edge weight observed per selection",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"intent"},
	)

	// Dispatch metrics
	c.tasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of dispatched tasks",
		},
		[]string{"intent", "status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task dispatch duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"intent"},
	)

	c.agentRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_retries_total",
			Help:      "Total number of agent call retries",
		},
		[]string{"agent"},
	)

	c.batchesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of processed task batches",
		},
	)

	c.batchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Batch processing duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Reinforcement metrics
	c.weightUpdatesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_updates_total",
			Help:      "Total number of edge weight updates",
		},
		[]string{"direction"}, // direction: reinforce, weaken
	)

	c.decayRunsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_runs_total",
			Help:      "Total number of decay sweeps",
		},
	)

	c.decayedEdges = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decayed_edges_total",
			Help:      "Total number of edges touched by decay",
		},
	)

	// Neurogenesis metrics
	c.neurogenesisTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "neurogenesis_total",
			Help:      "Total number of neurogenesis attempts",
		},
		[]string{"outcome"}, // outcome: edge_created, agent_provisioned, partial, failed
	)

	c.neurogenesisDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "neurogenesis_duration_seconds",
			Help:      "Neurogenesis session duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSelection records one discovery lookup and its best weight.
func (c *Collector) RecordSelection(intent string, hit bool, bestWeight float64) {
	outcome := "hit"
	if !hit {
		outcome = "miss"
	}
	c.selectionsTotal.WithLabelValues(intent, outcome).Inc()
	c.selectionWeight.WithLabelValues(intent).Observe(bestWeight)
}

// RecordTask records one finalized task result.
func (c *Collector) RecordTask(intent, status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(intent, status).Inc()
	c.taskDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordAgentRetry records one retried agent call.
func (c *Collector) RecordAgentRetry(agent string) {
	c.agentRetries.WithLabelValues(agent).Inc()
}

// RecordBatch records one processed batch.
func (c *Collector) RecordBatch(duration time.Duration) {
	c.batchesTotal.Inc()
	c.batchDuration.Observe(duration.Seconds())
}

// RecordWeightUpdate records one reinforcement update.
func (c *Collector) RecordWeightUpdate(success bool) {
	direction := "reinforce"
	if !success {
		direction = "weaken"
	}
	c.weightUpdatesTotal.WithLabelValues(direction).Inc()
}

// RecordDecay records one decay sweep and how many edges it touched.
func (c *Collector) RecordDecay(touched int) {
	c.decayRunsTotal.Inc()
	c.decayedEdges.Add(float64(touched))
}

// RecordNeurogenesis records one neurogenesis session.
func (c *Collector) RecordNeurogenesis(outcome string, duration time.Duration) {
	c.neurogenesisTotal.WithLabelValues(outcome).Inc()
	c.neurogenesisDuration.Observe(duration.Seconds())
}

func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
